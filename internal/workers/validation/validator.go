// Package validation is the parse-and-validate boundary between loosely typed
// connection payloads and the registry. Nothing reaches the hub without
// passing through Sanitize.
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"

	"workerhub/internal/workers/models"
	pstrings "workerhub/pkg/platform/strings"
)

const (
	MaxNameLength    = 200
	MaxAddressLength = 400
)

// Bounds is the geographic box every record must fall inside (inclusive).
type Bounds struct {
	MinLat float64 `mapstructure:"min_lat"`
	MaxLat float64 `mapstructure:"max_lat"`
	MinLng float64 `mapstructure:"min_lng"`
	MaxLng float64 `mapstructure:"max_lng"`
}

// DefaultBounds covers North America.
func DefaultBounds() Bounds {
	return Bounds{MinLat: 18, MaxLat: 73, MinLng: -180, MaxLng: -50}
}

// Validate checks that the box is well formed.
func (b Bounds) Validate() error {
	for _, v := range []float64{b.MinLat, b.MaxLat, b.MinLng, b.MaxLng} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bounds must be finite")
		}
	}
	if b.MinLat > b.MaxLat {
		return fmt.Errorf("bounds min_lat %v exceeds max_lat %v", b.MinLat, b.MaxLat)
	}
	if b.MinLng > b.MaxLng {
		return fmt.Errorf("bounds min_lng %v exceeds max_lng %v", b.MinLng, b.MaxLng)
	}
	return nil
}

func (b Bounds) contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// Validator normalizes raw records. It is pure and safe for concurrent use.
type Validator struct {
	bounds Bounds
}

// New constructs a Validator for the given bounding box.
func New(bounds Bounds) *Validator {
	return &Validator{bounds: bounds}
}

// Bounds returns the configured bounding box.
func (v *Validator) Bounds() Bounds {
	return v.bounds
}

// Sanitize coerces and checks every field of raw, returning a normalized
// Worker or an error wrapping models.ErrInvalidRecord.
func (v *Validator) Sanitize(raw models.RawWorker) (models.Worker, error) {
	name, address, err := v.identity(raw)
	if err != nil {
		return models.Worker{}, err
	}

	lat, err := coordinate("lat", raw.Lat)
	if err != nil {
		return models.Worker{}, err
	}
	lng, err := coordinate("lng", raw.Lng)
	if err != nil {
		return models.Worker{}, err
	}
	if !v.bounds.contains(lat, lng) {
		return models.Worker{}, models.Invalid("lat/lng", "outside configured bounds")
	}

	return models.Worker{
		Name:    name,
		Address: address,
		Lat:     lat,
		Lng:     lng,
		Level:   level(raw.Level),
	}, nil
}

// Revalidate runs an already typed record back through Sanitize. Used when
// loading snapshots written by an older process or edited by hand.
func (v *Validator) Revalidate(w models.Worker) (models.Worker, error) {
	return v.Sanitize(models.RawWorker{
		Name:    w.Name,
		Address: w.Address,
		Lat:     w.Lat,
		Lng:     w.Lng,
		Level:   string(w.Level),
	})
}

// Key normalizes only the identity fields of raw and returns the canonical
// key. Removal needs nothing else.
func (v *Validator) Key(raw models.RawWorker) (string, error) {
	name, address, err := v.identity(raw)
	if err != nil {
		return "", err
	}
	return models.CanonicalKey(name, address), nil
}

func (v *Validator) identity(raw models.RawWorker) (string, string, error) {
	name, err := text("name", raw.Name, MaxNameLength)
	if err != nil {
		return "", "", err
	}
	address, err := text("address", raw.Address, MaxAddressLength)
	if err != nil {
		return "", "", err
	}
	return name, address, nil
}

func text(field string, value any, maxLen int) (string, error) {
	if value == nil {
		return "", models.Invalid(field, "is required")
	}
	s, err := cast.ToStringE(value)
	if err != nil {
		return "", models.Invalid(field, "is not text")
	}
	s = pstrings.CollapseSpace(s)
	if s == "" {
		return "", models.Invalid(field, "is empty")
	}
	if pstrings.Length(s) > maxLen {
		return "", models.Invalid(field, fmt.Sprintf("exceeds %d characters", maxLen))
	}
	return s, nil
}

func coordinate(field string, value any) (float64, error) {
	switch t := value.(type) {
	case nil:
		return 0, models.Invalid(field, "is required")
	case bool:
		return 0, models.Invalid(field, "is not a number")
	case string:
		t = strings.TrimSpace(t)
		if t == "" {
			return 0, models.Invalid(field, "is empty")
		}
		value = t
	}
	f, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, models.Invalid(field, "is not a number")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, models.Invalid(field, "is not finite")
	}
	return f, nil
}

func level(value any) models.Level {
	s, err := cast.ToStringE(value)
	if err != nil {
		return models.LevelLow
	}
	return models.ParseLevel(s)
}

// Decode turns a transport payload (already decoded JSON, raw bytes, or a
// typed value) into a RawWorker. Anything that is not a JSON object is
// rejected.
func Decode(payload any) (models.RawWorker, error) {
	var data []byte
	switch p := payload.(type) {
	case nil:
		return models.RawWorker{}, models.Invalid("payload", "is required")
	case models.RawWorker:
		return p, nil
	case []byte:
		data = p
	case json.RawMessage:
		data = p
	case string:
		data = []byte(p)
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return models.RawWorker{}, models.Invalid("payload", "is not encodable")
		}
		data = b
	}

	var raw models.RawWorker
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.RawWorker{}, models.Invalid("payload", "is not an object")
	}
	return raw, nil
}

// DecodeList turns a transport payload into a list of RawWorker. A single
// element that fails to decode is returned as a zero RawWorker so that it is
// rejected by Sanitize without failing the rest of the batch.
func DecodeList(payload any) ([]models.RawWorker, error) {
	var items []json.RawMessage
	switch p := payload.(type) {
	case nil:
		return nil, models.Invalid("payload", "is required")
	case []models.RawWorker:
		return p, nil
	case []byte:
		if err := json.Unmarshal(p, &items); err != nil {
			return nil, models.Invalid("payload", "is not a list")
		}
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, models.Invalid("payload", "is not encodable")
		}
		if err := json.Unmarshal(b, &items); err != nil {
			return nil, models.Invalid("payload", "is not a list")
		}
	}

	out := make([]models.RawWorker, len(items))
	for i, item := range items {
		raw, err := Decode([]byte(item))
		if err != nil {
			continue
		}
		out[i] = raw
	}
	return out, nil
}
