package validation

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"pgregory.net/rapid"

	"workerhub/internal/workers/models"
)

type ValidatorSuite struct {
	suite.Suite
	validator *Validator
}

func TestValidatorSuite(t *testing.T) {
	suite.Run(t, new(ValidatorSuite))
}

func (s *ValidatorSuite) SetupTest() {
	s.validator = New(DefaultBounds())
}

func validRaw() models.RawWorker {
	return models.RawWorker{
		Name:    "Jane Doe",
		Address: "1 Main St",
		Lat:     40.0,
		Lng:     -75.0,
		Level:   "high",
	}
}

// =============================================================================
// Normalization
// =============================================================================

func (s *ValidatorSuite) TestNormalization() {
	s.Run("trims and collapses whitespace", func() {
		raw := validRaw()
		raw.Name = "  Jane \t  Doe "
		raw.Address = "1   Main\nSt"

		w, err := s.validator.Sanitize(raw)
		s.Require().NoError(err)
		s.Equal("Jane Doe", w.Name)
		s.Equal("1 Main St", w.Address)
	})

	s.Run("coerces numeric text fields", func() {
		raw := validRaw()
		raw.Name = 42

		w, err := s.validator.Sanitize(raw)
		s.Require().NoError(err)
		s.Equal("42", w.Name)
	})

	s.Run("coerces numeric strings for coordinates", func() {
		raw := validRaw()
		raw.Lat = " 40.5 "
		raw.Lng = "-75.25"

		w, err := s.validator.Sanitize(raw)
		s.Require().NoError(err)
		s.Equal(40.5, w.Lat)
		s.Equal(-75.25, w.Lng)
	})

	s.Run("normalizes level case", func() {
		raw := validRaw()
		raw.Level = " CRITICAL "

		w, err := s.validator.Sanitize(raw)
		s.Require().NoError(err)
		s.Equal(models.LevelCritical, w.Level)
	})

	s.Run("unknown level defaults to low", func() {
		for _, lvl := range []any{"urgent", "", nil, 7} {
			raw := validRaw()
			raw.Level = lvl

			w, err := s.validator.Sanitize(raw)
			s.Require().NoError(err)
			s.Equal(models.LevelLow, w.Level, "level %v", lvl)
		}
	})
}

// =============================================================================
// Rejections
// =============================================================================

func (s *ValidatorSuite) TestRejections() {
	cases := []struct {
		name   string
		mutate func(*models.RawWorker)
	}{
		{"missing name", func(r *models.RawWorker) { r.Name = nil }},
		{"blank name", func(r *models.RawWorker) { r.Name = "   " }},
		{"blank address", func(r *models.RawWorker) { r.Address = "\t" }},
		{"name too long", func(r *models.RawWorker) { r.Name = strings.Repeat("a", MaxNameLength+1) }},
		{"address too long", func(r *models.RawWorker) { r.Address = strings.Repeat("b", MaxAddressLength+1) }},
		{"object name", func(r *models.RawWorker) { r.Name = map[string]any{"first": "x"} }},
		{"missing lat", func(r *models.RawWorker) { r.Lat = nil }},
		{"non numeric lng", func(r *models.RawWorker) { r.Lng = "west" }},
		{"boolean lat", func(r *models.RawWorker) { r.Lat = true }},
		{"nan lat", func(r *models.RawWorker) { r.Lat = math.NaN() }},
		{"infinite lng", func(r *models.RawWorker) { r.Lng = math.Inf(-1) }},
		{"lat out of bounds", func(r *models.RawWorker) { r.Lat = 95.0 }},
		{"lng out of bounds", func(r *models.RawWorker) { r.Lng = 10.0 }},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			raw := validRaw()
			tc.mutate(&raw)

			_, err := s.validator.Sanitize(raw)
			s.Require().Error(err)
			s.ErrorIs(err, models.ErrInvalidRecord)
		})
	}

	s.Run("length bound is inclusive", func() {
		raw := validRaw()
		raw.Name = strings.Repeat("a", MaxNameLength)
		raw.Address = strings.Repeat("b", MaxAddressLength)

		_, err := s.validator.Sanitize(raw)
		s.NoError(err)
	})

	s.Run("bounds are inclusive", func() {
		raw := validRaw()
		raw.Lat = 73.0
		raw.Lng = -180.0

		_, err := s.validator.Sanitize(raw)
		s.NoError(err)
	})
}

// =============================================================================
// Keys and decoding
// =============================================================================

func (s *ValidatorSuite) TestKey() {
	s.Run("key ignores case and spacing", func() {
		a, err := s.validator.Key(models.RawWorker{Name: "Jane  Doe", Address: "1 MAIN st"})
		s.Require().NoError(err)
		b, err := s.validator.Key(models.RawWorker{Name: "jane doe", Address: " 1 main St "})
		s.Require().NoError(err)
		s.Equal(a, b)
	})

	s.Run("key ignores level and coordinates", func() {
		w, err := s.validator.Sanitize(validRaw())
		s.Require().NoError(err)

		key, err := s.validator.Key(models.RawWorker{Name: "Jane Doe", Address: "1 Main St"})
		s.Require().NoError(err)
		s.Equal(w.Key(), key)
	})

	s.Run("key requires name and address", func() {
		_, err := s.validator.Key(models.RawWorker{Name: "Jane"})
		s.ErrorIs(err, models.ErrInvalidRecord)
	})
}

func (s *ValidatorSuite) TestDecode() {
	s.Run("decodes map payload", func() {
		raw, err := Decode(map[string]any{"name": "A", "address": "B", "lat": 40.0, "lng": -75.0})
		s.Require().NoError(err)

		w, err := s.validator.Sanitize(raw)
		s.Require().NoError(err)
		s.Equal("A", w.Name)
	})

	s.Run("rejects non object payload", func() {
		_, err := Decode([]any{1, 2})
		s.ErrorIs(err, models.ErrInvalidRecord)

		_, err = Decode(nil)
		s.ErrorIs(err, models.ErrInvalidRecord)
	})

	s.Run("decodes list and keeps bad elements as rejects", func() {
		list, err := DecodeList([]any{
			map[string]any{"name": "A", "address": "B", "lat": 40.0, "lng": -75.0},
			"not an object",
		})
		s.Require().NoError(err)
		s.Require().Len(list, 2)

		_, err = s.validator.Sanitize(list[1])
		s.ErrorIs(err, models.ErrInvalidRecord)
	})

	s.Run("rejects non list batch", func() {
		_, err := DecodeList(map[string]any{"name": "A"})
		s.ErrorIs(err, models.ErrInvalidRecord)
	})
}

func (s *ValidatorSuite) TestBounds() {
	s.NoError(DefaultBounds().Validate())
	s.Error(Bounds{MinLat: 10, MaxLat: 5, MinLng: 0, MaxLng: 1}.Validate())
	s.Error(Bounds{MinLat: 0, MaxLat: 5, MinLng: 2, MaxLng: 1}.Validate())
	s.Error(Bounds{MinLat: math.NaN(), MaxLat: 5}.Validate())
}

// =============================================================================
// Properties
// =============================================================================

func TestSanitizeIsIdempotent(t *testing.T) {
	v := New(DefaultBounds())
	rapid.Check(t, func(t *rapid.T) {
		raw := models.RawWorker{
			Name:    rapid.StringMatching(`[ \tA-Za-z]{0,20}`).Draw(t, "name"),
			Address: rapid.StringMatching(`[ \t0-9A-Za-z]{0,30}`).Draw(t, "address"),
			Lat:     rapid.Float64Range(0, 90).Draw(t, "lat"),
			Lng:     rapid.Float64Range(-200, 0).Draw(t, "lng"),
			Level:   rapid.SampledFrom([]string{"critical", "HIGH", "medium", "low", "other"}).Draw(t, "level"),
		}

		w, err := v.Sanitize(raw)
		if err != nil {
			return
		}
		again, err := v.Revalidate(w)
		if err != nil {
			t.Fatalf("revalidating sanitized record failed: %v", err)
		}
		if again != w {
			t.Fatalf("sanitize not idempotent: %+v != %+v", again, w)
		}
		if !w.Level.IsValid() {
			t.Fatalf("level %q not normalized", w.Level)
		}
	})
}

func TestOutOfBoundsAlwaysRejected(t *testing.T) {
	v := New(DefaultBounds())
	rapid.Check(t, func(t *rapid.T) {
		lat := rapid.OneOf(rapid.Float64Range(-90, 17.999), rapid.Float64Range(73.001, 180)).Draw(t, "lat")
		_, err := v.Sanitize(models.RawWorker{Name: "A", Address: "B", Lat: lat, Lng: -75.0})
		if err == nil {
			t.Fatalf("lat %v accepted", lat)
		}
	})
}
