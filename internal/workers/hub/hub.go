// Package hub owns the shared worker registry.
//
// Every mutation and every read of the registry runs on a single goroutine
// (Run), one operation at a time in arrival order. Broadcasts for an
// operation are queued to all connections before the next operation starts,
// so every viewer observes the same totally ordered event stream. Snapshot
// writes are handed to the store without waiting; the store serializes them.
package hub

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"workerhub/internal/audit"
	"workerhub/internal/platform/metrics"
	"workerhub/internal/ratelimit/window"
	"workerhub/internal/workers/dedup"
	"workerhub/internal/workers/models"
	"workerhub/internal/workers/validation"
	"workerhub/pkg/platform/sentinel"
)

// Store loads the persisted registry once at startup and accepts snapshots
// afterwards. Save must not block on the write itself.
type Store interface {
	Load(ctx context.Context) ([]models.Worker, error)
	Save(workers []models.Worker) <-chan error
}

// Outcome describes what an operation did.
type Outcome string

const (
	OutcomeAccepted    Outcome = metrics.OutcomeAccepted
	OutcomeNoop        Outcome = metrics.OutcomeNoop
	OutcomeInvalid     Outcome = metrics.OutcomeInvalid
	OutcomeDuplicate   Outcome = metrics.OutcomeDuplicate
	OutcomeLimit       Outcome = metrics.OutcomeLimit
	OutcomeRateLimited Outcome = metrics.OutcomeRateLimited
)

// Result is returned to the transport for each submitted operation.
type Result struct {
	Outcome  Outcome
	Accepted int
}

// Stats is the liveness view of the hub.
type Stats struct {
	Workers     int `json:"workers"`
	Connections int `json:"connections"`
}

// Hub is the single owner of the registry and its dedup index.
type Hub struct {
	store      Store
	validator  *validation.Validator
	feed       audit.Publisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	maxWorkers int
	limits     window.Config
	bufferSize int
	now        func() time.Time

	ops     chan func()
	ready   chan struct{}
	stopped chan struct{}

	// Owned by the Run goroutine.
	runCtx  context.Context
	workers []models.Worker
	index   *dedup.Index
	conns   map[string]*Conn
}

// New constructs a Hub. Call Run to restore persisted state and start
// serving operations.
func New(store Store, opts ...Option) (*Hub, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	h := &Hub{
		store:      store,
		validator:  validation.New(validation.DefaultBounds()),
		feed:       audit.Nop{},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:     otel.Tracer("workerhub/hub"),
		maxWorkers: DefaultMaxWorkers,
		limits:     window.DefaultConfig(),
		bufferSize: DefaultSubscriberBuffer,
		now:        time.Now,
		ops:        make(chan func()),
		ready:      make(chan struct{}),
		stopped:    make(chan struct{}),
		conns:      make(map[string]*Conn),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.maxWorkers <= 0 {
		return nil, errors.New("max workers must be positive")
	}
	if h.bufferSize <= 0 {
		return nil, errors.New("subscriber buffer must be positive")
	}
	if err := h.limits.Validate(); err != nil {
		return nil, err
	}
	h.index = dedup.New(h.maxWorkers)
	return h, nil
}

// Ready is closed once persisted state has been restored.
func (h *Hub) Ready() <-chan struct{} {
	return h.ready
}

// Run restores the registry from the store and then processes operations
// until ctx is cancelled. It must be called exactly once.
func (h *Hub) Run(ctx context.Context) error {
	h.runCtx = ctx
	h.restore(ctx)
	close(h.ready)

	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case op := <-h.ops:
			op()
		}
	}
}

// restore loads the snapshot and re-validates every record. Missing,
// unreadable or corrupt storage degrades to an empty registry and is
// overwritten at once.
func (h *Hub) restore(ctx context.Context) {
	loaded, err := h.store.Load(ctx)
	heal := false
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		h.logger.Info("no persisted registry, writing empty snapshot")
		loaded = nil
		heal = true
	case err != nil:
		h.logger.Warn("persisted registry unreadable, starting empty", "error", err)
		loaded = nil
		heal = true
	}

	dropped := 0
	for _, w := range loaded {
		clean, err := h.validator.Revalidate(w)
		if err != nil || len(h.workers) >= h.maxWorkers || !h.index.Insert(clean.Key()) {
			dropped++
			continue
		}
		h.workers = append(h.workers, clean)
	}
	if dropped > 0 {
		h.logger.Warn("dropped invalid or duplicate persisted records", "dropped", dropped)
		heal = true
	}
	if heal {
		h.persist()
	}
	h.metrics.SetRegistrySize(len(h.workers))
	h.logger.Info("registry restored", "count", len(h.workers))
}

func (h *Hub) shutdown() {
	for id, c := range h.conns {
		delete(h.conns, id)
		close(c.out)
	}
	h.metrics.SetConnections(0)
	close(h.stopped)
}

// exec runs fn on the hub goroutine and waits for it to finish.
func (h *Hub) exec(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	op := func() {
		defer close(done)
		fn()
	}
	select {
	case h.ops <- op:
	case <-h.stopped:
		return sentinel.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-done
	return nil
}

// -----------------------------------------------------------------------------
// Connections
// -----------------------------------------------------------------------------

// Connect registers a viewer and queues the current registry snapshot as its
// first event. Events broadcast afterwards follow the snapshot in order.
func (h *Hub) Connect(ctx context.Context, sink Sink) (*Conn, error) {
	c := &Conn{
		id:      uuid.NewString(),
		sink:    sink,
		limiter: window.New(h.limits, window.WithClock(h.now)),
		out:     make(chan models.Event, h.bufferSize),
		done:    make(chan struct{}),
	}

	err := h.exec(ctx, func() {
		h.conns[c.id] = c
		c.out <- models.Event{Name: models.EventCurrentWorkers, Payload: models.Clone(h.workers)}
		h.metrics.SetConnections(len(h.conns))
	})
	if err != nil {
		return nil, err
	}

	go c.pump(h.logger)
	h.logger.Debug("connection registered", "conn_id", c.id)
	return c, nil
}

// Disconnect stops delivery to c. Operations c already submitted still
// complete and broadcast to everyone else.
func (h *Hub) Disconnect(ctx context.Context, c *Conn) error {
	return h.exec(ctx, func() {
		h.remove(c)
	})
}

func (h *Hub) remove(c *Conn) {
	if _, ok := h.conns[c.id]; !ok {
		return
	}
	delete(h.conns, c.id)
	close(c.out)
	h.metrics.SetConnections(len(h.conns))
}

// send queues ev for c, evicting c if its outbox is full.
func (h *Hub) send(c *Conn, ev models.Event) {
	select {
	case c.out <- ev:
	default:
		c.evicted.Store(true)
		h.remove(c)
		h.metrics.IncEvictions()
		h.logger.Warn("evicted slow connection", "conn_id", c.id, "buffer", h.bufferSize)
	}
}

// reply queues ev for the submitting connection only, if it is still here.
func (h *Hub) reply(c *Conn, ev models.Event) {
	if c == nil {
		return
	}
	if _, ok := h.conns[c.id]; !ok {
		return
	}
	h.send(c, ev)
}

func (h *Hub) broadcast(ev models.Event) {
	for _, c := range h.conns {
		h.send(c, ev)
	}
}

// -----------------------------------------------------------------------------
// Operations
// -----------------------------------------------------------------------------

// admit applies the submitter's rate limit. Operations from a nil connection
// are server initiated and never throttled.
func (h *Hub) admit(c *Conn, op string) bool {
	if c == nil || c.limiter.Allow() {
		return true
	}
	h.metrics.IncOperation(op, metrics.OutcomeRateLimited)
	h.logger.Debug("operation dropped by rate limit", "conn_id", c.id, "op", op, "remaining", c.limiter.Remaining())
	return false
}

// AddOne validates raw and appends it to the registry unless a record with
// the same canonical key exists or the registry is full. Rejections are
// reported to c only; rate-limited calls are dropped silently.
func (h *Hub) AddOne(ctx context.Context, c *Conn, raw models.RawWorker) (Result, error) {
	ctx, span := h.tracer.Start(ctx, "hub.AddOne")
	defer span.End()

	if !h.admit(c, models.OpAddWorker) {
		return h.finish(span, Result{Outcome: OutcomeRateLimited}), nil
	}

	w, verr := h.validator.Sanitize(raw)
	var res Result
	err := h.exec(ctx, func() {
		switch {
		case verr != nil:
			res = h.reject(c, models.ReasonInvalid, OutcomeInvalid)
		case h.index.Contains(w.Key()):
			res = h.reject(c, models.ReasonDuplicate, OutcomeDuplicate)
		case len(h.workers) >= h.maxWorkers:
			res = h.reject(c, models.ReasonLimit, OutcomeLimit)
		default:
			h.workers = append(h.workers, w)
			h.index.Insert(w.Key())
			h.persist()
			h.broadcast(models.Event{Name: models.EventWorkerAdded, Payload: w})
			h.publish(c, models.EventWorkerAdded, []models.Worker{w})
			res = Result{Outcome: OutcomeAccepted, Accepted: 1}
		}
		h.metrics.IncOperation(models.OpAddWorker, string(res.Outcome))
	})
	if err != nil {
		return Result{}, err
	}
	return h.finish(span, res), nil
}

func (h *Hub) reject(c *Conn, reason models.Reason, outcome Outcome) Result {
	h.reply(c, models.Event{Name: models.EventAddWorkerRejected, Payload: models.Rejection{Reason: reason}})
	return Result{Outcome: outcome}
}

// AddBatch accepts each valid, non-duplicate element of raws in order until
// the registry is full. Accepted records go out as one broadcast and one
// snapshot write; the submitter learns only the accepted count.
func (h *Hub) AddBatch(ctx context.Context, c *Conn, raws []models.RawWorker) (Result, error) {
	ctx, span := h.tracer.Start(ctx, "hub.AddBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(raws)))

	if !h.admit(c, models.OpAddWorkersBatch) {
		return h.finish(span, Result{Outcome: OutcomeRateLimited}), nil
	}

	candidates := make([]models.Worker, 0, len(raws))
	for _, raw := range raws {
		if w, err := h.validator.Sanitize(raw); err == nil {
			candidates = append(candidates, w)
		}
	}

	var res Result
	err := h.exec(ctx, func() {
		var accepted []models.Worker
		for _, w := range candidates {
			if len(h.workers) >= h.maxWorkers {
				break
			}
			if !h.index.Insert(w.Key()) {
				continue
			}
			h.workers = append(h.workers, w)
			accepted = append(accepted, w)
		}

		res = Result{Outcome: OutcomeNoop, Accepted: len(accepted)}
		if len(accepted) > 0 {
			res.Outcome = OutcomeAccepted
			h.persist()
			h.broadcast(models.Event{Name: models.EventWorkersAddedBatch, Payload: accepted})
			h.publish(c, models.EventWorkersAddedBatch, accepted)
		}
		h.reply(c, models.Event{Name: models.EventWorkersBatchResult, Payload: models.BatchResult{Accepted: len(accepted)}})
		h.metrics.IncOperation(models.OpAddWorkersBatch, string(res.Outcome))
	})
	if err != nil {
		return Result{}, err
	}
	return h.finish(span, res), nil
}

// RemoveOne deletes the record whose canonical key matches raw. Only name and
// address are needed. Unknown keys and malformed input are no-ops.
func (h *Hub) RemoveOne(ctx context.Context, c *Conn, raw models.RawWorker) (Result, error) {
	ctx, span := h.tracer.Start(ctx, "hub.RemoveOne")
	defer span.End()

	if !h.admit(c, models.OpRemoveWorker) {
		return h.finish(span, Result{Outcome: OutcomeRateLimited}), nil
	}

	key, kerr := h.validator.Key(raw)
	res := Result{Outcome: OutcomeNoop}
	err := h.exec(ctx, func() {
		defer func() { h.metrics.IncOperation(models.OpRemoveWorker, string(res.Outcome)) }()
		if kerr != nil || !h.index.Contains(key) {
			return
		}
		i := slices.IndexFunc(h.workers, func(w models.Worker) bool { return w.Key() == key })
		if i < 0 {
			h.logger.Error("dedup index out of sync with registry", "key", key)
			h.index.Remove(key)
			return
		}
		removed := h.workers[i]
		h.workers = slices.Delete(h.workers, i, i+1)
		h.index.Remove(key)
		h.persist()
		h.broadcast(models.Event{Name: models.EventWorkerRemoved, Payload: removed})
		h.publish(c, models.EventWorkerRemoved, []models.Worker{removed})
		res = Result{Outcome: OutcomeAccepted, Accepted: 1}
	})
	if err != nil {
		return Result{}, err
	}
	return h.finish(span, res), nil
}

// ClearAll empties the registry and its index in one step.
func (h *Hub) ClearAll(ctx context.Context, c *Conn) (Result, error) {
	ctx, span := h.tracer.Start(ctx, "hub.ClearAll")
	defer span.End()

	if !h.admit(c, models.OpClearAll) {
		return h.finish(span, Result{Outcome: OutcomeRateLimited}), nil
	}

	var res Result
	err := h.exec(ctx, func() {
		h.workers = nil
		h.index.Clear()
		h.persist()
		h.broadcast(models.Event{Name: models.EventAllCleared})
		h.publish(c, models.EventAllCleared, nil)
		res = Result{Outcome: OutcomeAccepted}
		h.metrics.IncOperation(models.OpClearAll, string(res.Outcome))
	})
	if err != nil {
		return Result{}, err
	}
	return h.finish(span, res), nil
}

func (h *Hub) finish(span trace.Span, res Result) Result {
	span.SetAttributes(
		attribute.String("outcome", string(res.Outcome)),
		attribute.Int("accepted", res.Accepted),
	)
	return res
}

// -----------------------------------------------------------------------------
// Read-only inspection
// -----------------------------------------------------------------------------

// Snapshot returns a copy of the registry in insertion order.
func (h *Hub) Snapshot(ctx context.Context) ([]models.Worker, error) {
	var out []models.Worker
	err := h.exec(ctx, func() {
		out = models.Clone(h.workers)
	})
	return out, err
}

// Stats reports registry size and connection count.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := h.exec(ctx, func() {
		s = Stats{Workers: len(h.workers), Connections: len(h.conns)}
	})
	return s, err
}

// -----------------------------------------------------------------------------
// Side effects of committed mutations
// -----------------------------------------------------------------------------

// persist hands a copy of the registry to the store. The store logs failed
// writes; the in-memory mutation stands either way.
func (h *Hub) persist() {
	h.store.Save(models.Clone(h.workers))
	h.metrics.SetRegistrySize(len(h.workers))
}

func (h *Hub) publish(c *Conn, name models.EventName, workers []models.Worker) {
	ev := audit.Event{Type: name, Workers: workers, Size: len(h.workers)}
	if c != nil {
		ev.ConnID = c.id
	}
	if err := h.feed.Publish(h.runCtx, ev); err != nil {
		h.metrics.IncFeedPublishFailures()
		h.logger.Warn("failed to publish change feed event", "event", name, "error", err)
	}
}
