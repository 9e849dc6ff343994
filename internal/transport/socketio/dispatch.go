package socketio

import (
	"context"
	"log/slog"

	"workerhub/internal/workers/hub"
	"workerhub/internal/workers/models"
	"workerhub/internal/workers/validation"
)

// Hub is the part of the registry hub the adapter drives.
type Hub interface {
	Connect(ctx context.Context, sink hub.Sink) (*hub.Conn, error)
	Disconnect(ctx context.Context, c *hub.Conn) error
	AddOne(ctx context.Context, c *hub.Conn, raw models.RawWorker) (hub.Result, error)
	AddBatch(ctx context.Context, c *hub.Conn, raws []models.RawWorker) (hub.Result, error)
	RemoveOne(ctx context.Context, c *hub.Conn, raw models.RawWorker) (hub.Result, error)
	ClearAll(ctx context.Context, c *hub.Conn) (hub.Result, error)
}

// Ack is the callback a client attaches when it wants a direct reply.
type Ack func([]any, error)

// dispatcher turns one inbound client message into a hub call. Payloads that
// cannot be decoded are still submitted (as empty records) so the hub applies
// its usual rate limit and rejection rules.
type dispatcher struct {
	hub    Hub
	logger *slog.Logger
}

func (d *dispatcher) dispatch(ctx context.Context, conn *hub.Conn, op string, args []any) {
	args, ack := splitAck(args)
	var payload any
	if len(args) > 0 {
		payload = args[0]
	}

	var (
		res hub.Result
		err error
	)
	switch op {
	case models.OpAddWorker:
		raw, derr := validation.Decode(payload)
		d.logDecode(conn, op, derr)
		res, err = d.hub.AddOne(ctx, conn, raw)
	case models.OpAddWorkersBatch:
		raws, derr := validation.DecodeList(payload)
		d.logDecode(conn, op, derr)
		res, err = d.hub.AddBatch(ctx, conn, raws)
	case models.OpRemoveWorker:
		raw, derr := validation.Decode(payload)
		d.logDecode(conn, op, derr)
		res, err = d.hub.RemoveOne(ctx, conn, raw)
	case models.OpClearAll:
		res, err = d.hub.ClearAll(ctx, conn)
	default:
		d.logger.Debug("ignoring unknown operation", "conn_id", conn.ID(), "op", op)
		return
	}

	if err != nil {
		d.logger.Warn("operation not applied", "conn_id", conn.ID(), "op", op, "error", err)
		return
	}
	if op == models.OpAddWorkersBatch && ack != nil && res.Outcome != hub.OutcomeRateLimited {
		ack([]any{models.BatchResult{Accepted: res.Accepted}}, nil)
	}
}

func (d *dispatcher) logDecode(conn *hub.Conn, op string, err error) {
	if err != nil {
		d.logger.Debug("malformed payload", "conn_id", conn.ID(), "op", op, "error", err)
	}
}

// splitAck removes a trailing acknowledgement callback from args.
func splitAck(args []any) ([]any, Ack) {
	if len(args) == 0 {
		return args, nil
	}
	switch fn := args[len(args)-1].(type) {
	case func([]any, error):
		return args[:len(args)-1], fn
	case Ack:
		return args[:len(args)-1], fn
	}
	return args, nil
}
