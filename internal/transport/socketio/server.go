// Package socketio adapts socket.io connections to the registry hub. Each
// socket becomes one hub connection; hub events are emitted under their own
// names and client events are routed to the matching hub operation.
package socketio

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io/v2/socket"

	"workerhub/internal/workers/hub"
	"workerhub/internal/workers/models"
)

// Server owns the socket.io server and its connections.
type Server struct {
	dispatcher
	io   *socket.Server
	opts *socket.ServerOptions
	ctx  context.Context
}

// New creates a socket.io server bound to h. ctx scopes every hub call made on
// behalf of clients. corsOrigin is sent as the allowed origin for browser
// viewers served from elsewhere.
func New(ctx context.Context, h Hub, logger *slog.Logger, corsOrigin string) *Server {
	opts := socket.DefaultServerOptions()
	opts.SetPingInterval(25 * time.Second)
	opts.SetPingTimeout(20 * time.Second)
	opts.SetMaxHttpBufferSize(1 << 20)
	if corsOrigin != "" {
		opts.SetCors(&types.Cors{Origin: corsOrigin, Credentials: corsOrigin != "*"})
	}

	s := &Server{
		dispatcher: dispatcher{hub: h, logger: logger},
		io:         socket.NewServer(nil, opts),
		opts:       opts,
		ctx:        ctx,
	}
	s.io.On("connection", func(args ...any) {
		if len(args) == 0 {
			return
		}
		client, ok := args[0].(*socket.Socket)
		if !ok {
			return
		}
		s.accept(client)
	})
	return s
}

// Handler serves the socket.io endpoint. Mount it at /socket.io/.
func (s *Server) Handler() http.Handler {
	return s.io.ServeHandler(s.opts)
}

// Close disconnects every client.
func (s *Server) Close() {
	s.io.Close(nil)
}

func (s *Server) accept(client *socket.Socket) {
	sid := string(client.Id())
	conn, err := s.hub.Connect(s.ctx, &clientSink{client: client})
	if err != nil {
		s.logger.Warn("refusing connection", "sid", sid, "error", err)
		client.Disconnect(true)
		return
	}
	log := s.logger.With("sid", sid, "conn_id", conn.ID())
	log.Info("client connected")

	client.On(models.OpAddWorker, func(args ...any) {
		s.dispatch(s.ctx, conn, models.OpAddWorker, args)
	})
	client.On(models.OpAddWorkersBatch, func(args ...any) {
		s.dispatch(s.ctx, conn, models.OpAddWorkersBatch, args)
	})
	client.On(models.OpRemoveWorker, func(args ...any) {
		s.dispatch(s.ctx, conn, models.OpRemoveWorker, args)
	})
	client.On(models.OpClearAll, func(args ...any) {
		s.dispatch(s.ctx, conn, models.OpClearAll, args)
	})
	client.On("disconnect", func(reason ...any) {
		if err := s.hub.Disconnect(context.Background(), conn); err != nil {
			log.Debug("disconnect after hub stopped", "error", err)
		}
		log.Info("client disconnected", "reason", reason)
	})
}

// clientSink emits hub events on one socket.
type clientSink struct {
	client *socket.Socket
}

func (c *clientSink) Deliver(ev models.Event) error {
	if ev.Payload == nil {
		return c.client.Emit(string(ev.Name))
	}
	return c.client.Emit(string(ev.Name), ev.Payload)
}

// Close drops the client. It reconnects to a fresh snapshot.
func (c *clientSink) Close() {
	c.client.Disconnect(true)
}

var _ hub.Sink = (*clientSink)(nil)
