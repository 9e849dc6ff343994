package httptransport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/suite"

	"workerhub/internal/platform/metrics"
	"workerhub/internal/workers/hub"
	"workerhub/internal/workers/models"
	"workerhub/pkg/platform/httputil"
	"workerhub/pkg/platform/sentinel"
	"workerhub/pkg/testutil"
)

type stubRegistry struct {
	workers []models.Worker
	stats   hub.Stats
	err     error
}

func (s *stubRegistry) Snapshot(context.Context) ([]models.Worker, error) {
	return models.Clone(s.workers), s.err
}

func (s *stubRegistry) Stats(context.Context) (hub.Stats, error) {
	return s.stats, s.err
}

type HandlerSuite struct {
	suite.Suite
	registry *stubRegistry
	router   http.Handler
	reg      *prometheus.Registry
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.registry = &stubRegistry{}
	s.reg = prometheus.NewRegistry()
	s.router = NewRouter(
		NewHandler(s.registry, logger),
		promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}),
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusAccepted) }),
		logger,
	)
}

func (s *HandlerSuite) get(path string) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, path))
}

func (s *HandlerSuite) TestListWorkers() {
	s.Run("empty registry is an empty array", func() {
		rr := s.get("/api/workers")
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		s.JSONEq(`[]`, rr.Body.String())
	})

	s.Run("returns records in insertion order", func() {
		s.registry.workers = []models.Worker{
			{Name: "B", Address: "2 Main St", Lat: 40, Lng: -75, Level: models.LevelHigh},
			{Name: "A", Address: "1 Main St", Lat: 41, Lng: -76, Level: models.LevelLow},
		}
		rr := s.get("/api/workers")
		testutil.AssertStatus(s.T(), rr, http.StatusOK)

		got := testutil.UnmarshalResponse[[]models.Worker](s.T(), rr)
		s.Equal(s.registry.workers, got)
	})

	s.Run("stopped hub is unavailable", func() {
		s.registry.err = fmt.Errorf("snapshot: %w", sentinel.ErrClosed)
		rr := s.get("/api/workers")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusServiceUnavailable, httputil.CodeUnavailable)
	})
}

func (s *HandlerSuite) TestHealth() {
	s.registry.stats = hub.Stats{Workers: 3, Connections: 2}

	rr := s.get("/health")
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	s.JSONEq(`{"status":"ok","workers":3,"connections":2}`, rr.Body.String())
}

func (s *HandlerSuite) TestMetricsAndSocketMounted() {
	m := metrics.New(s.reg)
	m.SetRegistrySize(7)

	rr := s.get("/metrics")
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	s.Contains(rr.Body.String(), "workerhub_registry_size 7")

	rr = s.get("/socket.io/?EIO=4&transport=polling")
	testutil.AssertStatus(s.T(), rr, http.StatusAccepted)
}

func (s *HandlerSuite) TestMutationsNotExposed() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/api/workers"))
	testutil.AssertStatus(s.T(), rr, http.StatusMethodNotAllowed)
}
