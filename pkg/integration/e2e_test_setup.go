//go:build e2e
// +build e2e

// Package integration provides end-to-end tests of the progress service over a real database
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wollisellis/vireiaestatistica-sub002/internal/health"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/catalog"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/config"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/http/handlers"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/integration/fixtures"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/metrics"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/repository"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/services/engine"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/services/events"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/services/leaderboard"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/services/scoring"
	wssvc "github.com/wollisellis/vireiaestatistica-sub002/pkg/services/websocket"
)

// E2ETestSetup wires the whole service over a SQLite file and serves it with httptest
type E2ETestSetup struct {
	T *testing.T

	Registry    *repository.Registry
	Catalog     *catalog.Catalog
	Engine      *engine.Engine
	Leaderboard *leaderboard.Service
	Broadcaster *wssvc.Broadcaster
	EventBus    *events.SimpleBus
	Metrics     *metrics.Metrics
	Server      *httptest.Server
	Attempts    *fixtures.AttemptGenerator

	Ctx    context.Context
	Cancel context.CancelFunc
}

// NewE2ETestSetup creates a complete E2E test environment
func NewE2ETestSetup(t *testing.T) *E2ETestSetup {
	t.Helper()
	cfg := config.Default()
	cfg.Leaderboard.RefreshInterval = 50 * time.Millisecond

	db, err := repository.Open(config.DatabaseConfig{Type: "sqlite", Path: filepath.Join(t.TempDir(), "e2e.db")})
	require.NoError(t, err, "failed to open E2E test database")
	registry := repository.NewRegistry(db)
	require.NoError(t, registry.Initialize(), "failed to migrate E2E test database")

	cat, err := catalog.Default()
	require.NoError(t, err)
	calc, err := scoring.NewCalculator(cfg.Scoring)
	require.NoError(t, err)

	bus := events.NewSimpleBus(1024)
	m := metrics.New()
	eng := engine.New(cat, calc, registry.Gateway, engine.WithBus(bus), engine.WithMetrics(m))
	lb := leaderboard.NewService(registry.Gateway, cfg.Leaderboard, leaderboard.WithMetrics(m))
	bus.Subscribe(lb)
	broadcaster := wssvc.NewBroadcaster(lb, wssvc.WithMetrics(m))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	go lb.Run(ctx)

	router := handlers.NewRouter(handlers.Dependencies{
		Engine:             eng,
		Leaderboard:        lb,
		Broadcaster:        broadcaster,
		Health:             health.NewHealthChecker(health.Probe{Name: "database", Critical: true, Check: registry.Gateway.Ping}),
		Metrics:            m,
		MaxConflictRetries: 10,
	})

	setup := &E2ETestSetup{
		T:           t,
		Registry:    registry,
		Catalog:     cat,
		Engine:      eng,
		Leaderboard: lb,
		Broadcaster: broadcaster,
		EventBus:    bus,
		Metrics:     m,
		Server:      httptest.NewServer(router),
		Attempts:    fixtures.NewAttemptGenerator(42),
		Ctx:         ctx,
		Cancel:      cancel,
	}
	t.Cleanup(setup.Cleanup)
	return setup
}

// Cleanup tears down all test resources
func (e *E2ETestSetup) Cleanup() {
	e.Broadcaster.Stop()
	e.Server.Close()
	e.Cancel()
	e.EventBus.Close()
	_ = e.Registry.Close()
}

// Submit posts an attempt and decodes the result; non-201 answers fail the test
func (e *E2ETestSetup) Submit(studentID, exerciseID string, attempt fixtures.Attempt) *engine.SubmissionResult {
	e.T.Helper()
	var result engine.SubmissionResult
	status := e.do(http.MethodPost, fmt.Sprintf("/api/v1/students/%s/exercises/%s/attempts", studentID, exerciseID), attempt, &result)
	require.Equal(e.T, http.StatusCreated, status, "submission of %s by %s", exerciseID, studentID)
	return &result
}

// Get fetches path and decodes the response data into out, returning the status
func (e *E2ETestSetup) Get(path string, out interface{}) int {
	e.T.Helper()
	return e.do(http.MethodGet, path, nil, out)
}

// Post posts to path without a body and decodes the response data into out
func (e *E2ETestSetup) Post(path string, out interface{}) int {
	e.T.Helper()
	return e.do(http.MethodPost, path, nil, out)
}

func (e *E2ETestSetup) do(method, path string, body, out interface{}) int {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.T, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(e.Ctx, method, e.Server.URL+path, &buf)
	require.NoError(e.T, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Server.Client().Do(req)
	require.NoError(e.T, err)
	defer resp.Body.Close()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(e.T, json.NewDecoder(resp.Body).Decode(&envelope))
	if out != nil && len(envelope.Data) > 0 {
		require.NoError(e.T, json.Unmarshal(envelope.Data, out))
	}
	return resp.StatusCode
}
