// Package testhelpers provides reusable testing utilities for CareCall.
//
// This package contains:
// - HTTP test helpers (requests, envelope and CORS assertions)
// - SQLite-backed storage environments with a controllable clock
// - Recording notifiers and publishers
package testhelpers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/carecall/carecall/internal/database"
	"github.com/carecall/carecall/internal/models"
	"github.com/carecall/carecall/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ========================================
// HTTP Test Helpers
// ========================================

// HTTPTestContext holds components for HTTP handler testing
type HTTPTestContext struct {
	T        *testing.T
	Recorder *httptest.ResponseRecorder
	Request  *http.Request
}

// NewHTTPTestContext creates a new HTTP test context
func NewHTTPTestContext(t *testing.T, method, path string, body io.Reader) *HTTPTestContext {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	return &HTTPTestContext{
		T:        t,
		Recorder: httptest.NewRecorder(),
		Request:  req,
	}
}

// WithHeader adds a header to the request
func (ctx *HTTPTestContext) WithHeader(key, value string) *HTTPTestContext {
	ctx.Request.Header.Set(key, value)
	return ctx
}

// WithJSONBody sets JSON body on the request
func (ctx *HTTPTestContext) WithJSONBody(v interface{}) *HTTPTestContext {
	ctx.T.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		ctx.T.Fatalf("failed to marshal JSON body: %v", err)
	}
	return ctx.WithRawBody(string(body))
}

// WithRawBody sets a raw (possibly malformed) body on the request
func (ctx *HTTPTestContext) WithRawBody(body string) *HTTPTestContext {
	ctx.Request = httptest.NewRequest(ctx.Request.Method, ctx.Request.URL.String(), bytes.NewReader([]byte(body)))
	ctx.Request.Header.Set("Content-Type", "application/json")
	return ctx
}

// Execute runs the handler and returns the response
func (ctx *HTTPTestContext) Execute(handler http.Handler) *HTTPTestContext {
	handler.ServeHTTP(ctx.Recorder, ctx.Request)
	return ctx
}

// AssertStatus checks the response status code
func (ctx *HTTPTestContext) AssertStatus(expected int) *HTTPTestContext {
	ctx.T.Helper()
	if ctx.Recorder.Code != expected {
		ctx.T.Errorf("expected status %d, got %d. Body: %s", expected, ctx.Recorder.Code, ctx.Recorder.Body.String())
	}
	return ctx
}

// AssertBodyContains checks if response body contains substring
func (ctx *HTTPTestContext) AssertBodyContains(substr string) *HTTPTestContext {
	ctx.T.Helper()
	body := ctx.Recorder.Body.String()
	if !strings.Contains(body, substr) {
		ctx.T.Errorf("expected body to contain %q, got: %s", substr, body)
	}
	return ctx
}

// AssertHeader checks response header value
func (ctx *HTTPTestContext) AssertHeader(key, expected string) *HTTPTestContext {
	ctx.T.Helper()
	got := ctx.Recorder.Header().Get(key)
	if got != expected {
		ctx.T.Errorf("expected header %s=%q, got %q", key, expected, got)
	}
	return ctx
}

// AssertEnvelope checks the invariants every response must satisfy: a JSON
// content type, the permissive CORS origin, a JSON body, and a non-empty
// "error" field for statuses >= 400.
func (ctx *HTTPTestContext) AssertEnvelope() *HTTPTestContext {
	ctx.T.Helper()
	if ctx.Recorder.Code < 200 || ctx.Recorder.Code > 599 {
		ctx.T.Errorf("status %d outside [200,599]", ctx.Recorder.Code)
	}
	ctx.AssertHeader("Content-Type", "application/json")
	ctx.AssertHeader("Access-Control-Allow-Origin", "*")

	var body map[string]interface{}
	if err := json.Unmarshal(ctx.Recorder.Body.Bytes(), &body); err != nil {
		ctx.T.Errorf("body is not a JSON object: %v (%s)", err, ctx.Recorder.Body.String())
		return ctx
	}
	if ctx.Recorder.Code >= 400 {
		if msg, _ := body["error"].(string); msg == "" {
			ctx.T.Errorf("expected non-empty error field, got %s", ctx.Recorder.Body.String())
		}
	}
	return ctx
}

// DecodeJSON decodes response body as JSON
func (ctx *HTTPTestContext) DecodeJSON(v interface{}) *HTTPTestContext {
	ctx.T.Helper()
	if err := json.Unmarshal(ctx.Recorder.Body.Bytes(), v); err != nil {
		ctx.T.Fatalf("failed to decode JSON response: %v", err)
	}
	return ctx
}

// ========================================
// Storage Environment
// ========================================

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts the clock at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// BaseTime is the fixed instant test clocks start from.
var BaseTime = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

// TestEnv is a storage stack over an in-memory SQLite database.
type TestEnv struct {
	T        *testing.T
	DB       *gorm.DB
	Tables   database.Tables
	Episodes *store.EpisodeRepository
	Records  *store.FallbackStore
	Clock    *Clock
	Logger   *zap.Logger
	Logs     *observer.ObservedLogs
}

// NewTestDB opens an in-memory SQLite database. When withSubTables is false
// only the episode table exists, which exercises the embedded fallback path.
func NewTestDB(t *testing.T, withSubTables bool) *gorm.DB {
	t.Helper()
	db, err := database.Connect(database.DriverSQLite, ":memory:", logger.Silent)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if withSubTables {
		err = database.Migrate(db, database.DefaultTables(), nil)
	} else {
		err = database.MigrateEpisodesOnly(db, database.DefaultTables())
	}
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// NewTestEnv builds the storage stack with an observed logger at debug level.
func NewTestEnv(t *testing.T, withSubTables bool) *TestEnv {
	t.Helper()
	db := NewTestDB(t, withSubTables)
	clock := NewClock(BaseTime)
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)
	tables := database.DefaultTables()
	episodes := store.NewEpisodeRepository(db, tables.Episodes, clock.Now)
	records := store.New(episodes, store.NewTableStore(db, tables.Alerts, tables.Escalations, clock.Now), log)
	return &TestEnv{
		T:        t,
		DB:       db,
		Tables:   tables,
		Episodes: episodes,
		Records:  records,
		Clock:    clock,
		Logger:   log,
		Logs:     logs,
	}
}

// SeedEpisode inserts an episode and fails the test on error.
func (e *TestEnv) SeedEpisode(ep models.Episode) *models.Episode {
	e.T.Helper()
	if err := e.Episodes.CreateEpisode(context.Background(), &ep); err != nil {
		e.T.Fatalf("seed episode %s: %v", ep.EpisodeID, err)
	}
	return &ep
}

// Episode reloads an episode and fails the test on error.
func (e *TestEnv) Episode(id string) *models.Episode {
	e.T.Helper()
	ep, err := e.Episodes.GetEpisode(context.Background(), id)
	if err != nil {
		e.T.Fatalf("load episode %s: %v", id, err)
	}
	return ep
}

// SequentialIDs returns an id generator yielding prefix-1, prefix-2, ...
func SequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}
