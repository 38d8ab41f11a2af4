package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/sellerwatch/config"
	"github.com/use-agent/sellerwatch/events"
	"github.com/use-agent/sellerwatch/models"
	"github.com/use-agent/sellerwatch/store"
)

type fakeRuns struct {
	running atomic.Bool
	calls   atomic.Int32
	last    *models.RunSummary
	mu      sync.Mutex
	done    chan struct{}
}

func (f *fakeRuns) ExecuteTasks(context.Context) (*models.RunSummary, error) {
	f.calls.Add(1)
	if f.done != nil {
		defer close(f.done)
	}
	return &models.RunSummary{RunID: "r1"}, nil
}

func (f *fakeRuns) Running() bool { return f.running.Load() }

func (f *fakeRuns) LastRun() *models.RunSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type testServer struct {
	router *gin.Engine
	store  *store.Store
	runs   *fakeRuns
	hub    *events.Hub
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: gin.TestMode},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}
	if mutate != nil {
		mutate(cfg)
	}

	st, err := store.Open(config.DBConfig{Type: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, st.Migrate())
	t.Cleanup(func() { _ = st.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	runs := &fakeRuns{}
	hub := events.NewHub(8, "", "")
	r := NewRouter(ctx, cfg, Deps{
		Store:    st,
		Runs:     runs,
		Hub:      hub,
		Gatherer: prometheus.NewRegistry(),
	}, time.Now())
	return &testServer{router: r, store: st, runs: runs, hub: hub}
}

func (s *testServer) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[models.HealthResponse](t, w)
	assert.Equal(t, "healthy", body.Status)
	assert.False(t, body.Running)
	assert.Nil(t, body.LastRun)

	s.runs.mu.Lock()
	s.runs.last = &models.RunSummary{RunID: "r0", Error: "NO_PROXY: no active proxy configured"}
	s.runs.mu.Unlock()

	body = decode[models.HealthResponse](t, s.do(http.MethodGet, "/api/v1/health", ""))
	assert.Equal(t, "degraded", body.Status)
	require.NotNil(t, body.LastRun)
	assert.Equal(t, "r0", body.LastRun.RunID)
}

func TestTasks_CreateListGet(t *testing.T) {
	s := newTestServer(t, nil)
	sub, cancel := s.hub.Subscribe()
	defer cancel()

	w := s.do(http.MethodPost, "/api/v1/tasks",
		`{"task_name":"shop","merchant_id":"123456","min_price":1000,"max_price":5000,"frequency":2}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.Task](t, w)
	assert.NotZero(t, created.ID)
	assert.Equal(t, models.StatusPending, created.Status)
	assert.Equal(t, models.FrequencyRecurring, created.Frequency)

	select {
	case ev := <-sub:
		assert.Equal(t, events.TaskRefresh, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("no task-refresh event")
	}

	list := decode[models.ListResponse[models.Task]](t, s.do(http.MethodGet, "/api/v1/tasks", ""))
	assert.Equal(t, 1, list.Total)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "123456", list.Items[0].MerchantID)

	got := decode[models.Task](t, s.do(http.MethodGet, "/api/v1/tasks/"+itoa(created.ID), ""))
	assert.Equal(t, created.ID, got.ID)
}

func TestTasks_CreateRejectsInvalid(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"merchant_id":`},
		{"missing merchant", `{"max_price":10,"frequency":1}`},
		{"inverted range", `{"merchant_id":"m","min_price":50,"max_price":10,"frequency":1}`},
		{"unknown frequency", `{"merchant_id":"m","max_price":10,"frequency":9}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/api/v1/tasks", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			body := decode[models.ErrorResponse](t, w)
			require.NotNil(t, body.Error)
			assert.Equal(t, models.ErrCodeInvalidInput, body.Error.Code)
		})
	}
}

func TestTasks_GetErrors(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/api/v1/tasks/42", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, models.ErrCodeNotFound, decode[models.ErrorResponse](t, w).Error.Code)

	w = s.do(http.MethodGet, "/api/v1/tasks/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSnapshots_ListByDay(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	task := &models.Task{MerchantID: "m", MaxPrice: 10, Frequency: models.FrequencyOnce}
	require.NoError(t, s.store.CreateTask(ctx, task))
	require.NoError(t, s.store.CreateSnapshot(ctx, &models.Snapshot{TaskID: task.ID, MerchantID: "m", ProductID: "m1", Days: "2024-01-01", Favorites: 3}))
	require.NoError(t, s.store.CreateSnapshot(ctx, &models.Snapshot{TaskID: task.ID, MerchantID: "m", ProductID: "m1", Days: "2024-01-02", Favorites: 4}))

	base := "/api/v1/tasks/" + itoa(task.ID) + "/snapshots"

	all := decode[models.ListResponse[models.Snapshot]](t, s.do(http.MethodGet, base, ""))
	assert.Equal(t, 2, all.Total)

	day := decode[models.ListResponse[models.Snapshot]](t, s.do(http.MethodGet, base+"?day=2024-01-02", ""))
	require.Equal(t, 1, day.Total)
	assert.Equal(t, 4, day.Items[0].Favorites)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, base+"?day=01/02/2024", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/tasks/999/snapshots", "").Code)
}

func TestProxy_Set(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPut, "/api/v1/proxy", `{"proxy_url":"http://10.0.0.1:3128"}`)
	require.Equal(t, http.StatusOK, w.Code)

	p, err := s.store.ActiveProxy(context.Background())
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "http://10.0.0.1:3128", p.ProxyURL)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/api/v1/proxy", `{}`).Code)
}

func TestRuns_TriggerAndConflict(t *testing.T) {
	s := newTestServer(t, nil)
	s.runs.done = make(chan struct{})

	w := s.do(http.MethodPost, "/api/v1/runs", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	select {
	case <-s.runs.done:
	case <-time.After(time.Second):
		t.Fatal("run was not started")
	}
	assert.Equal(t, int32(1), s.runs.calls.Load())

	s.runs.running.Store(true)
	w = s.do(http.MethodPost, "/api/v1/runs", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, models.ErrCodeRunActive, decode[models.ErrorResponse](t, w).Error.Code)
	assert.Equal(t, int32(1), s.runs.calls.Load())
}

func TestRuns_Last(t *testing.T) {
	s := newTestServer(t, nil)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/runs/last", "").Code)

	s.runs.mu.Lock()
	s.runs.last = &models.RunSummary{RunID: "r7", Succeeded: 2}
	s.runs.mu.Unlock()

	got := decode[models.RunSummary](t, s.do(http.MethodGet, "/api/v1/runs/last", ""))
	assert.Equal(t, "r7", got.RunID)
	assert.Equal(t, 2, got.Succeeded)
}

func TestAuth(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Auth = config.AuthConfig{Enabled: true, APIKeys: []string{"secret-key"}}
	})

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/tasks", "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/tasks", "", "X-API-Key", "wrong").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/tasks", "", "X-API-Key", "secret-key").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/tasks", "", "Authorization", "Bearer secret-key").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/tasks?api_key=secret-key", "").Code)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/health", "").Code, "health stays public")
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/metrics", "").Code, "metrics stay public")
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}
	})

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/tasks", "").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/tasks", "").Code)
	w := s.do(http.MethodGet, "/api/v1/tasks", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, models.ErrCodeRateLimited, decode[models.ErrorResponse](t, w).Error.Code)
}

func TestNoRoute(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(http.MethodGet, "/api/v2/nothing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, models.ErrCodeNotFound, decode[models.ErrorResponse](t, w).Error.Code)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
