package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	config "github.com/CodeAndHammer/wordguess/internal/config"
	constants "github.com/CodeAndHammer/wordguess/internal/constants"
	game "github.com/CodeAndHammer/wordguess/internal/game"
	handlers "github.com/CodeAndHammer/wordguess/internal/handlers"
	session "github.com/CodeAndHammer/wordguess/internal/session"
	"github.com/CodeAndHammer/wordguess/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestApp(t *testing.T, burst int) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dict, err := game.NewDictionary([]string{"crane"}, []string{"train"})
	require.NoError(t, err)
	store := storage.NewMemoryStore()
	app := &App{
		App: &handlers.App{
			Engine:    game.NewEngine(session.NewCache(4), dict, store),
			Store:     store,
			Words:     dict,
			StartTime: time.Now(),
		},
		Config: config.Config{
			RateLimitRPS:   1,
			RateLimitBurst: burst,
			RateLimiterTTL: time.Hour,
			RequestTimeout: 5 * time.Second,
		},
		LimiterMap: make(map[string]*RateLimiterWithTime),
	}
	app.LimiterCount = app.limiterCount
	return app
}

func send(router http.Handler, method, path, owner, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req.Header.Set(constants.OwnerIDHeader, owner)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouterRequiresOwner(t *testing.T) {
	router := newTestApp(t, 10).newRouter()

	w := send(router, http.MethodPost, constants.RouteStart, "", `{"solver_id":"s"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), constants.ErrorCodeUnauthorized)

	w = send(router, http.MethodPost, constants.RouteStart, "owner", `{"solver_id":"s"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(constants.RequestIDHeader))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, w.Header().Get("Cache-Control"), "no-store")
}

func TestHealthzSkipsOwnerCheck(t *testing.T) {
	router := newTestApp(t, 10).newRouter()
	w := send(router, http.MethodGet, constants.RouteHealthz, "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	router := newTestApp(t, 10).newRouter()
	req := httptest.NewRequest(http.MethodGet, constants.RouteHealthz, nil)
	req.Header.Set(constants.RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(constants.RequestIDHeader))
}

func TestRateLimitPerOwner(t *testing.T) {
	app := newTestApp(t, 2)
	router := app.newRouter()

	for i := 0; i < 2; i++ {
		w := send(router, http.MethodGet, "/api/solvers/s", "alice", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	}
	w := send(router, http.MethodGet, "/api/solvers/s", "alice", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), constants.ErrorCodeRateLimited)

	w = send(router, http.MethodGet, "/api/solvers/s", "bob", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 2, app.limiterCount())
}

func TestGetLimiterReusesEntry(t *testing.T) {
	app := newTestApp(t, 3)
	a := app.getLimiter("alice")
	b := app.getLimiter("alice")
	assert.Same(t, a, b)
	assert.Equal(t, 3, a.Burst())
	assert.Equal(t, rate.Limit(1), a.Limit())
}

func TestCleanupStaleRateLimiters(t *testing.T) {
	app := newTestApp(t, 1)
	app.getLimiter("fresh")
	app.getLimiter("stale")
	app.LimiterMap["stale"].LastAccess = time.Now().Add(-2 * time.Hour)

	assert.Equal(t, 1, app.cleanupStaleRateLimiters())
	_, ok := app.LimiterMap["fresh"]
	assert.True(t, ok)
	_, ok = app.LimiterMap["stale"]
	assert.False(t, ok)
}

func TestOpenStoreMemory(t *testing.T) {
	store, err := openStore(t.Context(), config.Config{StoreDriver: config.StoreMemory})
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStore{}, store)
	require.NoError(t, store.Close())
}

func TestOpenStoreSQLite(t *testing.T) {
	path := t.TempDir() + "/games.db"
	store, err := openStore(t.Context(), config.Config{StoreDriver: config.StoreSQLite, SQLitePath: path})
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestRequestTimeoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name         string
		timeout      time.Duration
		wantDeadline bool
	}{
		{"configured timeout sets deadline", 2 * time.Second, true},
		{"zero timeout passes through", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				deadline time.Time
				ok       bool
			)
			router := gin.New()
			router.Use(requestTimeoutMiddleware(tt.timeout))
			router.GET("/t", func(c *gin.Context) {
				deadline, ok = c.Request.Context().Deadline()
				c.Status(http.StatusNoContent)
			})

			start := time.Now()
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t", nil))

			assert.Equal(t, http.StatusNoContent, w.Code)
			assert.Equal(t, tt.wantDeadline, ok)
			if tt.wantDeadline {
				assert.WithinDuration(t, start.Add(tt.timeout), deadline, time.Second)
			}
		})
	}
}
