package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sort"
	"syscall"
	"time"

	config "github.com/CodeAndHammer/wordguess/internal/config"
	constants "github.com/CodeAndHammer/wordguess/internal/constants"
	game "github.com/CodeAndHammer/wordguess/internal/game"
	handlers "github.com/CodeAndHammer/wordguess/internal/handlers"
	models "github.com/CodeAndHammer/wordguess/internal/models"
	session "github.com/CodeAndHammer/wordguess/internal/session"
	"github.com/CodeAndHammer/wordguess/internal/storage"
	"github.com/CodeAndHammer/wordguess/internal/storage/postgres"
	"github.com/CodeAndHammer/wordguess/internal/storage/sqlite"
	util "github.com/CodeAndHammer/wordguess/internal/util"
	words "github.com/CodeAndHammer/wordguess/internal/words"
	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		util.LogFatal("Invalid configuration: %v", err)
	}
	isProduction := cfg.IsProduction()
	if isProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	util.LogInfo("Starting wordguess in %s mode", map[bool]string{true: "production", false: "development"}[isProduction])

	dict, err := game.NewDictionary(words.Secrets(), words.Accepted())
	if err != nil {
		util.LogFatal("Failed to load words: %v", err)
	}
	util.LogInfo("Loaded %d secret words and %d legal guesses", dict.SecretCount(), dict.LegalCount())

	store, err := openStore(context.Background(), cfg)
	if err != nil {
		util.LogFatal("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	util.LogInfo("Using %s store", cfg.StoreDriver)

	cache := session.NewCache(cfg.CacheCapacity, session.WithEvictFunc(func(s models.Session) {
		util.LogInfo("Evicted active game %s (solver %s, %d guesses) to make room", s.Token, s.SolverID, s.GuessCount)
	}))

	app := &App{
		App: &handlers.App{
			Engine:       game.NewEngine(cache, dict, store, game.WithSessionTTL(cfg.SessionTTL)),
			Store:        store,
			Words:        dict,
			IsProduction: isProduction,
			StartTime:    time.Now(),
		},
		Config:     cfg,
		LimiterMap: make(map[string]*RateLimiterWithTime),
	}
	app.LimiterCount = app.limiterCount

	router := app.newRouter()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	app.startCleanupRoutines(ctx)

	app.startServer(ctx, router)
}

func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		return storage.NewMemoryStore(), nil
	case config.StorePostgres:
		store, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

func (app *App) newRouter() *gin.Engine {
	router := gin.Default()

	router.Use(requestIDMiddleware())
	router.Use(securityHeadersMiddleware())
	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression))
	router.Use(cachecontrol.New(cachecontrol.Config{
		NoStore:        true,
		NoCache:        true,
		MustRevalidate: true,
	}))

	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		util.LogWarn("Failed to set trusted proxies: %v", err)
	}

	router.GET(constants.RouteHealthz, func(c *gin.Context) { handlers.HealthzHandler(app.App, c) })

	api := router.Group("", ownerMiddleware(), app.rateLimitMiddleware(), requestTimeoutMiddleware(app.Config.RequestTimeout))
	api.POST(constants.RouteStart, func(c *gin.Context) { handlers.StartHandler(app.App, c) })
	api.POST(constants.RouteGuess, func(c *gin.Context) { handlers.GuessHandler(app.App, c) })
	api.GET(constants.RouteGame, func(c *gin.Context) { handlers.GameHandler(app.App, c) })
	api.GET(constants.RouteSolver, func(c *gin.Context) { handlers.SolverStatsHandler(app.App, c) })
	api.GET(constants.RouteSolverGames, func(c *gin.Context) { handlers.SolverGamesHandler(app.App, c) })

	return router
}

func (app *App) startServer(ctx context.Context, router *gin.Engine) {
	srv := &http.Server{
		Addr:              ":" + app.Config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		<-ctx.Done()
		util.LogInfo("Shutdown signal received, shutting down server gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			util.LogWarn("HTTP server Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	util.LogInfo("Server starting on http://localhost:%s", app.Config.Port)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		util.LogFatal("Server failed to start: %v", err)
	}
	<-idleConnsClosed

	active := app.Engine.Cache().Len()
	app.Engine.Cache().Close()
	if active > 0 {
		util.LogInfo("Dropped %d active games on shutdown", active)
	}
	if err := app.Store.Close(); err != nil {
		util.LogWarn("Closing store: %v", err)
	}
	util.LogInfo("Server shutdown complete")
}

func (app *App) startCleanupRoutines(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				app.cleanupStaleRateLimiters()
			}
		}
	}()

	util.LogInfo("Started cleanup routine for rate limiters")
}

func (app *App) cleanupStaleRateLimiters() int {
	app.LimiterMutex.Lock()
	defer app.LimiterMutex.Unlock()

	cutoffTime := time.Now().Add(-app.Config.RateLimiterTTL)
	removedCount := 0

	for key, limWithTime := range app.LimiterMap {
		if limWithTime.LastAccess.Before(cutoffTime) {
			delete(app.LimiterMap, key)
			removedCount++
		}
	}

	if len(app.LimiterMap) > 50000 {
		util.LogInfo("Rate limiter map too large (%d entries), performing emergency cleanup", len(app.LimiterMap))

		type limiterInfo struct {
			key        string
			lastAccess time.Time
		}

		limiters := make([]limiterInfo, 0, len(app.LimiterMap))
		for key, limWithTime := range app.LimiterMap {
			limiters = append(limiters, limiterInfo{key: key, lastAccess: limWithTime.LastAccess})
		}

		sort.Slice(limiters, func(i, j int) bool {
			return limiters[i].lastAccess.Before(limiters[j].lastAccess)
		})

		entriesToRemove := len(limiters) / 2
		for i := 0; i < entriesToRemove; i++ {
			delete(app.LimiterMap, limiters[i].key)
			removedCount++
		}

		util.LogInfo("Removed %d oldest rate limiters", entriesToRemove)
	}

	if removedCount > 0 {
		util.LogInfo("Cleaned up %d stale rate limiters", removedCount)
	}
	return removedCount
}
