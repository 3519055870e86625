package main

import (
	"sync"
	"time"

	config "github.com/CodeAndHammer/wordguess/internal/config"
	handlers "github.com/CodeAndHammer/wordguess/internal/handlers"
	"golang.org/x/time/rate"
)

type RateLimiterWithTime struct {
	Limiter    *rate.Limiter
	LastAccess time.Time
}

// App is the server process: the handler dependencies plus the per-owner
// rate limiters.
type App struct {
	*handlers.App
	Config       config.Config
	LimiterMap   map[string]*RateLimiterWithTime
	LimiterMutex sync.RWMutex
}

func (app *App) limiterCount() int {
	app.LimiterMutex.RLock()
	defer app.LimiterMutex.RUnlock()
	return len(app.LimiterMap)
}
