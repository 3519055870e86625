package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	constants "github.com/CodeAndHammer/wordguess/internal/constants"
	handlers "github.com/CodeAndHammer/wordguess/internal/handlers"
	util "github.com/CodeAndHammer/wordguess/internal/util"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload")
		}
		c.Next()
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.Request.Header.Get(constants.RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Request = c.Request.WithContext(util.WithRequestID(c.Request.Context(), reqID))
		c.Header(constants.RequestIDHeader, reqID)
		c.Next()
	}
}

// ownerMiddleware requires the upstream identity header on every API call.
func ownerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := strings.TrimSpace(c.GetHeader(constants.OwnerIDHeader))
		if owner == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, handlers.ErrorResponse{
				Error:   constants.ErrorCodeUnauthorized,
				Message: constants.MessageMissingOwner,
			})
			return
		}
		c.Set(constants.OwnerIDKey, owner)
		c.Next()
	}
}

func (app *App) getLimiter(key string) *rate.Limiter {
	app.LimiterMutex.RLock()
	limWithTime, ok := app.LimiterMap[key]
	app.LimiterMutex.RUnlock()
	if ok {
		app.LimiterMutex.Lock()
		if limWithTime, ok = app.LimiterMap[key]; ok {
			limWithTime.LastAccess = time.Now()
		}
		app.LimiterMutex.Unlock()
		if ok {
			return limWithTime.Limiter
		}
	}

	app.LimiterMutex.Lock()
	defer app.LimiterMutex.Unlock()
	if limWithTime, ok = app.LimiterMap[key]; ok {
		limWithTime.LastAccess = time.Now()
		return limWithTime.Limiter
	}

	rps := app.Config.RateLimitRPS
	if rps <= 0 {
		rps = 1
	}
	burst := app.Config.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}
	lim := rate.NewLimiter(rate.Every(time.Second/time.Duration(rps)), burst)
	app.LimiterMap[key] = &RateLimiterWithTime{
		Limiter:    lim,
		LastAccess: time.Now(),
	}
	return lim
}

// rateLimitMiddleware keys on the owner id, falling back to the client IP.
func (app *App) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := handlers.OwnerID(c)
		if key == "" {
			key = c.ClientIP()
		}
		if !app.getLimiter(key).Allow() {
			util.LogWarnCtx(c.Request.Context(), "Rate limit exceeded for %s", key)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, handlers.ErrorResponse{
				Error:   constants.ErrorCodeRateLimited,
				Message: constants.MessageRateLimited,
			})
			return
		}
		c.Next()
	}
}

// requestTimeoutMiddleware bounds the storage work a single request can do.
// A non-positive timeout leaves the request context alone.
func requestTimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
