package handlers

import (
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	constants "github.com/CodeAndHammer/wordguess/internal/constants"
	game "github.com/CodeAndHammer/wordguess/internal/game"
	models "github.com/CodeAndHammer/wordguess/internal/models"
	"github.com/CodeAndHammer/wordguess/internal/storage"
	util "github.com/CodeAndHammer/wordguess/internal/util"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// App carries what the handlers need. LimiterCount may be nil.
type App struct {
	Engine       *game.Engine
	Store        storage.Store
	Words        *game.Dictionary
	IsProduction bool
	StartTime    time.Time
	LimiterCount func() int
}

type ErrorResponse struct {
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Game    *models.Payload `json:"game,omitempty"`
}

type StartRequest struct {
	SolverID   string `json:"solver_id" binding:"required"`
	SolverName string `json:"solver_name"`
}

type GuessRequest struct {
	GameToken string `json:"game_token"`
	Guess     string `json:"guess"`
}

type SolverStatsResponse struct {
	storage.SolverStats
	WinRate float64 `json:"win_rate"`
}

type SolverGamesResponse struct {
	SolverID string           `json:"solver_id"`
	Page     int              `json:"page"`
	PerPage  int              `json:"per_page"`
	Total    int              `json:"total"`
	HasNext  bool             `json:"has_next"`
	Games    []models.Payload `json:"games"`
}

// OwnerID returns the identity set by the owner middleware, falling back to
// the raw header.
func OwnerID(c *gin.Context) string {
	if owner := c.GetString(constants.OwnerIDKey); owner != "" {
		return owner
	}
	return strings.TrimSpace(c.GetHeader(constants.OwnerIDHeader))
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: code, Message: message})
}

func abortUnavailable(c *gin.Context, err error) {
	util.LogErrorCtx(c.Request.Context(), "Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	c.Header("Retry-After", strconv.Itoa(constants.RetryAfterSecs))
	abortWithError(c, http.StatusServiceUnavailable, constants.ErrorCodeServiceUnavailable, constants.MessageUnavailable)
}

func StartHandler(app *App, c *gin.Context) {
	ctx := c.Request.Context()
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.LogWarnCtx(ctx, "Invalid start request: %v", err)
		abortWithError(c, http.StatusBadRequest, constants.ErrorCodeInvalidRequest, "solver_id is required")
		return
	}

	s, err := app.Engine.Start(ctx, game.StartRequest{
		OwnerID:    OwnerID(c),
		SolverID:   strings.TrimSpace(req.SolverID),
		SolverName: strings.TrimSpace(req.SolverName),
	})
	if err != nil {
		abortUnavailable(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewPayload(s, constants.MessageGameStarted))
}

func GuessHandler(app *App, c *gin.Context) {
	ctx := c.Request.Context()
	var req GuessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.LogWarnCtx(ctx, "Invalid guess request: %v", err)
		abortWithError(c, http.StatusBadRequest, constants.ErrorCodeInvalidRequest, "body must be {game_token, guess}")
		return
	}

	res, err := app.Engine.Guess(ctx, OwnerID(c), req.GameToken, req.Guess)
	if err != nil {
		abortUnavailable(c, err)
		return
	}

	switch res.Status {
	case game.GuessInvalidToken:
		abortWithError(c, http.StatusBadRequest, constants.ErrorCodeInvalidToken, constants.MessageInvalidToken)
	case game.GuessGameFinished:
		payload := models.NewPayload(res.Session, res.Message)
		c.AbortWithStatusJSON(http.StatusConflict, ErrorResponse{
			Error:   constants.ErrorCodeGameOver,
			Message: constants.MessageGameOver,
			Game:    &payload,
		})
	default:
		c.JSON(http.StatusOK, models.NewPayload(res.Session, res.Message))
	}
}

func GameHandler(app *App, c *gin.Context) {
	s, ok, err := app.Engine.Lookup(c.Request.Context(), OwnerID(c), c.Param("token"))
	if err != nil {
		abortUnavailable(c, err)
		return
	}
	if !ok {
		abortWithError(c, http.StatusNotFound, constants.ErrorCodeNotFound, "game not found")
		return
	}
	c.JSON(http.StatusOK, models.NewPayload(s, ""))
}

func SolverStatsHandler(app *App, c *gin.Context) {
	stats, err := app.Store.SolverStats(c.Request.Context(), c.Param("solver_id"))
	if errors.Is(err, storage.ErrNotFound) {
		abortWithError(c, http.StatusNotFound, constants.ErrorCodeNotFound, "solver has no finished games")
		return
	}
	if err != nil {
		abortUnavailable(c, err)
		return
	}
	c.JSON(http.StatusOK, SolverStatsResponse{SolverStats: stats, WinRate: stats.WinRate()})
}

func SolverGamesHandler(app *App, c *gin.Context) {
	page, err := queryInt(c, "page")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, constants.ErrorCodeInvalidRequest, "page must be a positive integer")
		return
	}
	perPage, err := queryInt(c, "per_page")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, constants.ErrorCodeInvalidRequest, "per_page must be a positive integer")
		return
	}

	solverID := c.Param("solver_id")
	result, err := app.Store.ListFinishedGames(c.Request.Context(), solverID, page, perPage)
	if err != nil {
		abortUnavailable(c, err)
		return
	}
	c.JSON(http.StatusOK, SolverGamesResponse{
		SolverID: solverID,
		Page:     result.Page,
		PerPage:  result.PerPage,
		Total:    result.Total,
		HasNext:  result.HasNext(),
		Games: lo.Map(result.Games, func(g storage.FinishedGame, _ int) models.Payload {
			return models.NewPayload(g.Session(), "")
		}),
	})
}

// queryInt returns 0 for a missing parameter so paging defaults apply.
func queryInt(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New(key + " must be a positive integer")
	}
	return n, nil
}

func HealthzHandler(app *App, c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(app.StartTime)
	cache := app.Engine.Cache()

	limiterCount := 0
	if app.LimiterCount != nil {
		limiterCount = app.LimiterCount()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"env":             map[bool]string{true: "production", false: "development"}[app.IsProduction],
		"secret_words":    app.Words.SecretCount(),
		"accepted_words":  app.Words.LegalCount(),
		"active_sessions": cache.Len(),
		"cache_capacity":  cache.Capacity(),
		"active_limiters": limiterCount,
		"memory_alloc_mb": m.Alloc / 1024 / 1024,
		"memory_sys_mb":   m.Sys / 1024 / 1024,
		"memory_gc_count": m.NumGC,
		"uptime":          util.FormatUptime(uptime),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}
