package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	client "github.com/CodeAndHammer/wordguess/internal/client"
	constants "github.com/CodeAndHammer/wordguess/internal/constants"
	game "github.com/CodeAndHammer/wordguess/internal/game"
	handlers "github.com/CodeAndHammer/wordguess/internal/handlers"
	models "github.com/CodeAndHammer/wordguess/internal/models"
	session "github.com/CodeAndHammer/wordguess/internal/session"
	solver "github.com/CodeAndHammer/wordguess/internal/solver"
	"github.com/CodeAndHammer/wordguess/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	words, err := game.NewDictionary([]string{"crane"}, []string{"train"})
	require.NoError(t, err)
	store := storage.NewMemoryStore()
	app := &handlers.App{
		Engine:    game.NewEngine(session.NewCache(4), words, store),
		Store:     store,
		Words:     words,
		StartTime: time.Now(),
	}
	r := gin.New()
	r.POST(constants.RouteStart, func(c *gin.Context) { handlers.StartHandler(app, c) })
	r.POST(constants.RouteGuess, func(c *gin.Context) { handlers.GuessHandler(app, c) })
	r.GET(constants.RouteGame, func(c *gin.Context) { handlers.GameHandler(app, c) })
	r.GET(constants.RouteSolver, func(c *gin.Context) { handlers.SolverStatsHandler(app, c) })
	r.GET(constants.RouteSolverGames, func(c *gin.Context) { handlers.SolverGamesHandler(app, c) })

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientGameFlow(t *testing.T) {
	srv := newServer(t)
	api := client.New(srv.URL+"/", "owner", client.WithHTTPClient(srv.Client()))
	ctx := context.Background()

	p, err := api.Start(ctx, "solver-1", "test_solver")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, p.Status)

	p, err = api.Guess(ctx, p.GameToken, "train")
	require.NoError(t, err)
	assert.Equal(t, "BGGBY", p.Guesses["1"].Feedback.String())

	p, err = api.Guess(ctx, p.GameToken, "crane")
	require.NoError(t, err)
	assert.Equal(t, "won", p.Result)

	_, err = api.Guess(ctx, p.GameToken, "crane")
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.True(t, apiErr.GameOver())
	require.NotNil(t, apiErr.Game)
	assert.Equal(t, "crane", apiErr.Game.CorrectWord)

	got, err := api.Game(ctx, p.GameToken)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, got.Status)

	stats, err := api.SolverStats(ctx, "solver-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.WordsWon)

	games, err := api.SolverGames(ctx, "solver-1", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, games.Total)
	require.Len(t, games.Games, 1)
	assert.Equal(t, p.GameToken, games.Games[0].GameToken)
}

func TestClientInvalidToken(t *testing.T) {
	srv := newServer(t)
	api := client.New(srv.URL, "owner")

	_, err := api.Guess(context.Background(), "nope", "train")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, constants.ErrorCodeInvalidToken, apiErr.Code)
	assert.False(t, apiErr.Retryable())
}

func TestClientNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := client.New(srv.URL, "owner").Start(context.Background(), "s", "")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Retryable())
	assert.Equal(t, "upstream down", apiErr.Message)
}

func TestClientPlaysWithSolver(t *testing.T) {
	srv := newServer(t)
	api := client.New(srv.URL, "owner")

	res, err := solver.Play(context.Background(), api, "solver-2", "", []string{"train", "crane"})
	require.NoError(t, err)
	assert.True(t, res.Won)
	assert.Equal(t, "crane", res.Word)
}
