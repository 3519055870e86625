// Command solver plays wordguess games over the HTTP API using the
// candidate-filter strategy and prints the solver's statistics.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	client "github.com/CodeAndHammer/wordguess/internal/client"
	solver "github.com/CodeAndHammer/wordguess/internal/solver"
	util "github.com/CodeAndHammer/wordguess/internal/util"
	words "github.com/CodeAndHammer/wordguess/internal/words"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		util.LogFatal("Solver failed: %v", err)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "solver",
		Usage: "play wordguess games against a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Value:   "http://localhost:8080",
				Usage:   "base URL of the wordguess server",
				Sources: cli.EnvVars("WORDGUESS_URL"),
			},
			&cli.StringFlag{
				Name:     "owner",
				Usage:    "owner id sent as X-Owner-Id",
				Required: true,
				Sources:  cli.EnvVars("WORDGUESS_OWNER"),
			},
			&cli.StringFlag{
				Name:    "solver-id",
				Value:   "candidate-filter",
				Sources: cli.EnvVars("WORDGUESS_SOLVER_ID"),
			},
			&cli.StringFlag{
				Name:  "solver-name",
				Value: "Candidate Filter",
			},
			&cli.IntFlag{
				Name:  "games",
				Value: 1,
				Usage: "number of games to play",
			},
			&cli.DurationFlag{
				Name:  "retry-delay",
				Value: time.Second,
				Usage: "wait before retrying after a 429 or 503",
			},
		},
		Action: run,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	games := cmd.Int("games")
	if games < 1 {
		return fmt.Errorf("--games must be at least 1, got %d", games)
	}
	api := client.New(cmd.String("url"), cmd.String("owner"))
	solverID := cmd.String("solver-id")
	corpus := words.Secrets()

	won := 0
	for i := 0; i < games; i++ {
		res, err := playWithRetry(ctx, api, solverID, cmd.String("solver-name"), corpus, cmd.Duration("retry-delay"))
		if err != nil {
			return err
		}
		if res.Won {
			won++
		}
		util.LogInfo("Game %d/%d %s: %s in %d guesses (%v)", i+1, games, res.Token, res.Word, len(res.Guesses), res.Won)
	}

	stats, err := api.SolverStats(ctx, solverID)
	if err != nil {
		return fmt.Errorf("fetch stats: %w", err)
	}
	fmt.Printf("played %d, won %d this run; lifetime %d/%d (%.1f%%)\n",
		games, won, stats.WordsWon, stats.WordsPlayed, stats.WinRate*100)
	return nil
}

func playWithRetry(ctx context.Context, api solver.API, solverID, solverName string, corpus []string, delay time.Duration) (solver.Result, error) {
	for attempt := 1; ; attempt++ {
		res, err := solver.Play(ctx, api, solverID, solverName, corpus)
		var apiErr *client.APIError
		if err == nil || !errors.As(err, &apiErr) || !apiErr.Retryable() || attempt >= 3 {
			return res, err
		}
		util.LogWarn("Attempt %d failed (%v), retrying in %v", attempt, err, delay)
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-time.After(delay):
		}
	}
}
