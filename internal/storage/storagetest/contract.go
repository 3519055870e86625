// Package storagetest runs the same behavioural checks against every store.
package storagetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	models "github.com/CodeAndHammer/wordguess/internal/models"
	"github.com/CodeAndHammer/wordguess/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store; the contract closes it.
type Factory func(t *testing.T) storage.Store

func finishedGame(token, solverID string, outcome models.Outcome, at time.Time) storage.FinishedGame {
	guesses := []models.GuessEntry{
		{Guess: "train", Feedback: models.Feedback{models.Absent, models.Correct, models.Correct, models.Absent, models.Present}},
	}
	if outcome == models.OutcomeWon {
		guesses = append(guesses, models.GuessEntry{
			Guess:    "crane",
			Feedback: models.Feedback{models.Correct, models.Correct, models.Correct, models.Correct, models.Correct},
		})
	}
	return storage.FinishedGame{
		Token:      token,
		OwnerID:    "owner-1",
		SolverID:   solverID,
		SolverName: "solver43",
		Secret:     "crane",
		Guesses:    guesses,
		GuessCount: len(guesses),
		Outcome:    outcome,
		StartedAt:  at.Add(-time.Minute),
		FinishedAt: at,
	}
}

// Run exercises the Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("save and load finished game", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		at := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
		want := finishedGame("tok-1", "solver-1", models.OutcomeWon, at)

		require.NoError(t, st.SaveFinishedGame(ctx, want))
		got, err := st.FinishedGame(ctx, "tok-1")
		require.NoError(t, err)

		assert.Equal(t, want.Token, got.Token)
		assert.Equal(t, want.OwnerID, got.OwnerID)
		assert.Equal(t, want.SolverID, got.SolverID)
		assert.Equal(t, want.SolverName, got.SolverName)
		assert.Equal(t, want.Secret, got.Secret)
		assert.Equal(t, want.Guesses, got.Guesses)
		assert.Equal(t, want.GuessCount, got.GuessCount)
		assert.Equal(t, want.Outcome, got.Outcome)
		assert.True(t, want.FinishedAt.Equal(got.FinishedAt), "finished_at = %v, want %v", got.FinishedAt, want.FinishedAt)
	})

	t.Run("missing game", func(t *testing.T) {
		st := newStore(t)
		_, err := st.FinishedGame(context.Background(), "nope")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("save is idempotent on token", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		at := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
		first := finishedGame("tok-dup", "solver-1", models.OutcomeWon, at)
		second := finishedGame("tok-dup", "solver-1", models.OutcomeLost, at)

		require.NoError(t, st.SaveFinishedGame(ctx, first))
		require.NoError(t, st.SaveFinishedGame(ctx, second))

		got, err := st.FinishedGame(ctx, "tok-dup")
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeWon, got.Outcome)

		page, err := st.ListFinishedGames(ctx, "solver-1", 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, page.Total)
	})

	t.Run("solver stats accumulate", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		_, err := st.SolverStats(ctx, "solver-1")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		updates := []storage.StatsUpdate{
			{SolverID: "solver-1", SolverName: "solver43", Won: true, GuessCount: 2},
			{SolverID: "solver-1", SolverName: "solver43", Won: false, GuessCount: 6},
			{SolverID: "solver-1", SolverName: "solver43", Won: true, GuessCount: 2},
			{SolverID: "solver-1", SolverName: "solver43", Won: true, GuessCount: 4},
		}
		for _, u := range updates {
			require.NoError(t, st.UpdateSolverStats(ctx, u))
		}

		stats, err := st.SolverStats(ctx, "solver-1")
		require.NoError(t, err)
		assert.Equal(t, "solver43", stats.SolverName)
		assert.Equal(t, 4, stats.WordsPlayed)
		assert.Equal(t, 3, stats.WordsWon)
		assert.Equal(t, map[int]int{2: 2, 4: 1}, stats.GuessDistribution)
		assert.InDelta(t, 0.75, stats.WinRate(), 0.0001)
	})

	t.Run("record saves game and stats once", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		at := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
		game := finishedGame("tok-rec", "solver-1", models.OutcomeWon, at)

		require.NoError(t, st.RecordFinishedGame(ctx, game))
		require.NoError(t, st.RecordFinishedGame(ctx, game))

		got, err := st.FinishedGame(ctx, "tok-rec")
		require.NoError(t, err)
		assert.Equal(t, 2, got.GuessCount)

		stats, err := st.SolverStats(ctx, "solver-1")
		require.NoError(t, err)
		assert.Equal(t, 1, stats.WordsPlayed)
		assert.Equal(t, 1, stats.WordsWon)
		assert.Equal(t, map[int]int{2: 1}, stats.GuessDistribution)
	})

	t.Run("record of a saved token leaves stats alone", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		at := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
		require.NoError(t, st.SaveFinishedGame(ctx, finishedGame("tok-pre", "solver-1", models.OutcomeLost, at)))

		require.NoError(t, st.RecordFinishedGame(ctx, finishedGame("tok-pre", "solver-1", models.OutcomeWon, at)))

		got, err := st.FinishedGame(ctx, "tok-pre")
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeLost, got.Outcome)
		_, err = st.SolverStats(ctx, "solver-1")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("rejected record writes nothing", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		at := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

		require.Error(t, st.RecordFinishedGame(ctx, finishedGame("tok-bad", "", models.OutcomeWon, at)))
		_, err := st.FinishedGame(ctx, "tok-bad")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("list finished games pages newest first", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		base := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
		for i := 0; i < 5; i++ {
			g := finishedGame(fmt.Sprintf("tok-%d", i), "solver-1", models.OutcomeLost, base.Add(time.Duration(i)*time.Minute))
			require.NoError(t, st.SaveFinishedGame(ctx, g))
		}
		require.NoError(t, st.SaveFinishedGame(ctx, finishedGame("other", "solver-2", models.OutcomeWon, base)))

		page, err := st.ListFinishedGames(ctx, "solver-1", 1, 2)
		require.NoError(t, err)
		assert.Equal(t, 5, page.Total)
		require.Len(t, page.Games, 2)
		assert.Equal(t, "tok-4", page.Games[0].Token)
		assert.Equal(t, "tok-3", page.Games[1].Token)
		assert.True(t, page.HasNext())

		last, err := st.ListFinishedGames(ctx, "solver-1", 3, 2)
		require.NoError(t, err)
		require.Len(t, last.Games, 1)
		assert.Equal(t, "tok-0", last.Games[0].Token)
		assert.False(t, last.HasNext())

		empty, err := st.ListFinishedGames(ctx, "solver-1", 9, 2)
		require.NoError(t, err)
		assert.Empty(t, empty.Games)
	})
}
