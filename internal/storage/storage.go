// Package storage defines the durable side of the game: finished games and
// per-solver statistics.
package storage

import (
	"context"
	"errors"
	"time"

	models "github.com/CodeAndHammer/wordguess/internal/models"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
)

// FinishedGame is the durable record of a game that reached a terminal state.
type FinishedGame struct {
	Token      string
	OwnerID    string
	SolverID   string
	SolverName string
	Secret     string
	Guesses    []models.GuessEntry
	GuessCount int
	Outcome    models.Outcome
	StartedAt  time.Time
	FinishedAt time.Time
}

// FinishedGameFromSession copies the fields of a terminal session.
func FinishedGameFromSession(s models.Session, finishedAt time.Time) FinishedGame {
	c := s.Clone()
	return FinishedGame{
		Token:      c.Token,
		OwnerID:    c.OwnerID,
		SolverID:   c.SolverID,
		SolverName: c.SolverName,
		Secret:     c.Secret,
		Guesses:    c.Guesses,
		GuessCount: c.GuessCount,
		Outcome:    c.Outcome,
		StartedAt:  c.CreatedAt,
		FinishedAt: finishedAt,
	}
}

// Session rebuilds the terminal session view of a finished game.
func (g FinishedGame) Session() models.Session {
	s := models.Session{
		Token:      g.Token,
		OwnerID:    g.OwnerID,
		SolverID:   g.SolverID,
		SolverName: g.SolverName,
		Secret:     g.Secret,
		Guesses:    g.Guesses,
		GuessCount: g.GuessCount,
		Outcome:    g.Outcome,
		CreatedAt:  g.StartedAt,
		Expiry:     g.FinishedAt,
	}
	if s.Guesses == nil {
		s.Guesses = []models.GuessEntry{}
	}
	return s.Clone()
}

// StatsUpdate is one finished game's contribution to a solver's statistics.
type StatsUpdate struct {
	SolverID   string
	SolverName string
	Won        bool
	GuessCount int
}

// SolverStats aggregates a solver's finished games. GuessDistribution maps a
// winning guess count to the number of wins with that count.
type SolverStats struct {
	SolverID          string      `json:"solver_id"`
	SolverName        string      `json:"solver_name"`
	WordsPlayed       int         `json:"words_played"`
	WordsWon          int         `json:"words_won"`
	GuessDistribution map[int]int `json:"guess_distribution"`
}

func (s SolverStats) WinRate() float64 {
	if s.WordsPlayed == 0 {
		return 0
	}
	return float64(s.WordsWon) / float64(s.WordsPlayed)
}

// GamePage is one page of a solver's finished games, newest first.
type GamePage struct {
	Games   []FinishedGame
	Page    int
	PerPage int
	Total   int
}

func (p GamePage) HasNext() bool {
	return p.Page*p.PerPage < p.Total
}

// Gateway is what the engine needs at a terminal transition.
// RecordFinishedGame saves the game and folds it into the solver's stats in
// one atomic step; a second record of the same token changes nothing.
type Gateway interface {
	RecordFinishedGame(ctx context.Context, game FinishedGame) error
	FinishedGame(ctx context.Context, token string) (FinishedGame, error)
}

// Store adds the individual writes and the lookup queries served by the API.
// SaveFinishedGame is idempotent on the token.
type Store interface {
	Gateway
	SaveFinishedGame(ctx context.Context, game FinishedGame) error
	UpdateSolverStats(ctx context.Context, update StatsUpdate) error
	SolverStats(ctx context.Context, solverID string) (SolverStats, error)
	ListFinishedGames(ctx context.Context, solverID string, page, perPage int) (GamePage, error)
	Close() error
}

// StatsUpdateFor is the stats contribution of a finished game.
func StatsUpdateFor(game FinishedGame) StatsUpdate {
	return StatsUpdate{
		SolverID:   game.SolverID,
		SolverName: game.SolverName,
		Won:        game.Outcome == models.OutcomeWon,
		GuessCount: game.GuessCount,
	}
}
