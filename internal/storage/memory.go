package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// MemoryStore keeps everything in process memory. State is lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	games map[string]FinishedGame
	stats map[string]*SolverStats
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games: make(map[string]FinishedGame),
		stats: make(map[string]*SolverStats),
	}
}

func (m *MemoryStore) SaveFinishedGame(ctx context.Context, game FinishedGame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(game.Token) == "" {
		return fmt.Errorf("game token is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveLocked(game)
	return nil
}

func (m *MemoryStore) UpdateSolverStats(ctx context.Context, update StatsUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(update.SolverID) == "" {
		return fmt.Errorf("solver id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyStatsLocked(update)
	return nil
}

// RecordFinishedGame saves game and updates its solver's stats under one lock.
func (m *MemoryStore) RecordFinishedGame(ctx context.Context, game FinishedGame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(game.Token) == "" {
		return fmt.Errorf("game token is required")
	}
	if strings.TrimSpace(game.SolverID) == "" {
		return fmt.Errorf("solver id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveLocked(game) {
		m.applyStatsLocked(StatsUpdateFor(game))
	}
	return nil
}

// saveLocked reports whether game was new.
func (m *MemoryStore) saveLocked(game FinishedGame) bool {
	if _, ok := m.games[game.Token]; ok {
		return false
	}
	m.games[game.Token] = game
	return true
}

func (m *MemoryStore) applyStatsLocked(update StatsUpdate) {
	st, ok := m.stats[update.SolverID]
	if !ok {
		st = &SolverStats{SolverID: update.SolverID, GuessDistribution: map[int]int{}}
		m.stats[update.SolverID] = st
	}
	if update.SolverName != "" {
		st.SolverName = update.SolverName
	}
	st.WordsPlayed++
	if update.Won {
		st.WordsWon++
		st.GuessDistribution[update.GuessCount]++
	}
}

func (m *MemoryStore) FinishedGame(ctx context.Context, token string) (FinishedGame, error) {
	if err := ctx.Err(); err != nil {
		return FinishedGame{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[token]
	if !ok {
		return FinishedGame{}, ErrNotFound
	}
	return g, nil
}

func (m *MemoryStore) SolverStats(ctx context.Context, solverID string) (SolverStats, error) {
	if err := ctx.Err(); err != nil {
		return SolverStats{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.stats[solverID]
	if !ok {
		return SolverStats{}, ErrNotFound
	}
	out := *st
	out.GuessDistribution = lo.Assign(st.GuessDistribution)
	return out, nil
}

func (m *MemoryStore) ListFinishedGames(ctx context.Context, solverID string, page, perPage int) (GamePage, error) {
	if err := ctx.Err(); err != nil {
		return GamePage{}, err
	}
	page, perPage = NormalizePage(page, perPage)

	m.mu.RLock()
	games := lo.Filter(lo.Values(m.games), func(g FinishedGame, _ int) bool {
		return g.SolverID == solverID
	})
	m.mu.RUnlock()

	sort.Slice(games, func(i, j int) bool {
		if games[i].FinishedAt.Equal(games[j].FinishedAt) {
			return games[i].Token < games[j].Token
		}
		return games[i].FinishedAt.After(games[j].FinishedAt)
	})

	result := GamePage{Page: page, PerPage: perPage, Total: len(games), Games: []FinishedGame{}}
	start := (page - 1) * perPage
	if start < len(games) {
		result.Games = games[start:min(start+perPage, len(games))]
	}
	return result, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
