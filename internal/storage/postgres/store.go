// Package postgres provides a PostgreSQL-backed game storage implementation.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	models "github.com/CodeAndHammer/wordguess/internal/models"
	"github.com/CodeAndHammer/wordguess/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists finished games and solver stats in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// Open migrates the schema and connects a pool to databaseURL.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	if err := Migrate(databaseURL); err != nil {
		return nil, err
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an already migrated pool.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *Store) SaveFinishedGame(ctx context.Context, game storage.FinishedGame) error {
	if strings.TrimSpace(game.Token) == "" {
		return fmt.Errorf("game token is required")
	}
	_, err := insertFinishedGame(ctx, s.pool, game)
	return err
}

func (s *Store) UpdateSolverStats(ctx context.Context, update storage.StatsUpdate) error {
	if strings.TrimSpace(update.SolverID) == "" {
		return fmt.Errorf("solver id is required")
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return applyStats(ctx, tx, update)
	})
}

// RecordFinishedGame inserts game and its stats contribution in one
// transaction; a token that is already stored leaves the stats alone.
func (s *Store) RecordFinishedGame(ctx context.Context, game storage.FinishedGame) error {
	if strings.TrimSpace(game.Token) == "" {
		return fmt.Errorf("game token is required")
	}
	if strings.TrimSpace(game.SolverID) == "" {
		return fmt.Errorf("solver id is required")
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		inserted, err := insertFinishedGame(ctx, tx, game)
		if err != nil || !inserted {
			return err
		}
		return applyStats(ctx, tx, storage.StatsUpdateFor(game))
	})
}

func insertFinishedGame(ctx context.Context, exec execer, game storage.FinishedGame) (bool, error) {
	guesses, err := json.Marshal(game.Guesses)
	if err != nil {
		return false, fmt.Errorf("encode guesses: %w", err)
	}
	tag, err := exec.Exec(ctx,
		`INSERT INTO finished_games (
		   token, owner_id, solver_id, solver_name, secret,
		   guesses, guess_count, outcome, started_at, finished_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (token) DO NOTHING`,
		game.Token,
		game.OwnerID,
		game.SolverID,
		game.SolverName,
		game.Secret,
		guesses,
		game.GuessCount,
		game.Outcome.String(),
		game.StartedAt.UTC(),
		game.FinishedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("save finished game: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func applyStats(ctx context.Context, exec execer, update storage.StatsUpdate) error {
	won := 0
	if update.Won {
		won = 1
	}
	if _, err := exec.Exec(ctx,
		`INSERT INTO solver_stats (solver_id, solver_name, words_played, words_won)
		 VALUES ($1, $2, 1, $3)
		 ON CONFLICT (solver_id) DO UPDATE SET
		   words_played = solver_stats.words_played + 1,
		   words_won = solver_stats.words_won + EXCLUDED.words_won,
		   solver_name = CASE WHEN EXCLUDED.solver_name <> '' THEN EXCLUDED.solver_name ELSE solver_stats.solver_name END`,
		update.SolverID, update.SolverName, won,
	); err != nil {
		return fmt.Errorf("update solver stats: %w", err)
	}
	if !update.Won {
		return nil
	}
	if _, err := exec.Exec(ctx,
		`INSERT INTO solver_guess_distribution (solver_id, guess_count, wins)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (solver_id, guess_count) DO UPDATE SET
		   wins = solver_guess_distribution.wins + 1`,
		update.SolverID, update.GuessCount,
	); err != nil {
		return fmt.Errorf("update guess distribution: %w", err)
	}
	return nil
}

const finishedGameColumns = `token, owner_id, solver_id, solver_name, secret, guesses, guess_count, outcome, started_at, finished_at`

func scanFinishedGame(row pgx.Row) (storage.FinishedGame, error) {
	var (
		g       storage.FinishedGame
		guesses []byte
		outcome string
	)
	if err := row.Scan(
		&g.Token, &g.OwnerID, &g.SolverID, &g.SolverName, &g.Secret,
		&guesses, &g.GuessCount, &outcome, &g.StartedAt, &g.FinishedAt,
	); err != nil {
		return storage.FinishedGame{}, err
	}
	if err := json.Unmarshal(guesses, &g.Guesses); err != nil {
		return storage.FinishedGame{}, fmt.Errorf("decode guesses for %s: %w", g.Token, err)
	}
	if g.Guesses == nil {
		g.Guesses = []models.GuessEntry{}
	}
	parsed, err := models.ParseOutcome(outcome)
	if err != nil {
		return storage.FinishedGame{}, err
	}
	g.Outcome = parsed
	g.StartedAt = g.StartedAt.UTC()
	g.FinishedAt = g.FinishedAt.UTC()
	return g, nil
}

func (s *Store) FinishedGame(ctx context.Context, token string) (storage.FinishedGame, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+finishedGameColumns+` FROM finished_games WHERE token = $1`, token)
	g, err := scanFinishedGame(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.FinishedGame{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.FinishedGame{}, fmt.Errorf("get finished game: %w", err)
	}
	return g, nil
}

func (s *Store) SolverStats(ctx context.Context, solverID string) (storage.SolverStats, error) {
	stats := storage.SolverStats{GuessDistribution: map[int]int{}}
	err := s.pool.QueryRow(ctx,
		`SELECT solver_id, solver_name, words_played, words_won FROM solver_stats WHERE solver_id = $1`,
		solverID,
	).Scan(&stats.SolverID, &stats.SolverName, &stats.WordsPlayed, &stats.WordsWon)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.SolverStats{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.SolverStats{}, fmt.Errorf("get solver stats: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT guess_count, wins FROM solver_guess_distribution WHERE solver_id = $1`, solverID)
	if err != nil {
		return storage.SolverStats{}, fmt.Errorf("get guess distribution: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var count, wins int
		if err := rows.Scan(&count, &wins); err != nil {
			return storage.SolverStats{}, fmt.Errorf("scan guess distribution: %w", err)
		}
		stats.GuessDistribution[count] = wins
	}
	if err := rows.Err(); err != nil {
		return storage.SolverStats{}, fmt.Errorf("iterate guess distribution: %w", err)
	}
	return stats, nil
}

func (s *Store) ListFinishedGames(ctx context.Context, solverID string, page, perPage int) (storage.GamePage, error) {
	page, perPage = storage.NormalizePage(page, perPage)
	result := storage.GamePage{Page: page, PerPage: perPage, Games: []storage.FinishedGame{}}

	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM finished_games WHERE solver_id = $1`, solverID,
	).Scan(&result.Total); err != nil {
		return storage.GamePage{}, fmt.Errorf("count finished games: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+finishedGameColumns+`
		 FROM finished_games
		 WHERE solver_id = $1
		 ORDER BY finished_at DESC, token ASC
		 LIMIT $2 OFFSET $3`,
		solverID, perPage, (page-1)*perPage,
	)
	if err != nil {
		return storage.GamePage{}, fmt.Errorf("list finished games: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		g, err := scanFinishedGame(rows)
		if err != nil {
			return storage.GamePage{}, fmt.Errorf("scan finished game: %w", err)
		}
		result.Games = append(result.Games, g)
	}
	if err := rows.Err(); err != nil {
		return storage.GamePage{}, fmt.Errorf("iterate finished games: %w", err)
	}
	return result, nil
}
