// Package sqlite provides a SQLite-backed game storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	models "github.com/CodeAndHammer/wordguess/internal/models"
	"github.com/CodeAndHammer/wordguess/internal/storage"
	"github.com/CodeAndHammer/wordguess/internal/storage/sqlite/migrations"
	util "github.com/CodeAndHammer/wordguess/internal/util"
	_ "modernc.org/sqlite"
)

// Store persists finished games and solver stats in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store at path and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := util.EnsureDir(filepath.Dir(cleanPath)); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	dsn := "file:" + cleanPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveFinishedGame inserts one finished game. A second save of the same token
// is ignored.
func (s *Store) SaveFinishedGame(ctx context.Context, game storage.FinishedGame) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(game.Token) == "" {
		return fmt.Errorf("game token is required")
	}
	_, err := insertFinishedGame(ctx, s.sqlDB, game)
	return err
}

// UpdateSolverStats folds one finished game into the solver's counters.
func (s *Store) UpdateSolverStats(ctx context.Context, update storage.StatsUpdate) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(update.SolverID) == "" {
		return fmt.Errorf("solver id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin stats transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := applyStats(ctx, tx, update); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stats transaction: %w", err)
	}
	return nil
}

// RecordFinishedGame inserts game and folds it into the solver's stats in one
// transaction. Stats are only touched when the insert added a row.
func (s *Store) RecordFinishedGame(ctx context.Context, game storage.FinishedGame) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(game.Token) == "" {
		return fmt.Errorf("game token is required")
	}
	if strings.TrimSpace(game.SolverID) == "" {
		return fmt.Errorf("solver id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted, err := insertFinishedGame(ctx, tx, game)
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}
	if err := applyStats(ctx, tx, storage.StatsUpdateFor(game)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record transaction: %w", err)
	}
	return nil
}

func insertFinishedGame(ctx context.Context, exec execer, game storage.FinishedGame) (bool, error) {
	guesses, err := json.Marshal(game.Guesses)
	if err != nil {
		return false, fmt.Errorf("encode guesses: %w", err)
	}

	res, err := exec.ExecContext(
		ctx,
		`INSERT INTO finished_games (
		   token,
		   owner_id,
		   solver_id,
		   solver_name,
		   secret,
		   guesses,
		   guess_count,
		   outcome,
		   started_at,
		   finished_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (token) DO NOTHING`,
		game.Token,
		game.OwnerID,
		game.SolverID,
		game.SolverName,
		game.Secret,
		string(guesses),
		game.GuessCount,
		game.Outcome.String(),
		toMillis(game.StartedAt),
		toMillis(game.FinishedAt),
	)
	if err != nil {
		return false, fmt.Errorf("save finished game: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save finished game: %w", err)
	}
	return n > 0, nil
}

func applyStats(ctx context.Context, exec execer, update storage.StatsUpdate) error {
	won := 0
	if update.Won {
		won = 1
	}
	if _, err := exec.ExecContext(
		ctx,
		`INSERT INTO solver_stats (solver_id, solver_name, words_played, words_won)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT (solver_id) DO UPDATE SET
		   words_played = words_played + 1,
		   words_won = words_won + excluded.words_won,
		   solver_name = CASE WHEN excluded.solver_name <> '' THEN excluded.solver_name ELSE solver_name END`,
		update.SolverID,
		update.SolverName,
		won,
	); err != nil {
		return fmt.Errorf("update solver stats: %w", err)
	}

	if update.Won {
		if _, err := exec.ExecContext(
			ctx,
			`INSERT INTO solver_guess_distribution (solver_id, guess_count, wins)
			 VALUES (?, ?, 1)
			 ON CONFLICT (solver_id, guess_count) DO UPDATE SET wins = wins + 1`,
			update.SolverID,
			update.GuessCount,
		); err != nil {
			return fmt.Errorf("update guess distribution: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFinishedGame(row rowScanner) (storage.FinishedGame, error) {
	var (
		g          storage.FinishedGame
		guesses    string
		outcome    string
		startedAt  int64
		finishedAt int64
	)
	if err := row.Scan(
		&g.Token,
		&g.OwnerID,
		&g.SolverID,
		&g.SolverName,
		&g.Secret,
		&guesses,
		&g.GuessCount,
		&outcome,
		&startedAt,
		&finishedAt,
	); err != nil {
		return storage.FinishedGame{}, err
	}
	if err := json.Unmarshal([]byte(guesses), &g.Guesses); err != nil {
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
	g.StartedAt = fromMillis(startedAt)
	g.FinishedAt = fromMillis(finishedAt)
	return g, nil
}

const finishedGameColumns = `token, owner_id, solver_id, solver_name, secret, guesses, guess_count, outcome, started_at, finished_at`

// FinishedGame returns one finished game by token.
func (s *Store) FinishedGame(ctx context.Context, token string) (storage.FinishedGame, error) {
	if err := s.ready(ctx); err != nil {
		return storage.FinishedGame{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+finishedGameColumns+` FROM finished_games WHERE token = ?`, token)
	g, err := scanFinishedGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.FinishedGame{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.FinishedGame{}, fmt.Errorf("get finished game: %w", err)
	}
	return g, nil
}

// SolverStats returns the aggregate counters for one solver.
func (s *Store) SolverStats(ctx context.Context, solverID string) (storage.SolverStats, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SolverStats{}, err
	}
	stats := storage.SolverStats{GuessDistribution: map[int]int{}}
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT solver_id, solver_name, words_played, words_won FROM solver_stats WHERE solver_id = ?`,
		solverID,
	).Scan(&stats.SolverID, &stats.SolverName, &stats.WordsPlayed, &stats.WordsWon)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.SolverStats{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.SolverStats{}, fmt.Errorf("get solver stats: %w", err)
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT guess_count, wins FROM solver_guess_distribution WHERE solver_id = ?`, solverID)
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

// ListFinishedGames returns one page of a solver's games, newest first.
func (s *Store) ListFinishedGames(ctx context.Context, solverID string, page, perPage int) (storage.GamePage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.GamePage{}, err
	}
	page, perPage = storage.NormalizePage(page, perPage)
	result := storage.GamePage{Page: page, PerPage: perPage, Games: []storage.FinishedGame{}}

	if err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM finished_games WHERE solver_id = ?`, solverID,
	).Scan(&result.Total); err != nil {
		return storage.GamePage{}, fmt.Errorf("count finished games: %w", err)
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+finishedGameColumns+`
		 FROM finished_games
		 WHERE solver_id = ?
		 ORDER BY finished_at DESC, token ASC
		 LIMIT ? OFFSET ?`,
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
