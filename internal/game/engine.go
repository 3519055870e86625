package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	constants "github.com/CodeAndHammer/wordguess/internal/constants"
	models "github.com/CodeAndHammer/wordguess/internal/models"
	session "github.com/CodeAndHammer/wordguess/internal/session"
	"github.com/CodeAndHammer/wordguess/internal/storage"
	util "github.com/CodeAndHammer/wordguess/internal/util"
)

var (
	ErrSessionCreate    = errors.New("session could not be created")
	ErrCacheUnavailable = errors.New("session cache unavailable")
	ErrPersistence      = errors.New("finished game could not be persisted")
)

// PersistenceError reports a failed terminal write. The session it names is
// still cached and active, so the same guess can be retried.
type PersistenceError struct {
	Token string
	Op    string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist game %s: %s: %v", e.Token, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// GuessStatus is the gameplay outcome of one guess call.
type GuessStatus int

const (
	GuessAccepted GuessStatus = iota
	GuessIllegal
	GuessInvalidToken
	GuessGameFinished
)

func (s GuessStatus) String() string {
	switch s {
	case GuessAccepted:
		return "accepted"
	case GuessIllegal:
		return "illegal_guess"
	case GuessInvalidToken:
		return "invalid_token"
	case GuessGameFinished:
		return "game_finished"
	}
	return fmt.Sprintf("GuessStatus(%d)", int(s))
}

// GuessResult carries the session as it stands after the call. Session is
// zero for GuessInvalidToken.
type GuessResult struct {
	Status   GuessStatus
	Session  models.Session
	Feedback models.Feedback
	Message  string
}

type StartRequest struct {
	OwnerID    string
	SolverID   string
	SolverName string
}

// Engine runs the game lifecycle over a shared cache and a persistence gateway.
type Engine struct {
	cache    *session.Cache
	words    WordSource
	gateway  storage.Gateway
	ttl      time.Duration
	now      func() time.Time
	newToken func() (string, error)
}

type EngineOption func(*Engine)

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func WithTokenFunc(fn func() (string, error)) EngineOption {
	return func(e *Engine) { e.newToken = fn }
}

func WithSessionTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

func NewEngine(cache *session.Cache, words WordSource, gateway storage.Gateway, opts ...EngineOption) *Engine {
	e := &Engine{
		cache:    cache,
		words:    words,
		gateway:  gateway,
		ttl:      constants.DefaultSessionTTL,
		now:      time.Now,
		newToken: session.NewToken,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Cache() *session.Cache { return e.cache }

// Start creates a session and caches it.
func (e *Engine) Start(ctx context.Context, req StartRequest) (models.Session, error) {
	if e.cache == nil || e.cache.Closed() {
		return models.Session{}, fmt.Errorf("%w: %w", ErrSessionCreate, ErrCacheUnavailable)
	}
	secret, err := e.words.Draw(ctx)
	if err != nil {
		return models.Session{}, fmt.Errorf("%w: %w", ErrSessionCreate, err)
	}
	token, err := e.newToken()
	if err != nil {
		return models.Session{}, fmt.Errorf("%w: %w", ErrSessionCreate, err)
	}

	s := models.NewSession(token, req.OwnerID, req.SolverID, req.SolverName, NormalizeGuess(secret), e.now(), e.ttl)
	if err := e.cache.Put(s); err != nil {
		return models.Session{}, fmt.Errorf("%w: %w", ErrSessionCreate, err)
	}
	util.LogInfoCtx(ctx, "New game %s for solver %s (owner %s)", token, req.SolverID, req.OwnerID)
	return s.Clone(), nil
}

// Guess applies one guess to the game behind token. Gameplay rejections come
// back as a GuessStatus; only cache and persistence failures are errors.
func (e *Engine) Guess(ctx context.Context, ownerID, token, rawGuess string) (GuessResult, error) {
	if e.cache == nil || e.cache.Closed() {
		return GuessResult{}, ErrCacheUnavailable
	}
	token = strings.TrimSpace(token)
	if !session.ValidToken(token) {
		return GuessResult{Status: GuessInvalidToken}, nil
	}

	entry, ok := e.cache.Get(token)
	if !ok {
		return e.uncachedGuess(ctx, ownerID, token)
	}

	entry.Lock()
	defer entry.Unlock()

	current := entry.Session
	if current.OwnerID != ownerID {
		util.LogWarnCtx(ctx, "Owner %s attempted guess on game %s owned by %s", ownerID, token, current.OwnerID)
		return GuessResult{Status: GuessInvalidToken}, nil
	}
	if !current.Active {
		// A concurrent guess finished the game while this one waited.
		return GuessResult{Status: GuessGameFinished, Session: current.Clone(), Message: finishedMessage(current)}, nil
	}
	if current.Expired(e.now()) {
		e.cache.RemoveEntry(entry)
		util.LogInfoCtx(ctx, "Game %s expired, removed from cache", token)
		return GuessResult{Status: GuessInvalidToken}, nil
	}

	guess := NormalizeGuess(rawGuess)
	if !WellFormed(guess) {
		return GuessResult{Status: GuessIllegal, Session: current.Clone(), Message: constants.MessageInvalidLength}, nil
	}
	if !e.words.IsLegalGuess(guess) {
		return GuessResult{Status: GuessIllegal, Session: current.Clone(), Message: constants.MessageNotInDictionary}, nil
	}

	feedback, err := Score(current.Secret, guess)
	if err != nil {
		return GuessResult{Status: GuessIllegal, Session: current.Clone(), Message: constants.MessageInvalidLength}, nil
	}

	next := current.Clone()
	next.Apply(guess, feedback)
	util.LogInfoCtx(ctx, "Game %s guess %d/%d: %s -> %s", token, next.GuessCount, constants.MaxGuesses, guess, feedback)

	if next.Terminal() {
		if err := e.persist(ctx, next); err != nil {
			util.LogErrorCtx(ctx, "Persisting finished game %s failed, keeping it cached: %v", token, err)
			return GuessResult{}, err
		}
		entry.Session = next
		e.cache.RemoveEntry(entry)
		util.LogInfoCtx(ctx, "Game %s finished: %s in %d guesses", token, next.Outcome, next.GuessCount)
		return GuessResult{Status: GuessAccepted, Session: next.Clone(), Feedback: feedback, Message: finishedMessage(next)}, nil
	}

	entry.Session = next
	return GuessResult{Status: GuessAccepted, Session: next.Clone(), Feedback: feedback}, nil
}

// uncachedGuess separates finished games, which live only in storage, from
// tokens that were never issued, expired, or were evicted.
func (e *Engine) uncachedGuess(ctx context.Context, ownerID, token string) (GuessResult, error) {
	finished, ok, err := e.finishedSession(ctx, token)
	if err != nil {
		return GuessResult{}, err
	}
	if !ok || finished.OwnerID != ownerID {
		return GuessResult{Status: GuessInvalidToken}, nil
	}
	return GuessResult{Status: GuessGameFinished, Session: finished, Message: finishedMessage(finished)}, nil
}

// persist records the finished game and its stats contribution atomically.
func (e *Engine) persist(ctx context.Context, s models.Session) error {
	game := storage.FinishedGameFromSession(s, e.now())
	if err := e.gateway.RecordFinishedGame(ctx, game); err != nil {
		return &PersistenceError{Token: s.Token, Op: "record finished game", Err: err}
	}
	return nil
}

// Lookup returns the current state of a game. Cached games count as used;
// finished games are read back from storage.
func (e *Engine) Lookup(ctx context.Context, ownerID, token string) (models.Session, bool, error) {
	if e.cache == nil || e.cache.Closed() {
		return models.Session{}, false, ErrCacheUnavailable
	}
	token = strings.TrimSpace(token)
	if !session.ValidToken(token) {
		return models.Session{}, false, nil
	}

	if entry, ok := e.cache.Get(token); ok {
		entry.Lock()
		s := entry.Session.Clone()
		expired := s.Active && s.Expired(e.now())
		if expired {
			e.cache.RemoveEntry(entry)
		}
		entry.Unlock()

		if s.OwnerID != ownerID || expired {
			return models.Session{}, false, nil
		}
		if s.Active {
			return s, true, nil
		}
	}

	finished, ok, err := e.finishedSession(ctx, token)
	if err != nil || !ok || finished.OwnerID != ownerID {
		return models.Session{}, false, err
	}
	return finished, true, nil
}

func (e *Engine) finishedSession(ctx context.Context, token string) (models.Session, bool, error) {
	if e.gateway == nil {
		return models.Session{}, false, nil
	}
	game, err := e.gateway.FinishedGame(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Session{}, false, nil
	}
	if err != nil {
		return models.Session{}, false, &PersistenceError{Token: token, Op: "load finished game", Err: err}
	}
	return game.Session(), true, nil
}

func finishedMessage(s models.Session) string {
	if s.Outcome == models.OutcomeWon {
		return constants.MessageWon
	}
	return constants.MessageLost
}
