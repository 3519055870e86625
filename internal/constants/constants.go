package constants

import "time"

const (
	MaxGuesses = 6
	WordLength = 5
)

const (
	GuessStatusCorrect = "correct"
	GuessStatusPresent = "present"
	GuessStatusAbsent  = "absent"
)

const (
	SymbolCorrect = 'G'
	SymbolPresent = 'Y'
	SymbolAbsent  = 'B'
)

const (
	DefaultCacheCapacity = 50
	DefaultSessionTTL    = 10 * time.Hour
	TokenBytes           = 16
	MaskedWord           = "*****"
)

const (
	OwnerIDHeader   = "X-Owner-Id"
	RequestIDHeader = "X-Request-Id"
	OwnerIDKey      = "owner_id"
	RetryAfterSecs  = 1
)

const (
	RouteStart       = "/api/start"
	RouteGuess       = "/api/guess"
	RouteGame        = "/api/games/:token"
	RouteSolver      = "/api/solvers/:solver_id"
	RouteSolverGames = "/api/solvers/:solver_id/games"
	RouteHealthz     = "/healthz"
)

const (
	ErrorCodeGameOver           = "game_over"
	ErrorCodeInvalidToken       = "invalid_token"
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeNotInWordList      = "not_in_word_list"
	ErrorCodeInvalidLength      = "invalid_length"
	ErrorCodeUnauthorized       = "unauthorized"
	ErrorCodeNotFound           = "not_found"
	ErrorCodeServiceUnavailable = "service_unavailable"
	ErrorCodeRateLimited        = "rate_limited"
)

const (
	MessageNotInDictionary = "Word not found in our dictionary."
	MessageInvalidLength   = "Guess must be a 5-letter word."
	MessageWon             = "Congratulations, you found the word!"
	MessageLost            = "Out of guesses."
	MessageGameStarted     = "New game started. Good luck!"
	MessageInvalidToken    = "Game token is invalid or has expired."
	MessageGameOver        = "This game is already over."
	MessageUnavailable     = "Service temporarily unavailable, please retry."
	MessageMissingOwner    = "Missing X-Owner-Id header."
	MessageRateLimited     = "Too many requests. Please slow down."
)

const (
	DefaultPerPage = 50
	MaxPerPage     = 100
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
)
