package models

import (
	"strconv"
	"time"

	constants "github.com/CodeAndHammer/wordguess/internal/constants"
)

const (
	StatusActive   = "active"
	StatusFinished = "finished"
)

// Payload is the caller-facing view of a session. CorrectWord stays masked
// while the game is active.
type Payload struct {
	GameToken       string                `json:"game_token"`
	SolverName      string                `json:"solver_name"`
	Status          string                `json:"status"`
	GuessCount      int                   `json:"guess_count"`
	Guesses         map[string]GuessEntry `json:"guesses"`
	CorrectWord     string                `json:"correct_word"`
	Message         string                `json:"message"`
	Result          string                `json:"result"`
	TokenExpiration time.Time             `json:"token_expiration"`
}

func NewPayload(s Session, message string) Payload {
	p := Payload{
		GameToken:       s.Token,
		SolverName:      s.SolverName,
		Status:          StatusActive,
		GuessCount:      s.GuessCount,
		Guesses:         make(map[string]GuessEntry, len(s.Guesses)),
		CorrectWord:     constants.MaskedWord,
		Message:         message,
		Result:          OutcomeUnknown.String(),
		TokenExpiration: s.Expiry.UTC(),
	}
	for i, g := range s.Guesses {
		p.Guesses[strconv.Itoa(i+1)] = GuessEntry{Guess: g.Guess, Feedback: append(Feedback(nil), g.Feedback...)}
	}
	if !s.Active {
		p.Status = StatusFinished
		p.CorrectWord = s.Secret
		p.Result = s.Outcome.String()
	}
	return p
}
