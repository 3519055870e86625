package models

import (
	"fmt"
	"strings"
	"time"

	constants "github.com/CodeAndHammer/wordguess/internal/constants"
	"github.com/samber/lo"
)

// Mark classifies one guessed letter against the secret.
type Mark uint8

const (
	Absent Mark = iota
	Present
	Correct
)

func (m Mark) String() string {
	switch m {
	case Correct:
		return constants.GuessStatusCorrect
	case Present:
		return constants.GuessStatusPresent
	default:
		return constants.GuessStatusAbsent
	}
}

func (m Mark) Symbol() byte {
	switch m {
	case Correct:
		return constants.SymbolCorrect
	case Present:
		return constants.SymbolPresent
	default:
		return constants.SymbolAbsent
	}
}

// Feedback is positionally aligned with the guess it scores.
type Feedback []Mark

func (f Feedback) String() string {
	var b strings.Builder
	b.Grow(len(f))
	for _, m := range f {
		b.WriteByte(m.Symbol())
	}
	return b.String()
}

func (f Feedback) AllCorrect() bool {
	return len(f) > 0 && lo.EveryBy(f, func(m Mark) bool { return m == Correct })
}

func (f Feedback) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Feedback) UnmarshalText(text []byte) error {
	parsed, err := ParseFeedback(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseFeedback reads the G/Y/B wire form back into marks.
func ParseFeedback(s string) (Feedback, error) {
	out := make(Feedback, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case constants.SymbolCorrect:
			out = append(out, Correct)
		case constants.SymbolPresent:
			out = append(out, Present)
		case constants.SymbolAbsent:
			out = append(out, Absent)
		default:
			return nil, fmt.Errorf("invalid feedback symbol %q at %d", s[i], i)
		}
	}
	return out, nil
}

type Outcome uint8

const (
	OutcomeUnknown Outcome = iota
	OutcomeWon
	OutcomeLost
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWon:
		return "won"
	case OutcomeLost:
		return "lost"
	default:
		return "none"
	}
}

func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "won":
		return OutcomeWon, nil
	case "lost":
		return OutcomeLost, nil
	case "none", "":
		return OutcomeUnknown, nil
	}
	return OutcomeUnknown, fmt.Errorf("invalid outcome %q", s)
}

type GuessEntry struct {
	Guess    string   `json:"guess"`
	Feedback Feedback `json:"feedback"`
}

// Session is the complete state of one game.
type Session struct {
	Token      string
	Expiry     time.Time
	OwnerID    string
	SolverID   string
	SolverName string
	Secret     string
	Guesses    []GuessEntry
	GuessCount int
	Active     bool
	Outcome    Outcome
	CreatedAt  time.Time
}

// NewSession returns a session in the Created state.
func NewSession(token, ownerID, solverID, solverName, secret string, now time.Time, ttl time.Duration) Session {
	return Session{
		Token:      token,
		Expiry:     now.Add(ttl),
		OwnerID:    ownerID,
		SolverID:   solverID,
		SolverName: solverName,
		Secret:     secret,
		Guesses:    []GuessEntry{},
		Active:     true,
		CreatedAt:  now,
	}
}

// Clone returns a copy that shares no mutable state with s.
func (s Session) Clone() Session {
	out := s
	out.Guesses = make([]GuessEntry, len(s.Guesses))
	for i, g := range s.Guesses {
		out.Guesses[i] = GuessEntry{Guess: g.Guess, Feedback: append(Feedback(nil), g.Feedback...)}
	}
	return out
}

func (s Session) Expired(now time.Time) bool {
	return !s.Expiry.IsZero() && !now.Before(s.Expiry)
}

func (s Session) Terminal() bool {
	return !s.Active
}

// Apply records a scored guess and evaluates the terminal condition.
// It returns false without changing s when the session is already terminal.
func (s *Session) Apply(guess string, feedback Feedback) bool {
	if !s.Active {
		return false
	}
	s.Guesses = append(s.Guesses, GuessEntry{Guess: guess, Feedback: feedback})
	s.GuessCount = len(s.Guesses)
	switch {
	case feedback.AllCorrect():
		s.Outcome = OutcomeWon
		s.Active = false
	case s.GuessCount >= constants.MaxGuesses:
		s.Outcome = OutcomeLost
		s.Active = false
	}
	return true
}
