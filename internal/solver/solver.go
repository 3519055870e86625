// Package solver plays games by keeping only the words consistent with every
// feedback seen so far.
package solver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	constants "github.com/CodeAndHammer/wordguess/internal/constants"
	game "github.com/CodeAndHammer/wordguess/internal/game"
	models "github.com/CodeAndHammer/wordguess/internal/models"
	util "github.com/CodeAndHammer/wordguess/internal/util"
	"github.com/samber/lo"
)

var ErrNoCandidates = errors.New("no candidate words left")

type Solver struct {
	candidates []string
}

func New(words []string) *Solver {
	clean := lo.Uniq(lo.FilterMap(words, func(w string, _ int) (string, bool) {
		w = game.NormalizeGuess(w)
		return w, game.WellFormed(w)
	}))
	sort.Strings(clean)
	return &Solver{candidates: clean}
}

func (s *Solver) Remaining() int { return len(s.candidates) }

func (s *Solver) Candidates() []string {
	return append([]string(nil), s.candidates...)
}

// Next picks the candidate whose distinct letters are most common among the
// remaining candidates. Ties go to the alphabetically first word.
func (s *Solver) Next() (string, error) {
	if len(s.candidates) == 0 {
		return "", ErrNoCandidates
	}
	freq := make(map[rune]int)
	for _, w := range s.candidates {
		for _, r := range lo.Uniq([]rune(w)) {
			freq[r]++
		}
	}
	best, bestScore := s.candidates[0], -1
	for _, w := range s.candidates {
		score := lo.SumBy(lo.Uniq([]rune(w)), func(r rune) int { return freq[r] })
		if score > bestScore {
			best, bestScore = w, score
		}
	}
	return best, nil
}

// Observe drops every candidate that would not have produced feedback for guess.
func (s *Solver) Observe(guess string, feedback models.Feedback) {
	want := feedback.String()
	s.candidates = lo.Filter(s.candidates, func(w string, _ int) bool {
		got, err := game.Score(w, guess)
		return err == nil && got.String() == want
	})
}

// Reject removes a word the server would not accept.
func (s *Solver) Reject(word string) {
	s.candidates = lo.Without(s.candidates, game.NormalizeGuess(word))
}

// API is the part of the HTTP client a game needs.
type API interface {
	Start(ctx context.Context, solverID, solverName string) (models.Payload, error)
	Guess(ctx context.Context, token, guess string) (models.Payload, error)
}

type Result struct {
	Token   string
	Word    string
	Won     bool
	Guesses []string
}

// Play runs one game to completion.
func Play(ctx context.Context, api API, solverID, solverName string, words []string) (Result, error) {
	p, err := api.Start(ctx, solverID, solverName)
	if err != nil {
		return Result{}, fmt.Errorf("start game: %w", err)
	}
	res := Result{Token: p.GameToken}
	s := New(words)

	for p.Status == models.StatusActive {
		guess, err := s.Next()
		if err != nil {
			return res, err
		}
		before := p.GuessCount
		p, err = api.Guess(ctx, res.Token, guess)
		if err != nil {
			return res, fmt.Errorf("guess %q: %w", guess, err)
		}
		if p.GuessCount == before {
			util.LogWarnCtx(ctx, "Guess %q rejected: %s", guess, p.Message)
			s.Reject(guess)
			continue
		}
		res.Guesses = append(res.Guesses, guess)
		entry, ok := p.Guesses[strconv.Itoa(p.GuessCount)]
		if !ok || len(entry.Feedback) != constants.WordLength {
			return res, fmt.Errorf("guess %d missing from payload", p.GuessCount)
		}
		s.Observe(guess, entry.Feedback)
		util.LogInfoCtx(ctx, "Game %s guess %d: %s -> %s (%d candidates left)", res.Token, p.GuessCount, guess, entry.Feedback, s.Remaining())
	}

	res.Word = p.CorrectWord
	res.Won = p.Result == models.OutcomeWon.String()
	return res, nil
}
