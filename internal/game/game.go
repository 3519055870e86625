package game

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	constants "github.com/CodeAndHammer/wordguess/internal/constants"
	models "github.com/CodeAndHammer/wordguess/internal/models"
	util "github.com/CodeAndHammer/wordguess/internal/util"
	"github.com/samber/lo"
)

var ErrLengthMismatch = errors.New("guess and secret differ in length")

// Score classifies every letter of guess against secret.
//
// Exact matches are resolved first and consume their letter's allotment, then
// the remaining positions are marked Present left to right while copies of the
// letter are still unclaimed. Both words are lower-cased first.
func Score(secret, guess string) (models.Feedback, error) {
	s := []rune(strings.ToLower(secret))
	g := []rune(strings.ToLower(guess))
	if len(s) != len(g) {
		return nil, fmt.Errorf("%w: secret %d, guess %d", ErrLengthMismatch, len(s), len(g))
	}

	remaining := make(map[rune]int, len(s))
	for _, r := range s {
		remaining[r]++
	}

	result := make(models.Feedback, len(g))
	matched := make([]bool, len(g))
	for i := range g {
		if g[i] == s[i] {
			result[i] = models.Correct
			matched[i] = true
			remaining[g[i]]--
		}
	}

	for i := range g {
		if matched[i] {
			continue
		}
		if remaining[g[i]] > 0 {
			result[i] = models.Present
			remaining[g[i]]--
		} else {
			result[i] = models.Absent
		}
	}

	return result, nil
}

func NormalizeGuess(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

// WellFormed reports whether word has the fixed length and only a-z letters.
func WellFormed(word string) bool {
	if len(word) != constants.WordLength {
		return false
	}
	for i := 0; i < len(word); i++ {
		if word[i] < 'a' || word[i] > 'z' {
			return false
		}
	}
	return true
}

// WordSource supplies secrets and decides which guesses are legal.
type WordSource interface {
	Draw(ctx context.Context) (string, error)
	IsLegalGuess(word string) bool
}

// Dictionary is a fixed word corpus. Secrets are also legal guesses.
type Dictionary struct {
	secrets []string
	legal   map[string]struct{}
}

var ErrEmptyDictionary = errors.New("dictionary has no secret words")

func NewDictionary(secrets, accepted []string) (*Dictionary, error) {
	clean := func(list []string) []string {
		return lo.Uniq(lo.FilterMap(list, func(w string, _ int) (string, bool) {
			w = NormalizeGuess(w)
			if !WellFormed(w) {
				if w != "" {
					util.LogWarn("Skipping word %q: not %d letters", w, constants.WordLength)
				}
				return "", false
			}
			return w, true
		}))
	}

	d := &Dictionary{secrets: clean(secrets)}
	if len(d.secrets) == 0 {
		return nil, ErrEmptyDictionary
	}
	extra := clean(accepted)
	d.legal = make(map[string]struct{}, len(d.secrets)+len(extra))
	for _, w := range d.secrets {
		d.legal[w] = struct{}{}
	}
	for _, w := range extra {
		d.legal[w] = struct{}{}
	}
	return d, nil
}

func (d *Dictionary) IsLegalGuess(word string) bool {
	_, ok := d.legal[NormalizeGuess(word)]
	return ok
}

// Draw picks a secret uniformly at random.
func (d *Dictionary) Draw(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(d.secrets))))
	if err != nil {
		util.LogWarnCtx(ctx, "Error generating random number: %v", err)
		return "", fmt.Errorf("draw secret: %w", err)
	}
	return d.secrets[n.Int64()], nil
}

func (d *Dictionary) SecretCount() int {
	return len(d.secrets)
}

func (d *Dictionary) LegalCount() int {
	return len(d.legal)
}

// Secrets returns a copy of the secret list.
func (d *Dictionary) Secrets() []string {
	return append([]string(nil), d.secrets...)
}
