package game

import (
	"context"
	"math/rand/v2"
	"strings"
	"testing"

	models "github.com/CodeAndHammer/wordguess/internal/models"
	"github.com/CodeAndHammer/wordguess/internal/words"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustScore(t *testing.T, secret, guess string) string {
	t.Helper()
	fb, err := Score(secret, guess)
	require.NoError(t, err)
	return fb.String()
}

func TestScoreFixtures(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		guess  string
		want   string
	}{
		{"tripled guess letter, one copy in secret", "affix", "faffy", "YYGBB"},
		{"simple", "ghost", "great", "GBBBG"},
		{"exact", "right", "right", "GGGGG"},
		{"end to end fixture", "crane", "train", "BGGBY"},
		{"exact match consumes the only copy", "abbey", "keeps", "BYBBB"},
		{"duplicate guess, duplicate secret", "llama", "hello", "BBYYB"},
		{"present ties break left to right", "robot", "oozes", "YGBBB"},
		{"exact matches claim copies before present", "eerie", "geese", "BGYBG"},
		{"all absent", "apple", "zzzzz", "BBBBB"},
		{"all present", "apple", "pleap", "YYYYY"},
		{"case insensitive", "CRANE", "Train", "BGGBY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mustScore(t, tt.secret, tt.guess))
		})
	}
}

func TestScoreFaffyMarks(t *testing.T) {
	fb, err := Score("affix", "faffy")
	require.NoError(t, err)
	assert.Equal(t, models.Feedback{models.Present, models.Present, models.Correct, models.Absent, models.Absent}, fb)
}

func TestScoreRejectsLengthMismatch(t *testing.T) {
	_, err := Score("crane", "cranes")
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestScoreSelfIsAllCorrect(t *testing.T) {
	for _, w := range append(words.Secrets(), words.Accepted()...) {
		fb, err := Score(w, w)
		require.NoError(t, err)
		require.True(t, fb.AllCorrect(), "score(%q, %q) = %s", w, w, fb)
	}
}

// TestScoreLetterBudget checks, over random words drawn from a tiny alphabet so
// duplicates are common, that marks never exceed the secret's letter counts and
// that every position is classified the way the two-pass rule demands.
func TestScoreLetterBudget(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	const alphabet = "aabce"
	randomWord := func() string {
		var b strings.Builder
		for i := 0; i < 5; i++ {
			b.WriteByte(alphabet[r.IntN(len(alphabet))])
		}
		return b.String()
	}

	for i := 0; i < 5000; i++ {
		secret, guess := randomWord(), randomWord()
		fb, err := Score(secret, guess)
		require.NoError(t, err)

		used := map[byte]int{}
		for j := range fb {
			if fb[j] != models.Absent {
				used[guess[j]]++
			}
			if guess[j] == secret[j] {
				require.Equal(t, models.Correct, fb[j], "secret=%s guess=%s pos=%d", secret, guess, j)
			} else {
				require.NotEqual(t, models.Correct, fb[j], "secret=%s guess=%s pos=%d", secret, guess, j)
			}
		}
		for letter, n := range used {
			require.LessOrEqual(t, n, strings.Count(secret, string(letter)), "secret=%s guess=%s letter=%c", secret, guess, letter)
		}

		// Marked copies of a letter are as many as the secret allows, and a
		// Present never sits to the right of an Absent for the same letter.
		for letter := range used {
			l := string(letter)
			want := min(strings.Count(guess, l), strings.Count(secret, l))
			require.Equal(t, want, used[letter], "secret=%s guess=%s letter=%c", secret, guess, letter)
		}
		seenAbsent := map[byte]bool{}
		for j := range fb {
			switch fb[j] {
			case models.Absent:
				seenAbsent[guess[j]] = true
			case models.Present:
				require.False(t, seenAbsent[guess[j]], "secret=%s guess=%s pos=%d", secret, guess, j)
			}
		}
	}
}

func TestNormalizeAndWellFormed(t *testing.T) {
	assert.Equal(t, "crane", NormalizeGuess("  CRANE \n"))
	assert.True(t, WellFormed("crane"))
	assert.False(t, WellFormed("cranes"))
	assert.False(t, WellFormed("cr4ne"))
	assert.False(t, WellFormed("CRANE"))
	assert.False(t, WellFormed(""))
}

func TestDictionary(t *testing.T) {
	d, err := NewDictionary([]string{"crane", "Train", "toolong", "crane"}, []string{"aisle", "", "x"})
	require.NoError(t, err)

	assert.Equal(t, 2, d.SecretCount())
	assert.Equal(t, 3, d.LegalCount())
	assert.True(t, d.IsLegalGuess("crane"))
	assert.True(t, d.IsLegalGuess("TRAIN"))
	assert.True(t, d.IsLegalGuess(" aisle "))
	assert.False(t, d.IsLegalGuess("ghfse"))
	assert.False(t, d.IsLegalGuess("breaks"))
	assert.False(t, d.IsLegalGuess("crain"), "no fuzzy matching")
}

func TestDictionaryRequiresSecrets(t *testing.T) {
	_, err := NewDictionary([]string{"no"}, []string{"aisle"})
	assert.ErrorIs(t, err, ErrEmptyDictionary)
}

func TestDictionaryDraw(t *testing.T) {
	d, err := NewDictionary([]string{"apple", "table"}, nil)
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		w, err := d.Draw(context.Background())
		require.NoError(t, err)
		require.Contains(t, []string{"apple", "table"}, w)
		seen[w] = true
	}
	assert.Len(t, seen, 2, "both secrets should be drawn eventually")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Draw(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultCorpus(t *testing.T) {
	d, err := NewDictionary(words.Secrets(), words.Accepted())
	require.NoError(t, err)
	assert.True(t, d.IsLegalGuess("aisle"))
	assert.False(t, d.IsLegalGuess("ghfse"))
	assert.Equal(t, len(words.Secrets()), d.SecretCount())
}
