// Package words embeds the default word corpus: the secret word list and the
// extra words accepted as guesses.
package words

import (
	_ "embed"
	"strings"
)

//go:embed data/secrets.txt
var secretsRaw string

//go:embed data/accepted.txt
var acceptedRaw string

// Secrets returns the words a game may draw as its secret.
func Secrets() []string {
	return split(secretsRaw)
}

// Accepted returns the extra words accepted as guesses but never drawn.
func Accepted() []string {
	return split(acceptedRaw)
}

func split(raw string) []string {
	fields := strings.Fields(raw)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, strings.ToLower(f))
	}
	return out
}
