package storage

import constants "github.com/CodeAndHammer/wordguess/internal/constants"

// NormalizePage clamps paging input: page starts at 1, per-page defaults to 50
// and never exceeds 100.
func NormalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = constants.DefaultPerPage
	}
	return page, min(perPage, constants.MaxPerPage)
}
