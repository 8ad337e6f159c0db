package board

import (
	"strings"

	"issueboard/internal/models"
)

// CheckDuplicate looks for an existing issue whose title contains the
// candidate, ignoring case. Only that direction is checked: a candidate that
// contains an existing title is not a match. The first match wins.
func CheckDuplicate(candidate string, existing []models.Issue) (string, bool) {
	needle := strings.ToLower(candidate)
	for _, issue := range existing {
		if strings.Contains(strings.ToLower(issue.Title), needle) {
			return issue.Title, true
		}
	}
	return "", false
}
