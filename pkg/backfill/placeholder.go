package backfill

import "strings"

// placeholderPatterns match usernames that were template text or test data
// in the submission log, not real students.
var placeholderPatterns = []string{
	"JHED ID",
	"jhed id",
	"Your",
	"YOUR",
	"YourJHED",
	"##",
	"TERI 2023",
	"TIME2024",
}

// IsPlaceholder reports whether a submission username is template or test
// data rather than a real student identifier.
func IsPlaceholder(username string) bool {
	trimmed := strings.TrimSpace(username)
	if trimmed == "" {
		return true
	}
	if len(trimmed) <= 2 {
		return true
	}
	for _, pattern := range placeholderPatterns {
		if strings.Contains(username, pattern) {
			return true
		}
	}
	return false
}
