package bot

import (
	"strconv"
	"strings"
	"time"

	"subbot/internal/forms"
	"subbot/internal/ledger"
)

const dateLayout = "2006-01-02"

// validUsername checks the syntactic Telegram username rules after
// stripping a leading @: 5-32 characters, letters, digits, underscore.
func validUsername(raw string) (string, error) {
	name := ledger.NormalizeUsername(raw)
	if len(name) < 5 || len(name) > 32 {
		return "", forms.Rejectf("Username must be 5-32 characters long. Try again.")
	}
	for _, r := range name {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			continue
		}
		return "", forms.Rejectf("Username may contain only letters, digits and underscore. Try again.")
	}
	return name, nil
}

// validGroupName checks length and non-emptiness after normalization.
func validGroupName(raw string) (string, error) {
	name := ledger.NormalizeGroupName(raw)
	if name == "" {
		return "", forms.Rejectf("Group name must not be empty. Try again.")
	}
	if len(name) > 255 {
		return "", forms.Rejectf("Group name must be at most 255 characters. Try again.")
	}
	return name, nil
}

// parseDate accepts strictly YYYY-MM-DD.
func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, forms.Rejectf("Date must look like 2025-07-01 (YYYY-MM-DD). Try again.")
	}
	return t, nil
}

// parsePositiveInt rejects anything that is not an integer > 0.
func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, forms.Rejectf("Enter a positive whole number. Try again.")
	}
	return n, nil
}

// validToken matches the input against a fixed set of actions.
func validToken(raw string, allowed ...string) (string, error) {
	token := strings.ToLower(strings.TrimSpace(raw))
	for _, a := range allowed {
		if token == a {
			return token, nil
		}
	}
	return "", forms.Rejectf("Choose one of: %s. Try again.", strings.Join(allowed, ", "))
}
