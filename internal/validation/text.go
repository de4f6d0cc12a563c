// Package validation classifies user-supplied health-record input as safe or
// unsafe and normalises free text to a canonical sanitized form.
package validation

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Limits applied to user input and stored data.
const (
	MaxInputLength          = 1000
	MaxSymptomsPerCondition = 10
	MaxConditionsPerUser    = 50
	MaxDataSize             = 1024 * 1024
	StorageWarnThreshold    = 0.8
	MaxIDLength             = 100
	MaxDateAgeYears         = 10
	MinIntensity            = 1
	MaxIntensity            = 10
)

const dateLayout = "2006-01-02"

var (
	dangerousChars = regexp.MustCompile(`[<>'"&]`)
	scriptScheme   = regexp.MustCompile(`(?i)javascript:`)
	eventHandler   = regexp.MustCompile(`(?i)on\w+\s*=`)
	markupPatterns = []*regexp.Regexp{
		scriptScheme,
		eventHandler,
		regexp.MustCompile(`(?i)<script`),
		regexp.MustCompile(`(?i)<iframe`),
		regexp.MustCompile(`(?i)<object`),
		regexp.MustCompile(`(?i)<embed`),
	}
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	idPattern   = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)
)

// IsSafeText reports whether text is short enough and free of the denylisted
// markup, scheme and event-handler patterns.
func IsSafeText(text string) bool {
	if utf8.RuneCountInString(text) > MaxInputLength {
		return false
	}
	if dangerousChars.MatchString(text) {
		return false
	}
	for _, p := range markupPatterns {
		if p.MatchString(text) {
			return false
		}
	}
	return true
}

// SanitizeText strips dangerous characters, script schemes and inline event
// handlers, trims whitespace and truncates to MaxInputLength runes. Stripping is
// repeated until the text stops changing, so SanitizeText(SanitizeText(x)) == SanitizeText(x).
func SanitizeText(text string) string {
	for {
		next := sanitizeOnce(text)
		if next == text {
			return next
		}
		text = next
	}
}

func sanitizeOnce(text string) string {
	text = dangerousChars.ReplaceAllString(text, "")
	text = scriptScheme.ReplaceAllString(text, "")
	text = eventHandler.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	return truncateRunes(text, MaxInputLength)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// IsValidDate requires an exact YYYY-MM-DD calendar date that is neither after
// now nor more than MaxDateAgeYears before it.
func IsValidDate(s string, now time.Time) bool {
	if !datePattern.MatchString(s) {
		return false
	}
	date, err := time.Parse(dateLayout, s)
	if err != nil {
		return false
	}
	now = now.UTC()
	if date.After(now) {
		return false
	}
	return !date.Before(now.AddDate(-MaxDateAgeYears, 0, 0))
}

// IsValidIntensity reports whether v lies in [1,10].
func IsValidIntensity(v int) bool {
	return v >= MinIntensity && v <= MaxIntensity
}

// ParseIntensity parses textual intensity input and checks its range.
func ParseIntensity(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, IsValidIntensity(n)
}

// IsValidID accepts letters, digits, hyphen and underscore up to MaxIDLength characters.
func IsValidID(s string) bool {
	return len(s) <= MaxIDLength && idPattern.MatchString(s)
}
