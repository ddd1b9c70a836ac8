package examdate

import (
	"regexp"
	"strings"
	"time"
)

const (
	// DateLayout is the canonical exam-date format returned by the lookup service.
	DateLayout = "2006-01-02 15:04:05"

	// DayLayout is the calendar-day portion of DateLayout.
	DayLayout = "2006-01-02"
)

var canonicalPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)

// fallbackLayouts are tried in order by NormalizeForStorage.
var fallbackLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"2006-01-02",
	"20060102150405",
	"20060102",
}

// IsValidDateFormat reports whether s is exactly "YYYY-MM-DD HH:mm:ss" and a real date.
func IsValidDateFormat(s string) bool {
	if !canonicalPattern.MatchString(s) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// NormalizeForStorage returns s in DateLayout. Values already in that format are
// returned unchanged; anything unparseable yields ("", false).
func NormalizeForStorage(s string) (string, bool) {
	if IsValidDateFormat(s) {
		return s, true
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), true
		}
	}
	return "", false
}

// DatePart returns the calendar-day portion of a canonical date string.
func DatePart(s string) string {
	if len(s) < len(DayLayout) {
		return s
	}
	return s[:len(DayLayout)]
}

// ParseDay parses the calendar day of a canonical date string as midnight UTC.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(DayLayout, DatePart(s))
}
