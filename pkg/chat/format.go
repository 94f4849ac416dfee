package chat

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/dustin/go-humanize"
)

const (
	UntitledChat     = "Untitled chat"
	UnknownTimestamp = "unknown"
)

// DisplayTitle is the title shown in chat listings.
func DisplayTitle(c Chat) string {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		return UntitledChat
	}
	return title
}

// ParseTimestamp parses the ISO-8601 timestamps used by the service, falling back to
// a lenient parser for the odd format some backends emit.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatTimestamp renders s in local time, or "unknown" when it does not parse.
func FormatTimestamp(s string) string {
	t, ok := ParseTimestamp(s)
	if !ok {
		return UnknownTimestamp
	}
	return t.Local().Format("2006-01-02 15:04")
}

// RelativeTime renders s as "3 minutes ago", or "unknown".
func RelativeTime(s string) string {
	t, ok := ParseTimestamp(s)
	if !ok {
		return UnknownTimestamp
	}
	return humanize.Time(t)
}

// LastActivity picks the most relevant timestamp of a chat for listings.
func LastActivity(c Chat) string {
	return firstNonEmpty(c.LastMessageAt, c.UpdatedAt, c.CreatedAt)
}
