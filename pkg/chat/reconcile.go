package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProvisionalPrefix marks ids generated locally for messages the server has not
// confirmed yet.
const ProvisionalPrefix = "temp-"

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// CanonicalID returns the first non-empty of `_id` and `id`, or "".
func (c Chat) CanonicalID() string {
	return firstNonEmpty(c.RecordID, c.ID)
}

// CanonicalID returns the first non-empty of `_id` and `id`, or "".
func (m Message) CanonicalID() string {
	return firstNonEmpty(m.RecordID, m.ID)
}

// EnsureChatID returns a copy of c whose `_id` holds the canonical id.
// A record without any identifier reconciles to an empty id; this never fails.
func EnsureChatID(c Chat) Chat {
	c.RecordID = c.CanonicalID()
	return c
}

// EnsureMessageID returns a copy of m whose `_id` holds the canonical id.
func EnsureMessageID(m Message) Message {
	m.RecordID = m.CanonicalID()
	return m
}

func EnsureChatIDs(chats []Chat) []Chat {
	ret := make([]Chat, 0, len(chats))
	for _, c := range chats {
		ret = append(ret, EnsureChatID(c))
	}
	return ret
}

func EnsureMessageIDs(messages []Message) []Message {
	ret := make([]Message, 0, len(messages))
	for _, m := range messages {
		ret = append(ret, EnsureMessageID(m))
	}
	return ret
}

// IsProvisional reports whether m still carries a locally generated placeholder id.
func IsProvisional(m Message) bool {
	return strings.HasPrefix(m.CanonicalID(), ProvisionalPrefix)
}

// NewProvisionalMessage builds the optimistic user message shown while a send is in
// flight. Every call yields a distinct placeholder id.
func NewProvisionalMessage(chatID string, content string, now time.Time) Message {
	return Message{
		RecordID:  ProvisionalPrefix + uuid.NewString(),
		Chat:      chatID,
		Role:      RoleUser,
		Content:   content,
		CreatedAt: now.UTC().Format(TimestampLayout),
	}
}
