package gateway

import (
	"bytes"
	"encoding/json"

	"github.com/go-go-golems/parley/pkg/chat"
)

// The service is not consistent about where it puts payloads: chats may come under
// `chats` or `data`, and a send may answer with one message object or an array under
// `messages`, `message` or `data`. A nil slice means "key absent or null"; an empty
// but non-nil slice is an explicit empty list and still wins precedence.

type chatsEnvelope struct {
	Status int         `json:"status,omitempty"`
	Chats  []chat.Chat `json:"chats"`
	Data   []chat.Chat `json:"data"`
}

func (e chatsEnvelope) list() []chat.Chat {
	if e.Chats != nil {
		return e.Chats
	}
	if e.Data != nil {
		return e.Data
	}
	return []chat.Chat{}
}

type chatEnvelope struct {
	Status int        `json:"status,omitempty"`
	Chat   *chat.Chat `json:"chat"`
	Data   *chat.Chat `json:"data"`
}

func (e chatEnvelope) chat() *chat.Chat {
	if e.Chat != nil {
		return e.Chat
	}
	return e.Data
}

type messagesEnvelope struct {
	Status   int            `json:"status,omitempty"`
	Messages []chat.Message `json:"messages"`
	Data     []chat.Message `json:"data"`
}

func (e messagesEnvelope) list() []chat.Message {
	if e.Messages != nil {
		return e.Messages
	}
	if e.Data != nil {
		return e.Data
	}
	return []chat.Message{}
}

// messageList decodes either a single message object or an array of messages.
type messageList []chat.Message

func (l *messageList) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*l = nil
		return nil
	}
	if trimmed[0] == '[' {
		var msgs []chat.Message
		if err := json.Unmarshal(trimmed, &msgs); err != nil {
			return err
		}
		if msgs == nil {
			msgs = []chat.Message{}
		}
		*l = msgs
		return nil
	}
	var m chat.Message
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return err
	}
	*l = messageList{m}
	return nil
}

type sendEnvelope struct {
	Status   int            `json:"status,omitempty"`
	Messages []chat.Message `json:"messages"`
	Message  messageList    `json:"message"`
	Data     messageList    `json:"data"`
	Chat     *chat.Chat     `json:"chat"`
}

func (e sendEnvelope) list() []chat.Message {
	switch {
	case e.Messages != nil:
		return e.Messages
	case e.Message != nil:
		return e.Message
	case e.Data != nil:
		return e.Data
	}
	return []chat.Message{}
}

type errorEnvelope struct {
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}
