package store

import (
	"github.com/go-go-golems/parley/pkg/chat"
)

// Snapshot is the full client-side view of chats, messages and in-flight flags.
type Snapshot struct {
	Chats          []chat.Chat
	MessagesByChat map[string][]chat.Message
	CurrentChatID  string

	LoadingChats    bool
	LoadingMessages bool
	Sending         bool
	Initialized     bool
	Error           string

	// Version is bumped by Store once per applied action. Reduce leaves it alone.
	Version uint64
}

func NewSnapshot() Snapshot {
	return Snapshot{
		Chats:          []chat.Chat{},
		MessagesByChat: map[string][]chat.Message{},
	}
}

// Messages returns the messages loaded for chatID and whether that chat has been
// loaded at all.
func (s Snapshot) Messages(chatID string) ([]chat.Message, bool) {
	msgs, ok := s.MessagesByChat[chatID]
	return msgs, ok
}

// CurrentMessages returns the messages of the selected chat.
func (s Snapshot) CurrentMessages() []chat.Message {
	if s.CurrentChatID == "" {
		return nil
	}
	return s.MessagesByChat[s.CurrentChatID]
}

// CurrentChat returns the selected chat if it is part of the chat list.
func (s Snapshot) CurrentChat() (chat.Chat, bool) {
	if s.CurrentChatID == "" {
		return chat.Chat{}, false
	}
	for _, c := range s.Chats {
		if c.CanonicalID() == s.CurrentChatID {
			return c, true
		}
	}
	return chat.Chat{}, false
}

// Reduce is the pure transition function. It never mutates s: slices and the
// message map are copied before being changed.
func Reduce(s Snapshot, a Action) Snapshot {
	switch a.Type {
	case ActionSetChats:
		s.Chats = copyChats(a.Chats)
	case ActionSetCurrentChat:
		s.CurrentChatID = a.ChatID
	case ActionSetMessages:
		s.MessagesByChat = withMessages(s.MessagesByChat, a.ChatID, copyMessages(a.Messages))
	case ActionAddMessages:
		merged := MergeMessages(s.MessagesByChat[a.ChatID], a.Messages)
		s.MessagesByChat = withMessages(s.MessagesByChat, a.ChatID, merged)
	case ActionAddChat:
		chats := make([]chat.Chat, 0, len(s.Chats)+1)
		chats = append(chats, a.Chat)
		s.Chats = append(chats, s.Chats...)
	case ActionAddMessage:
		current := s.MessagesByChat[a.ChatID]
		msgs := make([]chat.Message, 0, len(current)+1)
		msgs = append(msgs, current...)
		s.MessagesByChat = withMessages(s.MessagesByChat, a.ChatID, append(msgs, a.Message))
	case ActionSetFlag:
		switch a.Flag {
		case FlagLoadingChats:
			s.LoadingChats = a.Value
		case FlagLoadingMessages:
			s.LoadingMessages = a.Value
		case FlagSending:
			s.Sending = a.Value
		case FlagInitialized:
			s.Initialized = a.Value
		}
	case ActionSetError:
		s.Error = a.Error
	}
	return s
}

func withMessages(m map[string][]chat.Message, chatID string, msgs []chat.Message) map[string][]chat.Message {
	ret := make(map[string][]chat.Message, len(m)+1)
	for k, v := range m {
		ret[k] = v
	}
	ret[chatID] = msgs
	return ret
}

func copyChats(chats []chat.Chat) []chat.Chat {
	ret := make([]chat.Chat, len(chats))
	copy(ret, chats)
	return ret
}

func copyMessages(msgs []chat.Message) []chat.Message {
	ret := make([]chat.Message, len(msgs))
	copy(ret, msgs)
	return ret
}
