package store

import (
	"github.com/go-go-golems/parley/pkg/chat"
)

type ActionType int

const (
	ActionSetChats ActionType = iota + 1
	ActionSetCurrentChat
	ActionSetMessages
	ActionAddMessages
	ActionAddChat
	ActionAddMessage
	ActionSetFlag
	ActionSetError
)

func (t ActionType) String() string {
	switch t {
	case ActionSetChats:
		return "set_chats"
	case ActionSetCurrentChat:
		return "set_current_chat"
	case ActionSetMessages:
		return "set_messages"
	case ActionAddMessages:
		return "add_messages"
	case ActionAddChat:
		return "add_chat"
	case ActionAddMessage:
		return "add_message"
	case ActionSetFlag:
		return "set_flag"
	case ActionSetError:
		return "set_error"
	}
	return "unknown"
}

// Flag names one of the boolean fields of a Snapshot.
type Flag int

const (
	FlagLoadingChats Flag = iota + 1
	FlagLoadingMessages
	FlagSending
	FlagInitialized
)

func (f Flag) String() string {
	switch f {
	case FlagLoadingChats:
		return "loading_chats"
	case FlagLoadingMessages:
		return "loading_messages"
	case FlagSending:
		return "sending"
	case FlagInitialized:
		return "initialized"
	}
	return "unknown"
}

// Action is the tagged variant consumed by Reduce. Only the fields relevant to Type
// are read; use the constructors below rather than building it by hand.
type Action struct {
	Type ActionType

	ChatID   string
	Chats    []chat.Chat
	Chat     chat.Chat
	Messages []chat.Message
	Message  chat.Message
	Flag     Flag
	Value    bool
	Error    string
}

func SetChats(chats []chat.Chat) Action {
	return Action{Type: ActionSetChats, Chats: chats}
}

// SetCurrentChat selects chatID; "" clears the selection.
func SetCurrentChat(chatID string) Action {
	return Action{Type: ActionSetCurrentChat, ChatID: chatID}
}

func SetMessages(chatID string, messages []chat.Message) Action {
	return Action{Type: ActionSetMessages, ChatID: chatID, Messages: messages}
}

func AddMessages(chatID string, messages []chat.Message) Action {
	return Action{Type: ActionAddMessages, ChatID: chatID, Messages: messages}
}

func AddChat(c chat.Chat) Action {
	return Action{Type: ActionAddChat, Chat: c}
}

func AddMessage(chatID string, m chat.Message) Action {
	return Action{Type: ActionAddMessage, ChatID: chatID, Message: m}
}

func SetFlag(flag Flag, value bool) Action {
	return Action{Type: ActionSetFlag, Flag: flag, Value: value}
}

// SetError replaces the error flag; "" means no error.
func SetError(msg string) Action {
	return Action{Type: ActionSetError, Error: msg}
}

func ClearError() Action {
	return SetError("")
}
