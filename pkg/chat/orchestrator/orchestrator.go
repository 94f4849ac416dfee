package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/parley/pkg/chat"
	"github.com/go-go-golems/parley/pkg/chat/gateway"
	"github.com/go-go-golems/parley/pkg/chat/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	OpRefresh    = "refresh"
	OpSelect     = "select"
	OpStart      = "start"
	OpSendPrompt = "send_prompt"
)

// User-facing texts used when the service did not explain a failure.
const (
	ErrorLoadChats    = "Unable to load chats."
	ErrorLoadMessages = "Unable to load messages."
	ErrorStartChat    = "Unable to start chat."
	ErrorSendMessage  = "Unable to send message."
)

// MaxTitleLength caps the title derived from a chat's first prompt, in runes.
const MaxTitleLength = 80

var ErrClosed = errors.New("orchestrator is closed")

// Orchestrator drives the gateway and commits the results to the store. Every
// operation returns at once with a Handle and finishes on its own goroutine;
// operations may overlap and never cancel each other.
type Orchestrator struct {
	gateway gateway.Gateway
	store   *store.Store
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	mu     sync.Mutex
	closed bool
}

type Option func(*Orchestrator)

// WithClock sets the time source used for optimistic messages.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New binds an orchestrator to ctx. Cancelling ctx or calling Close stops
// in-flight work.
func New(ctx context.Context, gw gateway.Gateway, s *store.Store, options ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(ctx)
	ret := &Orchestrator{
		gateway: gw,
		store:   s,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

// Close cancels the session context and waits for every outstanding operation.
// Operations started afterwards complete immediately with ErrClosed.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	o.cancel()
	return o.group.Wait()
}

// Snapshot is the current store state.
func (o *Orchestrator) Snapshot() store.Snapshot {
	return o.store.Snapshot()
}

// launch runs prelude synchronously, then work on a new goroutine.
func (o *Orchestrator) launch(op string, prelude func(), work func(ctx context.Context) error) *Handle {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return completedHandle(op, ErrClosed)
	}
	if prelude != nil {
		prelude()
	}

	h := newHandle(op)
	o.group.Go(func() error {
		start := time.Now()
		log.Debug().Str("component", "orchestrator").Str("op", op).Msg("operation started")

		err := work(o.ctx)

		ev := log.Debug()
		if err != nil {
			ev = log.Warn().Err(err)
		}
		ev.Str("component", "orchestrator").
			Str("op", op).
			Dur("duration", time.Since(start)).
			Msg("operation finished")

		h.finish(err)
		// failures are reported through the store and the handle, never to the group
		return nil
	})
	return h
}

// fail commits the user-facing error text for err and returns the matching
// OperationError.
func (o *Orchestrator) fail(op string, err error, fallback string) error {
	msg := userMessage(err, fallback)
	o.store.Dispatch(store.SetError(msg))
	return &OperationError{Operation: op, Message: msg, Err: err}
}

func userMessage(err error, fallback string) string {
	if msg, ok := gateway.ServerMessage(err); ok {
		return msg
	}
	return fallback
}

// Refresh reloads the chat list. LoadingChats is set before Refresh returns.
func (o *Orchestrator) Refresh() *Handle {
	return o.launch(OpRefresh, o.beginRefresh, o.refresh)
}

func (o *Orchestrator) beginRefresh() {
	o.store.Dispatch(
		store.SetFlag(store.FlagLoadingChats, true),
		store.ClearError(),
	)
}

// refresh expects beginRefresh to have run.
func (o *Orchestrator) refresh(ctx context.Context) error {
	defer o.store.Dispatch(store.SetFlag(store.FlagLoadingChats, false))

	var ret error
	chats, err := o.gateway.ListChats(ctx)
	if err != nil {
		ret = o.fail(OpRefresh, err, ErrorLoadChats)
	} else {
		o.store.Dispatch(store.SetChats(chat.EnsureChatIDs(chats)))
	}

	// set whatever the outcome
	o.store.Dispatch(store.SetFlag(store.FlagInitialized, true))
	return ret
}

type selectSettings struct {
	force bool
}

type SelectOption func(*selectSettings)

// WithForce reloads the messages even when they are already cached.
func WithForce() SelectOption {
	return func(s *selectSettings) {
		s.force = true
	}
}

// Select makes chatID current before returning, then loads its messages unless
// they are cached. An empty chatID is a no-op.
func (o *Orchestrator) Select(chatID string, options ...SelectOption) *Handle {
	settings := &selectSettings{}
	for _, opt := range options {
		opt(settings)
	}

	if chatID == "" {
		return completedHandle(OpSelect, nil)
	}

	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return completedHandle(OpSelect, ErrClosed)
	}

	o.store.Dispatch(store.SetCurrentChat(chatID))
	if o.isCached(chatID) && !settings.force {
		log.Trace().Str("component", "orchestrator").Str("chat_id", chatID).Msg("messages cached")
		return completedHandle(OpSelect, nil)
	}

	return o.launch(OpSelect, o.beginLoadMessages, func(ctx context.Context) error {
		return o.loadMessages(ctx, chatID)
	})
}

func (o *Orchestrator) isCached(chatID string) bool {
	_, ok := o.store.Snapshot().Messages(chatID)
	return ok
}

// selectInline is select run on the calling goroutine.
func (o *Orchestrator) selectInline(ctx context.Context, chatID string) error {
	if chatID == "" {
		return nil
	}
	o.store.Dispatch(store.SetCurrentChat(chatID))
	if o.isCached(chatID) {
		return nil
	}
	o.beginLoadMessages()
	return o.loadMessages(ctx, chatID)
}

func (o *Orchestrator) beginLoadMessages() {
	o.store.Dispatch(
		store.SetFlag(store.FlagLoadingMessages, true),
		store.ClearError(),
	)
}

// loadMessages expects beginLoadMessages to have run.
func (o *Orchestrator) loadMessages(ctx context.Context, chatID string) error {
	defer o.store.Dispatch(store.SetFlag(store.FlagLoadingMessages, false))

	messages, err := o.gateway.ListMessages(ctx, chatID)
	if err != nil {
		return o.fail(OpSelect, err, ErrorLoadMessages)
	}
	// keyed by chatID, so a late answer only ever fills its own chat
	o.store.Dispatch(store.SetMessages(chatID, chat.EnsureMessageIDs(messages)))
	return nil
}

// Start creates a chat, optionally seeded with prompt, and makes it current.
// Sending is set before Start returns.
func (o *Orchestrator) Start(prompt string) *Handle {
	prelude := func() {
		o.store.Dispatch(
			store.SetFlag(store.FlagSending, true),
			store.ClearError(),
		)
	}
	return o.launch(OpStart, prelude, func(ctx context.Context) error {
		return o.start(ctx, prompt)
	})
}

func (o *Orchestrator) start(ctx context.Context, prompt string) error {
	defer o.store.Dispatch(store.SetFlag(store.FlagSending, false))

	if strings.TrimSpace(prompt) == "" {
		prompt = ""
	}
	title := DeriveTitle(prompt, len(o.store.Snapshot().Chats))

	created, err := o.gateway.CreateChat(ctx, chat.CreateChatRequest{Title: title, Message: prompt})
	if err != nil {
		return o.fail(OpStart, err, ErrorStartChat)
	}
	c := chat.EnsureChatID(*created)
	if c.RecordID == "" {
		return o.fail(OpStart, errors.Wrap(gateway.ErrEmptyResponse, "created chat has no id"), ErrorStartChat)
	}

	o.store.Dispatch(
		store.AddChat(c),
		store.SetCurrentChat(c.RecordID),
	)

	if prompt != "" {
		return o.selectInline(ctx, c.RecordID)
	}
	return nil
}

// DeriveTitle names a new chat after its first prompt: the trimmed prompt cut to
// MaxTitleLength runes, or "New Chat N" where N follows the existing count.
func DeriveTitle(prompt string, existingChats int) string {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return fmt.Sprintf("New Chat %d", existingChats+1)
	}
	runes := []rune(trimmed)
	if len(runes) > MaxTitleLength {
		return strings.TrimSpace(string(runes[:MaxTitleLength]))
	}
	return trimmed
}

// SendPrompt posts content to the current chat. The user's message is added
// optimistically before SendPrompt returns and stays even if the send fails.
// Without a current chat it starts a new one seeded with content.
func (o *Orchestrator) SendPrompt(content string) *Handle {
	chatID := o.store.Snapshot().CurrentChatID
	if chatID == "" {
		return o.Start(content)
	}

	prelude := func() {
		o.store.Dispatch(
			store.SetFlag(store.FlagSending, true),
			store.ClearError(),
			store.AddMessage(chatID, chat.NewProvisionalMessage(chatID, content, o.now())),
		)
	}

	return o.launch(OpSendPrompt, prelude, func(ctx context.Context) error {
		return o.sendPrompt(ctx, chatID, content)
	})
}

func (o *Orchestrator) sendPrompt(ctx context.Context, chatID string, content string) error {
	defer o.store.Dispatch(store.SetFlag(store.FlagSending, false))

	resp, err := o.gateway.SendMessage(ctx, chatID, content)
	if err != nil {
		return o.fail(OpSendPrompt, err, ErrorSendMessage)
	}
	if len(resp.Messages) > 0 {
		o.store.Dispatch(store.AddMessages(chatID, chat.EnsureMessageIDs(resp.Messages)))
	}

	// picks up the chat's new title and activity time
	o.beginRefresh()
	return o.refresh(ctx)
}
