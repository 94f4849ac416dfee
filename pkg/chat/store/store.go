package store

import (
	"sync"

	"github.com/huandu/go-clone"
	"github.com/rs/zerolog/log"
)

// Notifier receives a ChangeEvent for every applied action. The watermill
// PublisherManager in pkg/events satisfies it.
type Notifier interface {
	PublishBlind(payload interface{})
}

// ChangeEvent tells subscribers that the snapshot moved to Version.
type ChangeEvent struct {
	Version uint64 `json:"version"`
	Action  string `json:"action"`
	ChatID  string `json:"chat_id,omitempty"`
}

// Store owns the current Snapshot. All mutation goes through Dispatch, which applies
// actions one at a time under a lock, so readers never observe a half-applied action.
type Store struct {
	mu       sync.Mutex
	state    Snapshot
	notifier Notifier
}

type Option func(*Store)

func WithNotifier(n Notifier) Option {
	return func(s *Store) {
		s.notifier = n
	}
}

func WithInitialSnapshot(snapshot Snapshot) Option {
	return func(s *Store) {
		s.state = snapshot
	}
}

func New(options ...Option) *Store {
	ret := &Store{
		state: NewSnapshot(),
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

// Dispatch applies the actions in order.
func (s *Store) Dispatch(actions ...Action) {
	events := make([]ChangeEvent, 0, len(actions))

	s.mu.Lock()
	for _, a := range actions {
		s.state = Reduce(s.state, a)
		s.state.Version++
		events = append(events, ChangeEvent{
			Version: s.state.Version,
			Action:  a.Type.String(),
			ChatID:  a.ChatID,
		})
	}
	s.mu.Unlock()

	for _, e := range events {
		log.Trace().
			Str("component", "store").
			Uint64("version", e.Version).
			Str("action", e.Action).
			Str("chat_id", e.ChatID).
			Msg("applied action")
		if s.notifier != nil {
			s.notifier.PublishBlind(e)
		}
	}
}

// Snapshot returns a deep copy of the current state; callers may keep or modify it
// freely.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone.Clone(s.state).(Snapshot)
}

// Version is a cheap way to detect changes without copying the snapshot.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Version
}
