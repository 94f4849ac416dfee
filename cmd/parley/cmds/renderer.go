package cmds

import (
	"context"
	"io"
	"sync"

	"github.com/go-go-golems/parley/pkg/chat"
	"github.com/go-go-golems/parley/pkg/chat/store"
	"github.com/rs/zerolog/log"
)

// renderer prints the current chat as store changes come in over the event bus.
// Each message is printed once; messages the user typed in this session are not
// echoed back.
type renderer struct {
	mu    sync.Mutex
	out   io.Writer
	store *store.Store

	shown    map[string]map[string]bool
	expected map[string]int
}

func newRenderer(out io.Writer, s *store.Store) *renderer {
	return &renderer{
		out:      out,
		store:    s,
		shown:    map[string]map[string]bool{},
		expected: map[string]int{},
	}
}

// print runs f with exclusive access to the output.
func (r *renderer) print(f func(w io.Writer)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f(r.out)
}

// expect marks content as typed by the user, so its echo from the service is
// not printed.
func (r *renderer) expect(content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expected[content]++
}

// forget makes the next render of chatID print its whole history again.
func (r *renderer) forget(chatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.shown, chatID)
}

func (r *renderer) handle(_ context.Context, seq uint64, e store.ChangeEvent) error {
	log.Trace().Uint64("seq", seq).Uint64("version", e.Version).Str("action", e.Action).Msg("render")

	switch e.Action {
	case store.ActionSetCurrentChat.String(),
		store.ActionSetMessages.String(),
		store.ActionAddMessages.String():
		r.renderCurrent()
	case store.ActionSetError.String():
		snap := r.store.Snapshot()
		if snap.Error != "" {
			r.print(func(w io.Writer) { printError(w, snap.Error) })
		}
	}
	return nil
}

func (r *renderer) renderCurrent() {
	snap := r.store.Snapshot()
	chatID := snap.CurrentChatID
	if chatID == "" {
		return
	}
	msgs, ok := snap.Messages(chatID)
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	shown := r.shown[chatID]
	if shown == nil {
		shown = map[string]bool{}
		r.shown[chatID] = shown
	}
	for _, m := range msgs {
		id := m.CanonicalID()
		if id == "" || chat.IsProvisional(m) || shown[id] {
			continue
		}
		shown[id] = true
		if m.Role == chat.RoleUser && r.expected[m.Content] > 0 {
			r.expected[m.Content]--
			continue
		}
		printMessage(r.out, m)
	}
}
