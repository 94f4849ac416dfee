package events

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	Version uint64 `json:"version"`
	Action  string `json:"action"`
}

func startRouter(t *testing.T, router *EventRouter) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = router.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		_ = router.Close()
		<-done
	})

	select {
	case <-router.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}
}

func TestPublisherManagerDeliversInOrder(t *testing.T) {
	router, err := NewEventRouter()
	require.NoError(t, err)

	var mu sync.Mutex
	var received []testEvent
	var seqs []uint64
	got := make(chan struct{}, 10)

	router.AddHandler("collect", TopicChanges, DecodeJSON(func(ctx context.Context, seq uint64, e testEvent) error {
		mu.Lock()
		received = append(received, e)
		seqs = append(seqs, seq)
		mu.Unlock()
		got <- struct{}{}
		return nil
	}))
	startRouter(t, router)

	pm := NewPublisherManager()
	pm.SubscribePublisher(TopicChanges, router.Publisher)

	for i := uint64(1); i <= 3; i++ {
		pm.PublishBlind(testEvent{Version: i, Action: "set_chats"})
	}

	for i := 0; i < 3; i++ {
		select {
		case <-got:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 3)
	assert.Equal(t, []uint64{0, 1, 2}, seqs)
	for i, e := range received {
		assert.Equal(t, uint64(i+1), e.Version)
		assert.Equal(t, "set_chats", e.Action)
	}
}

func TestPublishWithoutPublishers(t *testing.T) {
	pm := NewPublisherManager()
	assert.NoError(t, pm.Publish(testEvent{Version: 1}))
}

func TestPublishRejectsUnencodable(t *testing.T) {
	pm := NewPublisherManager()
	assert.Error(t, pm.Publish(make(chan int)))
}

func TestDumpEvents(t *testing.T) {
	router, err := NewEventRouter()
	require.NoError(t, err)

	var buf bytes.Buffer
	msg := message.NewMessage("id-1", []byte(`{"version":7,"action":"add_message"}`))
	msg.Metadata.Set(SequenceNumberKey, "4")

	require.NoError(t, router.DumpEvents(&buf)(msg))
	assert.Contains(t, buf.String(), `"version": 7`)
	assert.Contains(t, buf.String(), `"seq": "4"`)
}

func TestSequenceNumberMissing(t *testing.T) {
	_, err := SequenceNumber(message.NewMessage("id", nil))
	assert.Error(t, err)
}
