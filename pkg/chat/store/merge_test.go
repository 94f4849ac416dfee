package store

import (
	"testing"
	"time"

	"github.com/go-go-golems/parley/pkg/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(id string, role chat.Role, content string) chat.Message {
	return chat.Message{RecordID: id, Chat: "c1", Role: role, Content: content, CreatedAt: "2024-01-01T00:00:00Z"}
}

func ids(msgs []chat.Message) []string {
	ret := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ret = append(ret, m.CanonicalID())
	}
	return ret
}

func TestMergeMessagesElidesProvisionalCounterpart(t *testing.T) {
	provisional := chat.NewProvisionalMessage("c1", "hello", time.Now())
	existing := []chat.Message{msg("m0", chat.RoleAssistant, "welcome"), provisional}
	incoming := []chat.Message{
		msg("m1", chat.RoleUser, "hello"),
		msg("m2", chat.RoleAssistant, "hi there"),
	}

	out := MergeMessages(existing, incoming)
	assert.Equal(t, []string{"m0", "m1", "m2"}, ids(out))
}

func TestMergeMessagesKeepsProvisionalWithoutCounterpart(t *testing.T) {
	provisional := chat.NewProvisionalMessage("c1", "x", time.Now())
	incoming := []chat.Message{msg("m1", chat.RoleAssistant, "y")}

	out := MergeMessages([]chat.Message{provisional}, incoming)
	require.Len(t, out, 2)
	assert.Equal(t, provisional, out[0])
	assert.Equal(t, "m1", out[1].CanonicalID())
}

func TestMergeMessagesRoleMustMatchForElision(t *testing.T) {
	provisional := chat.NewProvisionalMessage("c1", "same", time.Now())
	incoming := []chat.Message{msg("m1", chat.RoleAssistant, "same")}

	out := MergeMessages([]chat.Message{provisional}, incoming)
	assert.Len(t, out, 2)
}

func TestMergeMessagesLastCopyWinsAtFirstPosition(t *testing.T) {
	existing := []chat.Message{
		msg("m1", chat.RoleUser, "old"),
		msg("m2", chat.RoleAssistant, "reply"),
	}
	incoming := []chat.Message{msg("m1", chat.RoleUser, "new")}

	out := MergeMessages(existing, incoming)
	require.Equal(t, []string{"m1", "m2"}, ids(out))
	assert.Equal(t, "new", out[0].Content)
}

func TestMergeMessagesDropsIncomingWithoutID(t *testing.T) {
	incoming := []chat.Message{
		{Role: chat.RoleAssistant, Content: "malformed"},
		msg("m1", chat.RoleAssistant, "ok"),
	}
	out := MergeMessages(nil, incoming)
	assert.Equal(t, []string{"m1"}, ids(out))
}

func TestMergeMessagesNeverMatchesExistingWithoutID(t *testing.T) {
	existing := []chat.Message{
		{Role: chat.RoleUser, Content: "a"},
		{Role: chat.RoleUser, Content: "b"},
	}
	out := MergeMessages(existing, []chat.Message{msg("m1", chat.RoleAssistant, "c")})
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].Content)
	assert.Equal(t, "b", out[1].Content)
}

func TestMergeMessagesAcceptsSecondaryIDField(t *testing.T) {
	existing := []chat.Message{msg("m1", chat.RoleUser, "q")}
	incoming := []chat.Message{{ID: "m1", Role: chat.RoleUser, Content: "q2"}}

	out := MergeMessages(existing, incoming)
	require.Len(t, out, 1)
	assert.Equal(t, "q2", out[0].Content)
}

func mergeCases() map[string]struct {
	existing []chat.Message
	incoming []chat.Message
} {
	p1 := chat.NewProvisionalMessage("c1", "hello", time.Now())
	p2 := chat.NewProvisionalMessage("c1", "again", time.Now())
	return map[string]struct {
		existing []chat.Message
		incoming []chat.Message
	}{
		"empty": {},
		"fresh batch": {
			incoming: []chat.Message{msg("m1", chat.RoleUser, "a"), msg("m2", chat.RoleAssistant, "b")},
		},
		"provisional settled": {
			existing: []chat.Message{p1},
			incoming: []chat.Message{msg("m1", chat.RoleUser, "hello"), msg("m2", chat.RoleAssistant, "hi")},
		},
		"provisional pending": {
			existing: []chat.Message{msg("m0", chat.RoleAssistant, "x"), p2},
			incoming: []chat.Message{msg("m3", chat.RoleAssistant, "y")},
		},
		"overlap and duplicates in batch": {
			existing: []chat.Message{msg("m1", chat.RoleUser, "a"), msg("m2", chat.RoleAssistant, "b")},
			incoming: []chat.Message{msg("m2", chat.RoleAssistant, "b'"), msg("m3", chat.RoleUser, "c"), msg("m3", chat.RoleUser, "c'")},
		},
		"malformed records": {
			existing: []chat.Message{{Role: chat.RoleUser, Content: "no id"}},
			incoming: []chat.Message{{Role: chat.RoleAssistant, Content: "no id either"}, msg("m1", chat.RoleAssistant, "ok")},
		},
	}
}

func TestMergeMessagesIsIdempotent(t *testing.T) {
	for name, tc := range mergeCases() {
		t.Run(name, func(t *testing.T) {
			once := MergeMessages(tc.existing, tc.incoming)
			twice := MergeMessages(once, tc.incoming)
			assert.Equal(t, once, twice)
		})
	}
}

func TestMergeMessagesYieldsUniqueIDs(t *testing.T) {
	for name, tc := range mergeCases() {
		t.Run(name, func(t *testing.T) {
			out := MergeMessages(tc.existing, tc.incoming)
			seen := map[string]bool{}
			for _, m := range out {
				id := m.CanonicalID()
				if id == "" {
					continue
				}
				assert.False(t, seen[id], "duplicate id %s", id)
				seen[id] = true
			}
		})
	}
}

func TestMergeMessagesDoesNotMutateInputs(t *testing.T) {
	existing := []chat.Message{msg("m1", chat.RoleUser, "a")}
	incoming := []chat.Message{msg("m1", chat.RoleUser, "b")}
	_ = MergeMessages(existing, incoming)
	assert.Equal(t, "a", existing[0].Content)
	assert.Equal(t, "b", incoming[0].Content)
}
