package store

import (
	"github.com/go-go-golems/parley/pkg/chat"
)

// MergeMessages folds an authoritative incoming batch into the messages already held
// for a chat.
//
//   - a provisional message is dropped once any incoming message has the same role and
//     content (its confirmed counterpart arrived)
//   - incoming messages without an id are discarded
//   - duplicates by id collapse to the last copy, kept at the position of the first
//   - messages without an id already in the list are kept and never matched
//
// Applying the same batch twice gives the same result as applying it once.
func MergeMessages(existing []chat.Message, incoming []chat.Message) []chat.Message {
	merged := make([]chat.Message, 0, len(existing)+len(incoming))
	for _, m := range existing {
		if chat.IsProvisional(m) && hasCounterpart(incoming, m) {
			continue
		}
		merged = append(merged, m)
	}
	for _, m := range incoming {
		if m.CanonicalID() == "" {
			continue
		}
		merged = append(merged, m)
	}

	ret := make([]chat.Message, 0, len(merged))
	index := make(map[string]int, len(merged))
	for _, m := range merged {
		id := m.CanonicalID()
		if id == "" {
			ret = append(ret, m)
			continue
		}
		if i, ok := index[id]; ok {
			ret[i] = m
			continue
		}
		index[id] = len(ret)
		ret = append(ret, m)
	}
	return ret
}

// NOTE: two distinct sends with identical text in one chat are indistinguishable
// here; the first confirmation elides both placeholders.
func hasCounterpart(incoming []chat.Message, m chat.Message) bool {
	for _, in := range incoming {
		if in.Role == m.Role && in.Content == m.Content {
			return true
		}
	}
	return false
}
