package session

import "github.com/MPhong03/tdtu-admission-client/internal/model/chat"

// The transcript is ordered ascending by arrival and holds unique ids.
// Every mutation goes through these helpers so both invariants live in one
// place.

// appendItem adds a live arrival to the end of the transcript.
func appendItem(items []chat.Item, item chat.Item) []chat.Item {
	return append(items, item)
}

// prependOlder merges a strictly-older page before the existing transcript,
// dropping any item whose id is already present.
func prependOlder(existing, older []chat.Item) []chat.Item {
	if len(older) == 0 {
		return existing
	}

	seen := make(map[string]struct{}, len(existing))
	for _, it := range existing {
		seen[it.ID] = struct{}{}
	}

	merged := make([]chat.Item, 0, len(older)+len(existing))
	for _, it := range older {
		if _, dup := seen[it.ID]; dup {
			continue
		}
		merged = append(merged, it)
	}
	return append(merged, existing...)
}

// reverseItems flips a newest-first server page into ascending order,
// in place.
func reverseItems(items []chat.Item) []chat.Item {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items
}

// rewriteID reassigns every item carrying oldID to newID and reports
// whether anything changed.
func rewriteID(items []chat.Item, oldID, newID string) bool {
	changed := false
	for i := range items {
		if items[i].ID == oldID {
			items[i].ID = newID
			changed = true
		}
	}
	return changed
}

// setAnswer writes text into the answer of the item with id. A missing id
// is a no-op: playback may outlive a reset transcript.
func setAnswer(items []chat.Item, id, text string) bool {
	for i := range items {
		if items[i].ID == id {
			items[i].Answer = text
			return true
		}
	}
	return false
}

// findItem returns a pointer into items for id, or nil.
func findItem(items []chat.Item, id string) *chat.Item {
	for i := range items {
		if items[i].ID == id {
			return &items[i]
		}
	}
	return nil
}
