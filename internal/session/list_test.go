package session

import (
	"testing"

	"github.com/MPhong03/tdtu-admission-client/internal/model/chat"
)

func ids(items []chat.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func itemsFor(idList ...string) []chat.Item {
	out := make([]chat.Item, len(idList))
	for i, id := range idList {
		out[i] = chat.Item{ID: id}
	}
	return out
}

func TestPrependOlderKeepsOrderAndDropsDuplicates(t *testing.T) {
	existing := itemsFor("h3", "h4", "h5")
	older := itemsFor("h1", "h2", "h3")

	merged := prependOlder(existing, older)

	want := []string{"h1", "h2", "h3", "h4", "h5"}
	got := ids(merged)
	if len(got) != len(want) {
		t.Fatalf("unexpected length: got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order: got %v want %v", got, want)
		}
	}
}

func TestPrependOlderEmptyPage(t *testing.T) {
	existing := itemsFor("h1")
	if got := prependOlder(existing, nil); len(got) != 1 {
		t.Fatalf("empty page must not change the transcript: %v", ids(got))
	}
}

func TestReverseItems(t *testing.T) {
	items := reverseItems(itemsFor("h3", "h2", "h1"))
	want := []string{"h1", "h2", "h3"}
	for i := range want {
		if items[i].ID != want[i] {
			t.Fatalf("unexpected order: %v", ids(items))
		}
	}
}

func TestRewriteID(t *testing.T) {
	items := itemsFor("temp-1", "h1")

	if !rewriteID(items, "temp-1", "h2") {
		t.Fatal("expected rewrite to report a change")
	}
	if items[0].ID != "h2" {
		t.Fatalf("temp id not rewritten: %v", ids(items))
	}
	if rewriteID(items, "temp-1", "h3") {
		t.Fatal("rewrite of a missing id must report no change")
	}
}

func TestSetAnswerMissingIDIsNoop(t *testing.T) {
	items := itemsFor("h1")
	if setAnswer(items, "ghost", "x") {
		t.Fatal("expected no-op for missing id")
	}
	if items[0].Answer != "" {
		t.Fatalf("unrelated item mutated: %+v", items[0])
	}
}
