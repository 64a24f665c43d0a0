package session

import (
	"sync"
	"testing"
	"time"
	"unicode/utf8"
)

type frameSink struct {
	mu      sync.Mutex
	frames  []string
	targets []string
	done    bool
}

func (s *frameSink) collect(targetID, prefix string, done bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, prefix)
	s.targets = append(s.targets, targetID)
	if done {
		s.done = true
	}
}

func (s *frameSink) finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func TestTypewriterMonotonicReveal(t *testing.T) {
	sink := &frameSink{}
	tw := newTypewriter(time.Millisecond, sink.collect)

	const text = "Xin chào bạn"
	tw.play("h1", text)

	waitForCond(t, sink.finished)

	sink.mu.Lock()
	defer sink.mu.Unlock()

	if len(sink.frames) != utf8.RuneCountInString(text) {
		t.Fatalf("expected one frame per rune, got %d", len(sink.frames))
	}
	prev := 0
	for _, f := range sink.frames {
		n := utf8.RuneCountInString(f)
		if n != prev+1 {
			t.Fatalf("reveal not monotonic by one rune: %d after %d", n, prev)
		}
		prev = n
	}
	if sink.frames[len(sink.frames)-1] != text {
		t.Fatalf("final frame %q != %q", sink.frames[len(sink.frames)-1], text)
	}
}

func TestTypewriterSupersedesActivePlayback(t *testing.T) {
	sink := &frameSink{}
	tw := newTypewriter(time.Millisecond, sink.collect)

	tw.play("old", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tw.play("new", "bb")

	waitForCond(t, sink.finished)
	// Let any stray frame from the superseded playback land.
	time.Sleep(10 * time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()

	sawNew := false
	for i, target := range sink.targets {
		if target == "new" {
			sawNew = true
		}
		if sawNew && target == "old" {
			t.Fatalf("superseded playback delivered frame %d after replacement", i)
		}
	}
	if !sawNew {
		t.Fatal("replacement playback never delivered a frame")
	}
}

func TestTypewriterEmptyTextCompletesImmediately(t *testing.T) {
	sink := &frameSink{}
	tw := newTypewriter(time.Millisecond, sink.collect)

	tw.play("h1", "")
	waitForCond(t, sink.finished)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.frames) != 1 || sink.frames[0] != "" {
		t.Fatalf("expected a single empty done frame, got %v", sink.frames)
	}
}

func TestTypewriterCancelStopsFrames(t *testing.T) {
	sink := &frameSink{}
	tw := newTypewriter(time.Millisecond, sink.collect)

	tw.play("h1", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	time.Sleep(5 * time.Millisecond)
	tw.cancel()

	sink.mu.Lock()
	seen := len(sink.frames)
	sink.mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	// One in-flight frame may land after cancel; the stream must stop there.
	if len(sink.frames) > seen+1 {
		t.Fatalf("frames kept arriving after cancel: %d -> %d", seen, len(sink.frames))
	}
	if sink.done {
		t.Fatal("cancelled playback must not report completion")
	}
}

func waitForCond(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}
