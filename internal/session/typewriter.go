package session

import (
	"sync"
	"time"
)

// typewriter reveals an already-known answer one rune per tick, purely for
// display effect. One playback slot exists per controller; starting a new
// playback supersedes the previous one and its timer.
type typewriter struct {
	interval time.Duration
	frame    func(targetID, prefix string, done bool)

	mu      sync.Mutex
	current *playback
}

type playback struct {
	targetID string
	stop     chan struct{}
	stopOnce sync.Once
}

func (p *playback) cancelPlayback() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func newTypewriter(interval time.Duration, frame func(targetID, prefix string, done bool)) *typewriter {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	return &typewriter{interval: interval, frame: frame}
}

// play starts revealing fullText into targetID, cancelling any active
// playback first. Frames are delivered from a dedicated goroutine in
// strictly increasing prefix order.
func (t *typewriter) play(targetID, fullText string) {
	p := &playback{targetID: targetID, stop: make(chan struct{})}

	t.mu.Lock()
	if t.current != nil {
		t.current.cancelPlayback()
	}
	t.current = p
	t.mu.Unlock()

	go t.run(p, fullText)
}

func (t *typewriter) run(p *playback, fullText string) {
	runes := []rune(fullText)
	if len(runes) == 0 {
		t.frame(p.targetID, "", true)
		t.finish(p)
		return
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for i := 1; i <= len(runes); i++ {
		select {
		case <-ticker.C:
		case <-p.stop:
			return
		}
		t.frame(p.targetID, string(runes[:i]), i == len(runes))
	}
	t.finish(p)
}

func (t *typewriter) finish(p *playback) {
	t.mu.Lock()
	if t.current == p {
		t.current = nil
	}
	t.mu.Unlock()
}

// cancel stops any active playback without delivering further frames.
func (t *typewriter) cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		t.current.cancelPlayback()
		t.current = nil
	}
}
