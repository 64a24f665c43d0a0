package session

import "github.com/MPhong03/tdtu-admission-client/internal/model/chat"

// Phase is the exchange state machine. A session is Idle, waiting on the
// single pending exchange, or playing an answer back. A second exchange is
// rejected while the phase is not Idle; nothing is silently overwritten.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhasePlaying
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhasePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// State is everything the presentation needs to render one conversation.
// The zero value is the pre-conversation state.
type State struct {
	ChatID string
	Name   string
	Items  []chat.Item

	// Pagination cursor and guards. Page is the last successfully loaded
	// page number; zero before the first load.
	Page           int
	HasMore        bool
	LoadingInitial bool
	LoadingMore    bool

	// PendingID is the single identifier (temporary or server-issued)
	// eligible for typewriter updates; empty when idle.
	PendingID    string
	TypingBuffer string
	Phase        Phase
}

// Update notifies the presentation that observable state changed. Consumers
// read a fresh Snapshot; ScrollToBottom asks the view to re-anchor at the
// newest item after the next render.
type Update struct {
	ScrollToBottom bool
}
