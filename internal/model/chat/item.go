package chat

import (
	"fmt"
	"strings"
	"time"
)

// Feedback is the visitor rating attached to an answered item.
type Feedback struct {
	ID        string    `json:"_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Item is one question/answer turn in a conversation. The answer starts
// empty and grows during typewriter playback until it freezes at the full
// server-provided text.
type Item struct {
	ID         string    `json:"_id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	CreatedAt  time.Time `json:"createdAt"`
	Feedback   *Feedback `json:"feedback,omitempty"`
	IsFeedback bool      `json:"isFeedback,omitempty"`
}

const tempIDPrefix = "temp-"

// NewTempID returns a client-generated placeholder id for an item awaiting
// server confirmation.
func NewTempID(now time.Time) string {
	return fmt.Sprintf("%s%d", tempIDPrefix, now.UnixMilli())
}

// IsTempID reports whether id was produced by NewTempID.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}
