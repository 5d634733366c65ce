// Package transcript reconstructs discrete interview turns from the
// stream of partial transcription fragments delivered by the live session.
package transcript

import (
	"strings"
	"sync"
	"time"
)

// Role identifies which side of the interview produced a piece of text.
type Role string

const (
	// RoleUser is the candidate speaking into the microphone.
	RoleUser Role = "user"
	// RoleModel is the AI interviewer.
	RoleModel Role = "model"
)

// Item is one committed transcript entry. Items are immutable once
// appended to the history.
type Item struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Assembler accumulates partial-text fragments per role and commits them
// to an ordered, append-only history at turn boundaries.
//
// At most one uncommitted segment of text exists per role at any time.
// Interruption clears pending fragments only; committed items are never
// edited or removed.
type Assembler struct {
	mu           sync.Mutex
	pendingUser  strings.Builder
	pendingModel strings.Builder
	history      []Item

	now func() time.Time
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{now: time.Now}
}

// AppendPartial concatenates a fragment onto the pending buffer for role.
// Fragments are taken verbatim: empty strings, whitespace, and mid-word
// pieces are all legal.
func (a *Assembler) AppendPartial(role Role, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch role {
	case RoleUser:
		a.pendingUser.WriteString(text)
	case RoleModel:
		a.pendingModel.WriteString(text)
	}
}

// CommitTurn closes the current turn. For each role whose pending buffer
// trims to non-empty text, one item is appended to the history and that
// buffer is cleared. A turn may therefore commit zero, one, or two items.
// The newly committed items are returned in commit order.
func (a *Assembler) CommitTurn() []Item {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	var committed []Item

	if text := strings.TrimSpace(a.pendingUser.String()); text != "" {
		committed = append(committed, Item{Role: RoleUser, Text: text, Timestamp: now})
	}
	if text := strings.TrimSpace(a.pendingModel.String()); text != "" {
		committed = append(committed, Item{Role: RoleModel, Text: text, Timestamp: now})
	}

	a.pendingUser.Reset()
	a.pendingModel.Reset()

	a.history = append(a.history, committed...)
	return committed
}

// ClearPending discards both pending buffers without committing. Used on
// interruption: text transcribed before a barge-in that never reached a
// turn boundary is dropped, not preserved.
func (a *Assembler) ClearPending() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pendingUser.Reset()
	a.pendingModel.Reset()
}

// Pending returns the uncommitted text accumulated so far for role.
func (a *Assembler) Pending(role Role) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch role {
	case RoleUser:
		return a.pendingUser.String()
	case RoleModel:
		return a.pendingModel.String()
	}
	return ""
}

// History returns a snapshot of the committed transcript in commit order.
func (a *Assembler) History() []Item {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Item, len(a.history))
	copy(out, a.history)
	return out
}

// Len returns the number of committed items.
func (a *Assembler) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.history)
}
