// Package transcript defines the conversational record shared by all
// sitecrew components. A Transcript is an ordered, append-only log of
// Turns owned by a single workflow run; the termination gates and the
// artifact extractor only ever read it.
package transcript

import (
	"time"

	"github.com/google/uuid"
)

// Role categorizes who produced a turn.
type Role string

const (
	// RoleUser marks the initiating request and approval turns.
	RoleUser Role = "user"
	// RoleParticipant marks a reply produced by a named participant.
	RoleParticipant Role = "participant"
)

// Turn is one atomic contribution to the conversation. Turns are immutable
// once appended; Sequence is assigned by the Transcript on append.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Author    string    `json:"author,omitempty"` // empty for user turns
	Text      string    `json:"text"`
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
}

// NewUserTurn creates a user-authored turn.
func NewUserTurn(text string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}

// NewParticipantTurn creates a turn authored by the named participant.
func NewParticipantTurn(author, text string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      RoleParticipant,
		Author:    author,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}

// Transcript is an ordered sequence of turns. It is not safe for concurrent
// use; a single orchestrator owns it for the lifetime of one run.
type Transcript struct {
	turns []Turn
	next  int
}

// New creates an empty transcript.
func New() *Transcript { return &Transcript{} }

// Append adds a turn, stamping it with the next sequence number. The
// returned turn carries the assigned sequence.
func (t *Transcript) Append(turn Turn) Turn {
	turn.Sequence = t.next
	t.next++
	t.turns = append(t.turns, turn)
	return turn
}

// All returns a defensive copy of the full ordered turn sequence.
func (t *Transcript) All() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len returns the number of turns recorded so far.
func (t *Transcript) Len() int { return len(t.turns) }

// LatestBy returns the most recent turn satisfying pred, scanning
// newest-to-oldest. The boolean reports whether any turn matched.
func (t *Transcript) LatestBy(pred func(Turn) bool) (Turn, bool) {
	for i := len(t.turns) - 1; i >= 0; i-- {
		if pred(t.turns[i]) {
			return t.turns[i], true
		}
	}
	return Turn{}, false
}
