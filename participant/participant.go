// Package participant defines the conversational roles taking part in a
// sitecrew workflow. A Participant is stateless across turns: all state
// lives in the transcript, which is passed in full on every reply request.
package participant

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/sitecrew/model"
	"github.com/hupe1980/sitecrew/transcript"
)

// Participant produces the next turn given the full transcript so far.
// Identity is the name; the orchestrator cycles participants in a fixed
// role order.
type Participant interface {
	Name() string
	Reply(ctx context.Context, tr *transcript.Transcript) (transcript.Turn, error)
}

// ModelParticipantOptions configures a ModelParticipant.
type ModelParticipantOptions struct {
	// ReplyTimeout bounds each completion call. Zero disables the bound.
	ReplyTimeout time.Duration
}

// ModelParticipant binds a name and a fixed behavioral contract
// (instructions) to a completion model.
type ModelParticipant struct {
	name         string
	instructions string
	llm          model.Model
	replyTimeout time.Duration
}

// NewModelParticipant creates a participant backed by the given model.
func NewModelParticipant(name, instructions string, llm model.Model, optFns ...func(o *ModelParticipantOptions)) *ModelParticipant {
	opts := ModelParticipantOptions{
		ReplyTimeout: 2 * time.Minute,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelParticipant{
		name:         name,
		instructions: instructions,
		llm:          llm,
		replyTimeout: opts.ReplyTimeout,
	}
}

// Name returns the participant identifier.
func (p *ModelParticipant) Name() string { return p.name }

// Instructions returns the participant's behavioral contract.
func (p *ModelParticipant) Instructions() string { return p.instructions }

// Reply requests a completion for the current transcript and wraps it in a
// participant turn. The completion call is bounded by the configured reply
// timeout; an exceeded bound surfaces as a context error wrapped in the
// provider's CompletionError.
func (p *ModelParticipant) Reply(ctx context.Context, tr *transcript.Transcript) (transcript.Turn, error) {
	if p.replyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.replyTimeout)
		defer cancel()
	}

	text, err := p.llm.Complete(ctx, model.Request{
		Instructions: p.instructions,
		Turns:        tr.All(),
	})
	if err != nil {
		return transcript.Turn{}, fmt.Errorf("participant %s: %w", p.name, err)
	}
	return transcript.NewParticipantTurn(p.name, text), nil
}

// ScriptedParticipant replays fixed replies in order. Useful for tests and
// offline dry runs; it fails once the script is exhausted.
type ScriptedParticipant struct {
	name    string
	replies []string
	next    int
}

// NewScriptedParticipant creates a participant that replays the given replies.
func NewScriptedParticipant(name string, replies ...string) *ScriptedParticipant {
	return &ScriptedParticipant{name: name, replies: replies}
}

// Name returns the participant identifier.
func (p *ScriptedParticipant) Name() string { return p.name }

// Reply implements Participant.
func (p *ScriptedParticipant) Reply(ctx context.Context, _ *transcript.Transcript) (transcript.Turn, error) {
	if err := ctx.Err(); err != nil {
		return transcript.Turn{}, err
	}
	if p.next >= len(p.replies) {
		return transcript.Turn{}, fmt.Errorf("participant %s: script exhausted after %d replies", p.name, len(p.replies))
	}
	reply := p.replies[p.next]
	p.next++
	return transcript.NewParticipantTurn(p.name, reply), nil
}
