// Package workflow drives a round-robin conversation among the sitecrew
// participants: the orchestrator requests one reply per turn, appends it to
// the transcript and asks the termination gates after every turn whether
// the negotiation has converged to an approved deliverable.
package workflow

import (
	"strings"

	"github.com/hupe1980/sitecrew/artifact"
	"github.com/hupe1980/sitecrew/transcript"
)

// DefaultApprovalPhrase is scanned for (case insensitive) in user turns by
// the approval gate.
const DefaultApprovalPhrase = "APPROVED"

// GatesOptions configures the termination gates.
type GatesOptions struct {
	// ReadyPhrase is the literal the gatekeeper emits when the deliverable
	// passes review.
	ReadyPhrase string
	// ApprovalPhrase is the literal expected in a user turn.
	ApprovalPhrase string
}

// Gates is the pure termination predicate over a transcript. It holds no
// state between evaluations: appending a turn may flip the result from
// false to true, never the reverse (no disapproval gate is modeled).
type Gates struct {
	extractor      *artifact.Extractor
	readyPhrase    string
	approvalPhrase string
}

// NewGates creates the predicate around the given extractor's fence tag.
func NewGates(extractor *artifact.Extractor, optFns ...func(o *GatesOptions)) *Gates {
	opts := GatesOptions{
		ReadyPhrase:    "READY FOR USER APPROVAL",
		ApprovalPhrase: DefaultApprovalPhrase,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Gates{
		extractor:      extractor,
		readyPhrase:    strings.ToUpper(opts.ReadyPhrase),
		approvalPhrase: strings.ToUpper(opts.ApprovalPhrase),
	}
}

// ArtifactPresent reports whether any turn contains an opened fence for the
// declared tag. The fence does not have to be closed: termination must not
// block on a formatting detail the extractor can still resolve.
func (g *Gates) ArtifactPresent(tr *transcript.Transcript) bool {
	_, ok := tr.LatestBy(func(t transcript.Turn) bool {
		return g.extractor.FenceOpened(t.Text)
	})
	return ok
}

// GatekeeperReady reports whether the most recent turn carrying the ready
// phrase exists. Scanning newest-first means a later disapproval would not
// be masked by an earlier stale approval.
func (g *Gates) GatekeeperReady(tr *transcript.Transcript) bool {
	_, ok := tr.LatestBy(func(t transcript.Turn) bool {
		return strings.Contains(strings.ToUpper(t.Text), g.readyPhrase)
	})
	return ok
}

// UserApproved reports whether a user-role turn containing the approval
// phrase exists, scanning newest-first. The role check is mandatory: a
// participant quoting the phrase must not count.
func (g *Gates) UserApproved(tr *transcript.Transcript) bool {
	_, ok := tr.LatestBy(func(t transcript.Turn) bool {
		return t.Role == transcript.RoleUser &&
			strings.Contains(strings.ToUpper(t.Text), g.approvalPhrase)
	})
	return ok
}

// ReadyForApproval holds when the artifact and gatekeeper gates pass, i.e.
// the workflow only lacks the user's approval turn.
func (g *Gates) ReadyForApproval(tr *transcript.Transcript) bool {
	return g.ArtifactPresent(tr) && g.GatekeeperReady(tr)
}

// ShouldTerminate evaluates all three gates in order with short-circuiting:
// approval language appearing before any artifact exists must not trigger
// termination.
func (g *Gates) ShouldTerminate(tr *transcript.Transcript) bool {
	if !g.ArtifactPresent(tr) {
		return false
	}
	if !g.GatekeeperReady(tr) {
		return false
	}
	return g.UserApproved(tr)
}
