package workflow

import (
	"testing"

	"github.com/hupe1980/sitecrew/artifact"
	"github.com/hupe1980/sitecrew/transcript"
	"github.com/stretchr/testify/assert"
)

const fencedPage = "```html\n<p>x</p>\n```"

func newGates() *Gates {
	return NewGates(artifact.NewExtractor("html"))
}

func build(turns ...transcript.Turn) *transcript.Transcript {
	tr := transcript.New()
	for _, t := range turns {
		tr.Append(t)
	}
	return tr
}

func TestShouldTerminate_FalseWithoutArtifact(t *testing.T) {
	// Approval language present but no fenced artifact anywhere.
	tr := build(
		transcript.NewParticipantTurn("ReviewerGatekeeper", "READY FOR USER APPROVAL"),
		transcript.NewUserTurn("APPROVED"),
	)

	assert.False(t, newGates().ShouldTerminate(tr))
}

func TestShouldTerminate_FalseWithoutUserApproval(t *testing.T) {
	tr := build(
		transcript.NewParticipantTurn("Builder", fencedPage),
		transcript.NewParticipantTurn("ReviewerGatekeeper", "READY FOR USER APPROVAL"),
	)

	assert.False(t, newGates().ShouldTerminate(tr))
}

func TestShouldTerminate_ParticipantQuotingApprovedDoesNotCount(t *testing.T) {
	tr := build(
		transcript.NewParticipantTurn("Builder", fencedPage),
		transcript.NewParticipantTurn("ReviewerGatekeeper",
			`READY FOR USER APPROVAL - please reply "APPROVED"`),
	)

	g := newGates()
	assert.False(t, g.UserApproved(tr))
	assert.False(t, g.ShouldTerminate(tr))
}

func TestShouldTerminate_AllGates(t *testing.T) {
	tr := build(
		transcript.NewParticipantTurn("Builder", fencedPage),
		transcript.NewParticipantTurn("ReviewerGatekeeper", "ready for user approval"),
		transcript.NewUserTurn("approved"),
	)

	assert.True(t, newGates().ShouldTerminate(tr))
}

func TestArtifactPresent_OpenedFenceSuffices(t *testing.T) {
	// Gate 1 only needs an opened fence; a missing closing fence is a
	// formatting detail for the extractor, not the terminator.
	tr := build(transcript.NewParticipantTurn("Builder", "```html\n<p>unclosed"))

	assert.True(t, newGates().ArtifactPresent(tr))
}

func TestGates_MonotonicUnderAppends(t *testing.T) {
	g := newGates()
	tr := build(transcript.NewParticipantTurn("Builder", fencedPage))
	assert.False(t, g.ShouldTerminate(tr))

	tr.Append(transcript.NewParticipantTurn("ReviewerGatekeeper", "READY FOR USER APPROVAL"))
	assert.False(t, g.ShouldTerminate(tr))

	tr.Append(transcript.NewUserTurn("APPROVED"))
	assert.True(t, g.ShouldTerminate(tr))

	// More unrelated turns do not flip the result back.
	tr.Append(transcript.NewParticipantTurn("Builder", "thanks"))
	assert.True(t, g.ShouldTerminate(tr))
}

func TestReadyForApproval(t *testing.T) {
	g := newGates()

	tr := build(transcript.NewParticipantTurn("Builder", fencedPage))
	assert.False(t, g.ReadyForApproval(tr))

	tr.Append(transcript.NewParticipantTurn("ReviewerGatekeeper", "READY FOR USER APPROVAL"))
	assert.True(t, g.ReadyForApproval(tr))
}

func TestNewGates_CustomPhrases(t *testing.T) {
	g := NewGates(artifact.NewExtractor("html"), func(o *GatesOptions) {
		o.ReadyPhrase = "SHIP IT"
		o.ApprovalPhrase = "LGTM"
	})

	tr := build(
		transcript.NewParticipantTurn("Builder", fencedPage),
		transcript.NewParticipantTurn("ReviewerGatekeeper", "ship it"),
		transcript.NewUserTurn("lgtm"),
	)

	assert.True(t, g.ShouldTerminate(tr))
}
