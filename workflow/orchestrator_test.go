package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/sitecrew/artifact"
	"github.com/hupe1980/sitecrew/deploy"
	"github.com/hupe1980/sitecrew/model"
	"github.com/hupe1980/sitecrew/participant"
	"github.com/hupe1980/sitecrew/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePublisher records the artifact it was handed.
type fakePublisher struct {
	result deploy.Result
	err    error
	got    *artifact.Artifact
}

func (f *fakePublisher) Publish(_ context.Context, art artifact.Artifact) (deploy.Result, error) {
	f.got = &art
	return f.result, f.err
}

func scriptedTeam() []participant.Participant {
	return []participant.Participant{
		participant.NewScriptedParticipant(participant.AnalystName,
			"Spec: a single page with a greeting."),
		participant.NewScriptedParticipant(participant.BuilderName,
			"Here is the page:\n```html\n<p>hello</p>\n```"),
		participant.NewScriptedParticipant(participant.GatekeeperName,
			participant.ReadyPhrase),
	}
}

func TestOrchestrator_AutoApproveEndToEnd(t *testing.T) {
	pub := &fakePublisher{result: deploy.Result{Status: deploy.StatusSuccess, Diagnostic: "ok"}}
	o, err := New(scriptedTeam(), artifact.NewExtractor("html"), pub,
		func(o *Options) { o.AutoApprove = true })
	require.NoError(t, err)

	res, err := o.Run(context.Background(), "Build a greeting page")

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, StateCompleted, o.State())
	assert.True(t, res.Deployed)
	require.NotNil(t, res.Artifact)
	assert.Equal(t, "<p>hello</p>", res.Artifact.Content)
	require.NotNil(t, pub.got)
	assert.Equal(t, "<p>hello</p>", pub.got.Content)

	// initiating request + three replies + injected approval
	assert.Equal(t, 5, res.TurnCount)
	last := res.Transcript[len(res.Transcript)-1]
	assert.Equal(t, transcript.RoleUser, last.Role)
	assert.Equal(t, DefaultApprovalPhrase, last.Text)
}

func TestOrchestrator_ReadyWithoutApprovalIsIncomplete(t *testing.T) {
	o, err := New(scriptedTeam(), artifact.NewExtractor("html"), &fakePublisher{})
	require.NoError(t, err)

	res, err := o.Run(context.Background(), "Build a greeting page")

	require.NoError(t, err)
	assert.Equal(t, StatusIncomplete, res.Status)
	assert.Equal(t, StateAwaitingApproval, res.State)
	assert.False(t, res.Deployed)
	assert.NotEmpty(t, res.Transcript)
}

func TestOrchestrator_ApproverSuppliesApproval(t *testing.T) {
	pub := &fakePublisher{result: deploy.Result{Status: deploy.StatusSuccess}}
	o, err := New(scriptedTeam(), artifact.NewExtractor("html"), pub,
		func(o *Options) {
			o.Approver = func(context.Context, *transcript.Transcript) (string, error) {
				return "Looks great, APPROVED", nil
			}
		})
	require.NoError(t, err)

	res, err := o.Run(context.Background(), "Build it")

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.True(t, res.Deployed)
}

func TestOrchestrator_ApproverDeclinesLeavesIncomplete(t *testing.T) {
	o, err := New(scriptedTeam(), artifact.NewExtractor("html"), &fakePublisher{},
		func(o *Options) {
			o.Approver = func(context.Context, *transcript.Transcript) (string, error) {
				return "please change the colors", nil
			}
		})
	require.NoError(t, err)

	res, err := o.Run(context.Background(), "Build it")

	require.NoError(t, err)
	assert.Equal(t, StatusIncomplete, res.Status)
	assert.Contains(t, res.Diagnostic, "did not approve")
}

func TestOrchestrator_TurnLimitAborts(t *testing.T) {
	// Participants that never converge.
	team := []participant.Participant{
		participant.NewModelParticipant("Chatter", "chat", model.NewMockModel()),
	}
	o, err := New(team, artifact.NewExtractor("html"), &fakePublisher{},
		func(o *Options) { o.MaxTurns = 4 })
	require.NoError(t, err)

	res, err := o.Run(context.Background(), "Build it")

	assert.ErrorIs(t, err, ErrTurnLimit)
	assert.Equal(t, StatusAborted, res.Status)
	// 1 user turn + 4 replies preserved.
	assert.Equal(t, 5, res.TurnCount)
	assert.NotEmpty(t, res.Transcript)
}

// failingParticipant fails every reply with a completion error.
type failingParticipant struct{ name string }

func (f failingParticipant) Name() string { return f.name }

func (f failingParticipant) Reply(context.Context, *transcript.Transcript) (transcript.Turn, error) {
	return transcript.Turn{}, &model.CompletionError{Provider: "mock", Err: errors.New("rate limited")}
}

func TestOrchestrator_CompletionFailureAbortsPreservingTranscript(t *testing.T) {
	team := []participant.Participant{
		participant.NewScriptedParticipant(participant.AnalystName, "an honest spec"),
		failingParticipant{name: participant.BuilderName},
	}
	o, err := New(team, artifact.NewExtractor("html"), &fakePublisher{})
	require.NoError(t, err)

	res, runErr := o.Run(context.Background(), "Build it")

	var ce *model.CompletionError
	require.ErrorAs(t, runErr, &ce)
	assert.Equal(t, StatusAborted, res.Status)
	// Initiating turn plus the one successful reply are preserved.
	assert.Equal(t, 2, res.TurnCount)
	assert.Equal(t, "an honest spec", res.Transcript[1].Text)
}

func TestOrchestrator_CancelledBetweenTurns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o, err := New(scriptedTeam(), artifact.NewExtractor("html"), &fakePublisher{})
	require.NoError(t, err)

	res, runErr := o.Run(ctx, "Build it")

	assert.ErrorIs(t, runErr, context.Canceled)
	assert.Equal(t, StatusAborted, res.Status)
	assert.Equal(t, 1, res.TurnCount)
}

func TestOrchestrator_ArtifactMissingDespiteTermination(t *testing.T) {
	// Gatekeeper opens a fence but never closes it: gates pass, extraction
	// cannot.
	team := []participant.Participant{
		participant.NewScriptedParticipant(participant.BuilderName, "```html\n<p>unclosed"),
		participant.NewScriptedParticipant(participant.GatekeeperName, participant.ReadyPhrase),
	}
	o, err := New(team, artifact.NewExtractor("html"), &fakePublisher{},
		func(o *Options) { o.AutoApprove = true })
	require.NoError(t, err)

	res, runErr := o.Run(context.Background(), "Build it")

	assert.ErrorIs(t, runErr, artifact.ErrNotFound)
	assert.Equal(t, StatusAborted, res.Status)
	assert.Equal(t, "artifact missing despite termination", res.Diagnostic)
}

func TestOrchestrator_DeploymentFailureStillCompletes(t *testing.T) {
	pub := &fakePublisher{
		result: deploy.Result{Status: deploy.StatusFailed, Diagnostic: "push rejected"},
		err:    &deploy.Error{Stage: deploy.StagePush, Err: errors.New("rejected")},
	}
	o, err := New(scriptedTeam(), artifact.NewExtractor("html"), pub,
		func(o *Options) { o.AutoApprove = true })
	require.NoError(t, err)

	res, runErr := o.Run(context.Background(), "Build it")

	require.NoError(t, runErr)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.False(t, res.Deployed)
	assert.Contains(t, res.Diagnostic, "push rejected")
}

func TestOrchestrator_NilPublisherSkipsDeployment(t *testing.T) {
	o, err := New(scriptedTeam(), artifact.NewExtractor("html"), nil,
		func(o *Options) { o.AutoApprove = true })
	require.NoError(t, err)

	res, runErr := o.Run(context.Background(), "Build it")

	require.NoError(t, runErr)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.False(t, res.Deployed)
	assert.Contains(t, res.Diagnostic, "deployment skipped")
}

func TestOrchestrator_CustomGatesReachTermination(t *testing.T) {
	team := []participant.Participant{
		participant.NewScriptedParticipant(participant.BuilderName,
			"```html\n<p>done</p>\n```"),
		participant.NewScriptedParticipant(participant.GatekeeperName, "SHIP IT"),
	}
	extr := artifact.NewExtractor("html")
	gates := NewGates(extr, func(o *GatesOptions) {
		o.ReadyPhrase = "SHIP IT"
		o.ApprovalPhrase = "GO AHEAD"
	})
	pub := &fakePublisher{result: deploy.Result{Status: deploy.StatusSuccess}}
	o, err := New(team, extr, pub, func(o *Options) {
		o.Gates = gates
		o.AutoApprove = true
	})
	require.NoError(t, err)

	res, runErr := o.Run(context.Background(), "Build it")

	require.NoError(t, runErr)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.True(t, res.Deployed)

	// The synthesized approval turn carries the configured phrase.
	last := res.Transcript[len(res.Transcript)-1]
	assert.Equal(t, transcript.RoleUser, last.Role)
	assert.Equal(t, "GO AHEAD", last.Text)
}

func TestOrchestrator_EndToEndWithRealPipeline(t *testing.T) {
	dir := t.TempDir()
	pipeline := deploy.NewPipeline(dir)
	o, err := New(scriptedTeam(), artifact.NewExtractor("html"), pipeline,
		func(o *Options) { o.AutoApprove = true })
	require.NoError(t, err)

	res, runErr := o.Run(context.Background(), "Build X")

	require.NoError(t, runErr)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.True(t, res.Deployed)
	require.NotNil(t, res.Deployment)
	assert.Equal(t, deploy.StatusSuccess, res.Deployment.Status)

	data, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<p>hello</p>", string(data))
}
