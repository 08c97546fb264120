package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/sitecrew/artifact"
	"github.com/hupe1980/sitecrew/deploy"
	"github.com/hupe1980/sitecrew/logging"
	"github.com/hupe1980/sitecrew/participant"
	"github.com/hupe1980/sitecrew/transcript"
)

// State is the orchestrator's lifecycle phase.
type State string

const (
	StateInitialized      State = "initialized"
	StateRunning          State = "running"
	StateAwaitingApproval State = "awaiting_approval"
	StateDeploying        State = "deploying"
	StateCompleted        State = "completed"
	StateAborted          State = "aborted"
)

// Status summarizes a finished run for the caller.
type Status string

const (
	// StatusCompleted means the negotiation converged and the deploying
	// phase ran (its own outcome is in Deployment).
	StatusCompleted Status = "completed"
	// StatusIncomplete means the deliverable is ready but no user approval
	// was obtained (unattended run without auto-approval).
	StatusIncomplete Status = "incomplete"
	// StatusAborted means the run failed or hit its turn bound; the partial
	// transcript is preserved.
	StatusAborted Status = "aborted"
)

// Result is returned from every run, whatever the outcome. The transcript
// is always preserved: workflow failure must not discard produced work.
type Result struct {
	Status     Status
	State      State
	TurnCount  int
	Deployed   bool
	Diagnostic string
	Transcript []transcript.Turn
	Artifact   *artifact.Artifact
	Deployment *deploy.Result
}

// Publisher hands an extracted artifact to a deployment backend.
type Publisher interface {
	Publish(ctx context.Context, art artifact.Artifact) (deploy.Result, error)
}

// Approver obtains the user's approval turn text once the gatekeeper
// declares the deliverable ready. Returning an empty string leaves the run
// incomplete.
type Approver func(ctx context.Context, tr *transcript.Transcript) (string, error)

// Options configures an Orchestrator.
type Options struct {
	// MaxTurns bounds the number of participant replies; exceeding it
	// without termination aborts the run.
	MaxTurns int
	// AutoApprove makes the orchestrator synthesize the user approval turn
	// itself once the deliverable is ready. This substitutes a real user's
	// approval and changes the trust semantics of the approval gate, so it
	// is an explicit choice and defaults to off.
	AutoApprove bool
	// ApprovalText is the synthesized approval turn's text.
	ApprovalText string
	// Approver supplies the user's approval interactively. Ignored when
	// AutoApprove is set.
	Approver Approver
	// Gates overrides the termination predicate, e.g. with a custom ready
	// or approval phrase. Nil builds the default gates over the extractor.
	Gates *Gates

	Logger logging.Logger
}

// Orchestrator owns one transcript and drives the fixed-order participant
// rotation to convergence. It is single-threaded: no two participant
// replies are ever requested concurrently, and a run may be cancelled via
// ctx between turns. Concurrent runs against the same target directory are
// not serialized here; the caller is responsible for that.
type Orchestrator struct {
	participants []participant.Participant
	gates        *Gates
	extractor    *artifact.Extractor
	publisher    Publisher
	opts         Options
	logger       logging.Logger
	state        State
}

// New creates an orchestrator for the given participant rotation. The
// publisher may be nil (dry run: the deploying phase is skipped).
func New(participants []participant.Participant, extractor *artifact.Extractor, publisher Publisher, optFns ...func(o *Options)) (*Orchestrator, error) {
	if len(participants) == 0 {
		return nil, errors.New("workflow: at least one participant required")
	}
	opts := Options{
		MaxTurns: 24,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxTurns <= 0 {
		return nil, fmt.Errorf("workflow: max turns must be positive, got %d", opts.MaxTurns)
	}
	gates := opts.Gates
	if gates == nil {
		gates = NewGates(extractor)
	}
	// The synthesized approval turn has to satisfy whatever approval phrase
	// the gates expect.
	if opts.ApprovalText == "" {
		opts.ApprovalText = gates.approvalPhrase
	}
	return &Orchestrator{
		participants: participants,
		gates:        gates,
		extractor:    extractor,
		publisher:    publisher,
		opts:         opts,
		logger:       opts.Logger,
		state:        StateInitialized,
	}, nil
}

// State returns the orchestrator's current lifecycle phase.
func (o *Orchestrator) State() State { return o.state }

// Run executes the workflow for one initiating request. The returned
// Result is populated on every path; the error is non-nil exactly when the
// run aborted.
func (o *Orchestrator) Run(ctx context.Context, request string) (Result, error) {
	tr := transcript.New()
	tr.Append(transcript.NewUserTurn(request))
	o.state = StateRunning

	abort := func(diag string, err error) (Result, error) {
		o.state = StateAborted
		o.logger.Error("workflow aborted", "diagnostic", diag, "error", err)
		return Result{
			Status:     StatusAborted,
			State:      StateAborted,
			TurnCount:  tr.Len(),
			Diagnostic: diag,
			Transcript: tr.All(),
		}, err
	}

	replies := 0
	for replies < o.opts.MaxTurns {
		// Cancellation between turns.
		if err := ctx.Err(); err != nil {
			return abort("cancelled between turns", err)
		}

		p := o.participants[replies%len(o.participants)]
		turn, err := p.Reply(ctx, tr)
		if err != nil {
			return abort(fmt.Sprintf("completion failed for %s", p.Name()), err)
		}
		tr.Append(turn)
		replies++
		o.logger.Info("turn appended", "author", turn.Author, "sequence", turn.Sequence, "chars", len(turn.Text))

		if o.gates.ShouldTerminate(tr) {
			return o.deploy(ctx, tr)
		}
		if o.gates.ReadyForApproval(tr) {
			return o.awaitApproval(ctx, tr)
		}
	}

	return abort(fmt.Sprintf("turn limit %d reached without termination", o.opts.MaxTurns), ErrTurnLimit)
}

// ErrTurnLimit is returned when the conversation hits its turn bound
// without converging.
var ErrTurnLimit = errors.New("turn limit reached without termination")

// awaitApproval obtains (or synthesizes) the user approval turn and, once
// all three gates hold, moves to deployment.
func (o *Orchestrator) awaitApproval(ctx context.Context, tr *transcript.Transcript) (Result, error) {
	o.state = StateAwaitingApproval

	var approvalText string
	switch {
	case o.opts.AutoApprove:
		o.logger.Info("auto-approval enabled, synthesizing user approval turn")
		approvalText = o.opts.ApprovalText
	case o.opts.Approver != nil:
		text, err := o.opts.Approver(ctx, tr)
		if err != nil {
			o.state = StateAborted
			return Result{
				Status:     StatusAborted,
				State:      StateAborted,
				TurnCount:  tr.Len(),
				Diagnostic: "approval prompt failed",
				Transcript: tr.All(),
			}, err
		}
		approvalText = text
	}

	if approvalText == "" {
		// Ready but unattended without auto-approval: report incomplete
		// rather than inventing an approval the user never gave.
		o.state = StateAwaitingApproval
		return Result{
			Status:     StatusIncomplete,
			State:      StateAwaitingApproval,
			TurnCount:  tr.Len(),
			Diagnostic: "deliverable ready, awaiting user approval",
			Transcript: tr.All(),
		}, nil
	}

	tr.Append(transcript.NewUserTurn(approvalText))

	if !o.gates.ShouldTerminate(tr) {
		// The supplied turn did not carry the approval phrase. No rejection
		// protocol is modeled, so the run is left incomplete.
		return Result{
			Status:     StatusIncomplete,
			State:      StateAwaitingApproval,
			TurnCount:  tr.Len(),
			Diagnostic: "user response did not approve the deliverable",
			Transcript: tr.All(),
		}, nil
	}

	return o.deploy(ctx, tr)
}

// deploy extracts the artifact and hands it to the publisher.
func (o *Orchestrator) deploy(ctx context.Context, tr *transcript.Transcript) (Result, error) {
	o.state = StateDeploying

	art, err := o.extractor.Extract(tr.All())
	if err != nil {
		o.state = StateAborted
		return Result{
			Status:     StatusAborted,
			State:      StateAborted,
			TurnCount:  tr.Len(),
			Diagnostic: "artifact missing despite termination",
			Transcript: tr.All(),
		}, err
	}

	res := Result{
		Status:     StatusCompleted,
		TurnCount:  tr.Len(),
		Transcript: tr.All(),
		Artifact:   &art,
	}

	if o.publisher == nil {
		o.state = StateCompleted
		res.State = StateCompleted
		res.Diagnostic = "deployment skipped (no publisher configured)"
		return res, nil
	}

	dres, derr := o.publisher.Publish(ctx, art)
	res.Deployment = &dres
	res.Diagnostic = dres.Diagnostic
	res.Deployed = derr == nil && dres.Status != deploy.StatusFailed
	if derr != nil {
		o.logger.Error("deployment failed", "diagnostic", dres.Diagnostic, "error", derr)
	}

	o.state = StateCompleted
	res.State = StateCompleted
	return res, nil
}
