// Package sitecrew provides a high-level façade over the workflow
// orchestrator and its collaborators, enabling construction of a complete
// page-building crew in a few lines. Most applications interact with this
// package by:
//  1. Creating a SiteCrew via New() (optionally overriding config, model,
//     participants or the deployment publisher)
//  2. Running a workflow with Run(ctx, request)
//  3. Inspecting the returned workflow.Result
//
// The façade wires defaults from config: the completion model for the
// configured provider, the three fixed roles in their handoff order, the
// fence extractor and the go-git deployment pipeline.
package sitecrew

import (
	"context"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/sitecrew/artifact"
	"github.com/hupe1980/sitecrew/config"
	"github.com/hupe1980/sitecrew/deploy"
	"github.com/hupe1980/sitecrew/logging"
	"github.com/hupe1980/sitecrew/model"
	"github.com/hupe1980/sitecrew/model/anthropic"
	"github.com/hupe1980/sitecrew/model/openai"
	"github.com/hupe1980/sitecrew/participant"
	"github.com/hupe1980/sitecrew/workflow"
)

// Options configures the SiteCrew instance.
type Options struct {
	// Config supplies operational settings; defaults to config.Default().
	Config *config.Config

	// Model overrides the completion backend derived from Config.Provider.
	Model model.Model

	// Participants overrides the default three-role team. The slice order
	// is the fixed handoff order.
	Participants []participant.Participant

	// Publisher overrides the default go-git pipeline. Set to nil together
	// with DisableDeploy for dry runs.
	Publisher workflow.Publisher

	// DisableDeploy skips the deploying phase entirely.
	DisableDeploy bool

	// Approver supplies the user's approval interactively when
	// Config.AutoApprove is off.
	Approver workflow.Approver

	// Gates overrides the termination predicate, e.g. to change the ready
	// or approval phrase.
	Gates *workflow.Gates

	// Logger defaults to NoOpLogger if nil.
	Logger logging.Logger
}

// SiteCrew aggregates the orchestrator and its wiring.
type SiteCrew struct {
	cfg          *config.Config
	orchestrator *workflow.Orchestrator
}

// New creates a SiteCrew instance with optional overrides. Configuration is
// validated before any model is constructed, so missing credentials fail
// here rather than mid-conversation.
func New(optFns ...func(o *Options)) (*SiteCrew, error) {
	cfg := config.Default()
	opts := Options{
		Config: &cfg,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}

	llm := opts.Model
	if llm == nil {
		var err error
		llm, err = newModel(opts.Config)
		if err != nil {
			return nil, err
		}
	}

	participants := opts.Participants
	if participants == nil {
		participants = participant.DefaultTeam(llm, func(o *participant.ModelParticipantOptions) {
			o.ReplyTimeout = opts.Config.ReplyTimeout
		})
	}

	extractor := artifact.NewExtractor(opts.Config.ArtifactTag)

	publisher := opts.Publisher
	if publisher == nil && !opts.DisableDeploy {
		publisher = deploy.NewPipeline(opts.Config.TargetDir, func(o *deploy.Options) {
			o.Filename = opts.Config.ArtifactFile
			o.RemoteName = opts.Config.RemoteName
			o.RemoteURL = opts.Config.RemoteURL
			o.PrimaryBranch = opts.Config.PrimaryBranch
			o.SecondaryBranch = opts.Config.SecondaryBranch
			o.PushTimeout = opts.Config.PushTimeout
			o.Logger = opts.Logger
		})
	}

	orchestrator, err := workflow.New(participants, extractor, publisher, func(o *workflow.Options) {
		o.MaxTurns = opts.Config.MaxTurns
		o.AutoApprove = opts.Config.AutoApprove
		o.Approver = opts.Approver
		o.Gates = opts.Gates
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}

	return &SiteCrew{cfg: opts.Config, orchestrator: orchestrator}, nil
}

// Run executes one workflow for the initiating request and returns its
// result summary. The transcript is preserved in the result on every path.
func (s *SiteCrew) Run(ctx context.Context, request string) (workflow.Result, error) {
	return s.orchestrator.Run(ctx, request)
}

// Config returns the effective configuration.
func (s *SiteCrew) Config() *config.Config { return s.cfg }

// newModel constructs the completion backend for the configured provider.
func newModel(cfg *config.Config) (model.Model, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
		}), nil
	case "mock":
		return model.NewMockModel(), nil
	default:
		return nil, &config.ConfigurationError{Field: "provider", Reason: fmt.Sprintf("unknown provider %q", cfg.Provider)}
	}
}
