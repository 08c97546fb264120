package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/hupe1980/sitecrew/artifact"
	"github.com/hupe1980/sitecrew/logging"
)

// Options configures a Pipeline.
type Options struct {
	// Filename is the fixed artifact filename inside the target directory.
	Filename string
	// RemoteName is the version-control remote to publish to.
	RemoteName string
	// RemoteURL registers a default remote when none exists. An existing
	// remote with a different URL is treated as already configured and is
	// not repointed. Empty means publish locally only (no push).
	RemoteURL string
	// PrimaryBranch is pushed first; SecondaryBranch is the single retry
	// target on rejection.
	PrimaryBranch   string
	SecondaryBranch string
	// CommitterName/Email are set on the repository when no identity is
	// configured yet. Setting them again is a no-op.
	CommitterName  string
	CommitterEmail string
	// PushTimeout bounds each push attempt.
	PushTimeout time.Duration

	Logger logging.Logger
}

// Pipeline publishes artifacts with go-git, operating on the repository
// in-process without shelling out or changing directories.
type Pipeline struct {
	dir    string
	opts   Options
	logger logging.Logger
}

// NewPipeline creates a pipeline targeting the given directory.
func NewPipeline(dir string, optFns ...func(o *Options)) *Pipeline {
	opts := Options{
		Filename:        "index.html",
		RemoteName:      "origin",
		PrimaryBranch:   "main",
		SecondaryBranch: "master",
		CommitterName:   "sitecrew",
		CommitterEmail:  "sitecrew@localhost",
		PushTimeout:     60 * time.Second,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Pipeline{dir: dir, opts: opts, logger: opts.Logger}
}

// Publish writes the artifact and commits/pushes it. The returned Result is
// always populated; the error mirrors Result.Status == StatusFailed and is
// a *Error tagged with the failing stage.
func (p *Pipeline) Publish(ctx context.Context, art artifact.Artifact) (Result, error) {
	fail := func(stage string, err error) (Result, error) {
		werr := stageErr(stage, err)
		p.logger.Error("deploy failed", "stage", stage, "error", err)
		return Result{Status: StatusFailed, Diagnostic: werr.Error(), Dir: p.dir}, werr
	}

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fail(StageDir, err)
	}

	path := filepath.Join(p.dir, p.opts.Filename)
	if err := os.WriteFile(path, []byte(art.Content), 0o644); err != nil {
		return fail(StageWrite, err)
	}
	p.logger.Info("artifact written", "path", path, "bytes", len(art.Content))

	repo, err := p.ensureRepo()
	if err != nil {
		return fail(StageInit, err)
	}

	if err := p.ensureIdentity(repo); err != nil {
		return fail(StageConfig, err)
	}

	// Remote-registration conflicts are non-fatal: an existing remote with
	// a different URL stays as-is and is logged, never repointed.
	if err := p.ensureRemote(repo); err != nil {
		return fail(StageRemote, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fail(StageStage, err)
	}

	// Stage only the artifact file, never the whole tree.
	if _, err := wt.Add(p.opts.Filename); err != nil {
		return fail(StageStage, err)
	}

	status, err := wt.Status()
	if err != nil {
		return fail(StageStage, err)
	}
	// An unchanged file does not appear in the status map at all.
	fs, dirty := status[p.opts.Filename]
	if !dirty || fs.Staging == git.Unmodified {
		p.logger.Info("artifact unchanged, nothing to commit", "path", path)
		return Result{Status: StatusNoChange, Diagnostic: "no changes to commit", Dir: p.dir}, nil
	}

	msg := fmt.Sprintf("Deploy generated page (%s)", time.Now().UTC().Format(time.RFC3339))
	sig := &object.Signature{Name: p.opts.CommitterName, Email: p.opts.CommitterEmail, When: time.Now()}
	if _, err := wt.Commit(msg, &git.CommitOptions{Author: sig}); err != nil {
		return fail(StageCommit, err)
	}
	p.logger.Info("artifact committed", "message", msg)

	if p.opts.RemoteURL == "" {
		if _, err := repo.Remote(p.opts.RemoteName); err != nil {
			return Result{Status: StatusSuccess, Diagnostic: "committed locally; no remote configured", Dir: p.dir}, nil
		}
	}

	if diag, err := p.push(ctx, repo); err != nil {
		return Result{Status: StatusFailed, Diagnostic: diag, Dir: p.dir}, stageErr(StagePush, err)
	}

	return Result{Status: StatusSuccess, Diagnostic: "artifact committed and pushed", Dir: p.dir}, nil
}

// ensureRepo opens the repository at the target directory, initializing one
// with the primary branch as default when absent.
func (p *Pipeline) ensureRepo() (*git.Repository, error) {
	repo, err := git.PlainOpen(p.dir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, err
	}
	p.logger.Info("initializing repository", "dir", p.dir)
	return git.PlainInitWithOptions(p.dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{
			DefaultBranch: plumbing.NewBranchReferenceName(p.opts.PrimaryBranch),
		},
	})
}

// ensureIdentity sets a committer identity when none is configured.
// Safe to call on an already-configured repository.
func (p *Pipeline) ensureIdentity(repo *git.Repository) error {
	cfg, err := repo.Config()
	if err != nil {
		return err
	}
	if cfg.User.Name != "" {
		return nil
	}
	cfg.User.Name = p.opts.CommitterName
	cfg.User.Email = p.opts.CommitterEmail
	return repo.SetConfig(cfg)
}

// ensureRemote registers the configured default remote if none exists. An
// existing remote pointing elsewhere is treated as configured.
func (p *Pipeline) ensureRemote(repo *git.Repository) error {
	remote, err := repo.Remote(p.opts.RemoteName)
	if err == nil {
		urls := remote.Config().URLs
		if p.opts.RemoteURL != "" && (len(urls) == 0 || urls[0] != p.opts.RemoteURL) {
			p.logger.Warn("remote already configured with different url, leaving as-is",
				"remote", p.opts.RemoteName, "configured", urls, "requested", p.opts.RemoteURL)
		}
		return nil
	}
	if !errors.Is(err, git.ErrRemoteNotFound) {
		return err
	}
	if p.opts.RemoteURL == "" {
		return nil
	}
	p.logger.Info("registering remote", "remote", p.opts.RemoteName, "url", p.opts.RemoteURL)
	_, err = repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: p.opts.RemoteName,
		URLs: []string{p.opts.RemoteURL},
	})
	return err
}

// push publishes HEAD to the primary branch, retrying once against the
// secondary branch on rejection. Each attempt is bounded by PushTimeout.
// Returns the captured diagnostic alongside the terminal error.
func (p *Pipeline) push(ctx context.Context, repo *git.Repository) (string, error) {
	head, err := repo.Head()
	if err != nil {
		return fmt.Sprintf("deploy push: resolving HEAD: %v", err), err
	}

	primaryErr := p.pushBranch(ctx, repo, head, p.opts.PrimaryBranch)
	if primaryErr == nil {
		return "", nil
	}
	p.logger.Warn("push rejected, retrying secondary branch",
		"branch", p.opts.PrimaryBranch, "retry", p.opts.SecondaryBranch, "error", primaryErr)

	secondaryErr := p.pushBranch(ctx, repo, head, p.opts.SecondaryBranch)
	if secondaryErr == nil {
		return "", nil
	}

	diag := fmt.Sprintf("push to %s failed: %v; retry on %s failed: %v",
		p.opts.PrimaryBranch, primaryErr, p.opts.SecondaryBranch, secondaryErr)
	return diag, secondaryErr
}

func (p *Pipeline) pushBranch(ctx context.Context, repo *git.Repository, head *plumbing.Reference, branch string) error {
	pushCtx := ctx
	if p.opts.PushTimeout > 0 {
		var cancel context.CancelFunc
		pushCtx, cancel = context.WithTimeout(ctx, p.opts.PushTimeout)
		defer cancel()
	}

	refspec := gitconfig.RefSpec(fmt.Sprintf("%s:refs/heads/%s", head.Name(), branch))
	err := repo.PushContext(pushCtx, &git.PushOptions{
		RemoteName: p.opts.RemoteName,
		RefSpecs:   []gitconfig.RefSpec{refspec},
	})
	if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if errors.Is(pushCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("push timed out after %s: %w", p.opts.PushTimeout, err)
	}
	return err
}
