package deploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hupe1980/sitecrew/artifact"
	"github.com/hupe1980/sitecrew/logging"
)

// ScriptRunner executes a materialized deployment script inside dir and
// returns its exit code plus captured stdout and stderr. Implementations
// must honor ctx and never change the process working directory.
type ScriptRunner interface {
	Run(ctx context.Context, dir, path string) (exitCode int, stdout, stderr string, err error)
}

// ExecRunner runs scripts with os/exec, pinning the child's working
// directory instead of chdir-ing the caller.
type ExecRunner struct{}

// Run implements ScriptRunner.
func (ExecRunner) Run(ctx context.Context, dir, path string) (int, string, string, error) {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", path)
	} else {
		cmd = exec.CommandContext(ctx, path)
	}
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return 0, stdout.String(), stderr.String(), nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), stdout.String(), stderr.String(), nil
	}
	return -1, stdout.String(), stderr.String(), err
}

// ScriptPipeline publishes artifacts by materializing a small platform
// shell script in the target directory and executing it. Exit code 0 means
// success; its output is captured verbatim into the diagnostic.
type ScriptPipeline struct {
	dir    string
	opts   Options
	runner ScriptRunner
	logger logging.Logger
}

// NewScriptPipeline creates a script-backed pipeline for the target directory.
func NewScriptPipeline(dir string, runner ScriptRunner, optFns ...func(o *Options)) *ScriptPipeline {
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
	if runner == nil {
		runner = ExecRunner{}
	}
	return &ScriptPipeline{dir: dir, opts: opts, runner: runner, logger: opts.Logger}
}

// Publish writes the artifact, materializes the deployment script and runs
// it with a bounded external process.
func (p *ScriptPipeline) Publish(ctx context.Context, art artifact.Artifact) (Result, error) {
	fail := func(stage string, err error) (Result, error) {
		werr := stageErr(stage, err)
		p.logger.Error("deploy failed", "stage", stage, "error", err)
		return Result{Status: StatusFailed, Diagnostic: werr.Error(), Dir: p.dir}, werr
	}

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fail(StageDir, err)
	}
	if err := os.WriteFile(filepath.Join(p.dir, p.opts.Filename), []byte(art.Content), 0o644); err != nil {
		return fail(StageWrite, err)
	}

	scriptPath, err := WriteScript(p.dir, p.opts)
	if err != nil {
		return fail(StageScript, err)
	}

	runCtx := ctx
	if p.opts.PushTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.opts.PushTimeout)
		defer cancel()
	}

	code, stdout, stderr, err := p.runner.Run(runCtx, p.dir, scriptPath)
	diag := fmt.Sprintf("exit=%d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return fail(StageScript, fmt.Errorf("script timed out after %s", p.opts.PushTimeout))
		}
		return fail(StageScript, err)
	}
	if code != 0 {
		return Result{Status: StatusFailed, Diagnostic: diag, Dir: p.dir},
			stageErr(StageScript, fmt.Errorf("script exited with code %d", code))
	}

	// The script prints this marker when staging found nothing new.
	if bytes.Contains([]byte(stdout), []byte("No changes to commit")) {
		return Result{Status: StatusNoChange, Diagnostic: diag, Dir: p.dir}, nil
	}
	return Result{Status: StatusSuccess, Diagnostic: diag, Dir: p.dir}, nil
}

// WriteScript materializes the platform deployment script (steps: ensure
// repo, configure identity, stage artifact, commit, push with branch
// fallback) into dir and returns its path.
func WriteScript(dir string, opts Options) (string, error) {
	name := "push_site.sh"
	content := unixScript(opts)
	var mode os.FileMode = 0o755
	if runtime.GOOS == "windows" {
		name = "push_site.bat"
		content = windowsScript(opts)
		mode = 0o644
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		return "", err
	}
	return path, nil
}

func unixScript(opts Options) string {
	return fmt.Sprintf(`#!/bin/sh
set -e

if [ ! -d ".git" ]; then
    echo "Initializing repository..."
    git init -b %[4]s
fi

if ! git config user.name >/dev/null 2>&1; then
    git config user.name %[6]q
    git config user.email %[7]q
fi

if [ -n %[2]q ] && ! git remote get-url %[3]s >/dev/null 2>&1; then
    git remote add %[3]s %[2]q
fi

if [ ! -f %[1]q ]; then
    echo "Error: %[1]s not found"
    exit 1
fi

git add %[1]q
if git diff --staged --quiet; then
    echo "No changes to commit."
    exit 0
fi

git commit -m "Deploy generated page - $(date -u +%%Y-%%m-%%dT%%H:%%M:%%SZ)"

if git push %[3]s HEAD:%[4]s 2>/dev/null; then
    echo "Pushed to %[4]s"
elif git push %[3]s HEAD:%[5]s 2>/dev/null; then
    echo "Pushed to %[5]s"
else
    echo "Error: push failed on %[4]s and %[5]s"
    exit 1
fi
`, opts.Filename, opts.RemoteURL, opts.RemoteName, opts.PrimaryBranch, opts.SecondaryBranch,
		opts.CommitterName, opts.CommitterEmail)
}

func windowsScript(opts Options) string {
	return fmt.Sprintf(`@echo off
setlocal enabledelayedexpansion

if not exist ".git" (
    echo Initializing repository...
    git init -b %[4]s
    if !errorlevel! neq 0 exit /b 1
)

git config user.name >nul 2>&1
if !errorlevel! neq 0 (
    git config user.name "%[6]s"
    git config user.email "%[7]s"
)

git remote get-url %[3]s >nul 2>&1
if !errorlevel! neq 0 (
    if not "%[2]s"=="" git remote add %[3]s "%[2]s"
)

if not exist "%[1]s" (
    echo Error: %[1]s not found
    exit /b 1
)

git add "%[1]s"
git diff --staged --quiet >nul 2>&1
if !errorlevel! equ 0 (
    echo No changes to commit.
    exit /b 0
)

git commit -m "Deploy generated page - %%date%% %%time%%"
if !errorlevel! neq 0 exit /b 1

git push %[3]s HEAD:%[4]s 2>nul
if !errorlevel! equ 0 (
    echo Pushed to %[4]s
    exit /b 0
)
git push %[3]s HEAD:%[5]s 2>nul
if !errorlevel! equ 0 (
    echo Pushed to %[5]s
    exit /b 0
)
echo Error: push failed on %[4]s and %[5]s
exit /b 1
`, opts.Filename, opts.RemoteURL, opts.RemoteName, opts.PrimaryBranch, opts.SecondaryBranch,
		opts.CommitterName, opts.CommitterEmail)
}
