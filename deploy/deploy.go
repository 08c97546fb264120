// Package deploy publishes an extracted artifact to a working directory and
// a version-control remote. The pipeline is idempotent: re-running it with
// byte-identical content stages nothing, creates no commit and reports
// NoChange. Two backends are provided: Pipeline operates on the repository
// in-process via go-git, ScriptPipeline materializes a platform shell
// script and executes it with a bounded external process.
//
// Neither backend ever changes the process working directory, so the
// caller's directory is untouched on every exit path.
package deploy

import (
	"fmt"
)

// Status is the outcome category of one pipeline run.
type Status string

const (
	// StatusSuccess means the artifact was committed (and pushed when a
	// remote is configured).
	StatusSuccess Status = "success"
	// StatusNoChange means the artifact is byte-identical to the last
	// committed version; no commit was created.
	StatusNoChange Status = "nochange"
	// StatusFailed means a pipeline stage failed; Diagnostic carries the
	// captured detail.
	StatusFailed Status = "failed"
)

// Result is the outcome of one pipeline invocation. It is created once per
// run and never mutated afterwards.
type Result struct {
	Status     Status `json:"status"`
	Diagnostic string `json:"diagnostic"`
	Dir        string `json:"dir"`
}

// Error tags a pipeline failure with the stage it occurred in.
type Error struct {
	Stage string
	Err   error
}

// Pipeline stage identifiers used in Error.Stage.
const (
	StageDir    = "dir"
	StageWrite  = "write"
	StageInit   = "init"
	StageConfig = "config"
	StageRemote = "remote"
	StageStage  = "stage"
	StageCommit = "commit"
	StagePush   = "push"
	StageScript = "script"
)

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("deploy %s: %v", e.Stage, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// stageErr is a small constructor helper.
func stageErr(stage string, err error) *Error {
	return &Error{Stage: stage, Err: err}
}
