package domain

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Taxonomy
// =============================================================================

var (
	// Spec and state machine errors
	ErrInvalidSpec        = errors.New("invalid app spec")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrAttemptInProgress  = errors.New("a deploy attempt is already in progress")

	// Environment errors (fatal before any artifact is written)
	ErrEnvironmentUnavailable = errors.New("environment unavailable")
	ErrRuntimeStartTimeout    = errors.New("container runtime failed to start within the retry bound")
	ErrClusterNotConfigured   = errors.New("cluster context is not configured")
	ErrClusterUnreachable     = errors.New("cluster is unreachable")

	// Pipeline errors
	ErrConfigGeneration    = errors.New("artifact generation failed")
	ErrBuildFailed         = errors.New("image build failed")
	ErrStartupFailed       = errors.New("container startup failed")
	ErrManifestApply       = errors.New("manifest apply failed")
	ErrRolloutTimeout      = errors.New("rollout did not complete before the timeout")
	ErrContainerNotRunning = errors.New("container is not running")
)

// ClusterRemediation enumerates the checks suggested when the cluster stays
// unreachable after the bounded retries.
var ClusterRemediation = []string{
	"the container runtime daemon is not running",
	"kubernetes is not enabled in the runtime",
	"a firewall or network policy is blocking the connection",
}

// StageError wraps a pipeline error with the stage that produced it. I/O and
// process errors are forwarded unchanged underneath.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err with the failing stage name.
func NewStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// FailingStage extracts the stage name from an error chain, or "".
func FailingStage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// StatusForError maps a classified pipeline error to the terminal failure
// status it produces, if any.
func StatusForError(err error) (Status, bool) {
	switch {
	case errors.Is(err, ErrBuildFailed), errors.Is(err, ErrConfigGeneration):
		return StatusBuildFailed, true
	case errors.Is(err, ErrStartupFailed):
		return StatusStartupFailed, true
	case errors.Is(err, ErrContainerNotRunning):
		return StatusVerificationFailed, true
	case errors.Is(err, ErrRolloutTimeout), errors.Is(err, ErrManifestApply):
		return StatusRolloutFailed, true
	}
	return "", false
}
