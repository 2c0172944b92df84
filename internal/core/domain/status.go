package domain

import "fmt"

// =============================================================================
// Deployment Status
// =============================================================================

// Status is the pipeline position of a deploy attempt.
type Status string

const (
	StatusPending            Status = "pending"
	StatusInitializing       Status = "initializing"
	StatusBuilt              Status = "built"
	StatusBuildFailed        Status = "build_failed"
	StatusRunning            Status = "running"
	StatusStartupFailed      Status = "startup_failed"
	StatusVerified           Status = "verified"
	StatusVerificationFailed Status = "verification_failed"
	StatusDeploying          Status = "deploying"
	StatusRolledOut          Status = "rolled_out"
	StatusRolloutFailed      Status = "rollout_failed"
)

// =============================================================================
// State Machine
// =============================================================================

// validTransitions defines the allowed status transitions. Transitions are
// monotonic within one attempt: nothing moves backward, and no transition
// skips the pipeline stage that produces it.
var validTransitions = map[Status][]Status{
	StatusPending:            {StatusInitializing},
	StatusInitializing:       {StatusBuilt, StatusBuildFailed},
	StatusBuilt:              {StatusRunning, StatusStartupFailed},
	StatusRunning:            {StatusVerified, StatusVerificationFailed},
	StatusVerified:           {StatusDeploying}, // cluster mode continues; local mode stops here
	StatusDeploying:          {StatusRolledOut, StatusRolloutFailed},
	StatusBuildFailed:        {},
	StatusStartupFailed:      {},
	StatusVerificationFailed: {},
	StatusRolledOut:          {},
	StatusRolloutFailed:      {},
}

// ValidateTransition checks whether a status transition is allowed.
func ValidateTransition(from, to Status) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, from)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Transition moves the record to a new status after validating the move.
func (r *AppRecord) Transition(to Status) error {
	if err := ValidateTransition(r.Status, to); err != nil {
		return err
	}
	r.Status = to
	return nil
}

// IsTerminal reports whether the pipeline does not continue from s without a
// brand-new attempt.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusBuildFailed, StatusStartupFailed, StatusVerificationFailed,
		StatusRolloutFailed, StatusRolledOut:
		return true
	}
	return false
}

// IsTerminalFor reports terminality relative to the attempt's target: in local
// mode Verified is the success terminal state, in cluster mode only RolledOut is.
func (s Status) IsTerminalFor(cluster bool) bool {
	if s == StatusVerified && !cluster {
		return true
	}
	return s.IsTerminal()
}

// IsFailure reports whether s is a terminal failure status.
func (s Status) IsFailure() bool {
	switch s {
	case StatusBuildFailed, StatusStartupFailed, StatusVerificationFailed, StatusRolloutFailed:
		return true
	}
	return false
}
