package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Transition Tests
// =============================================================================

func TestTransition_FullLocalPath(t *testing.T) {
	r := &AppRecord{Status: StatusPending}

	for _, next := range []Status{StatusInitializing, StatusBuilt, StatusRunning, StatusVerified} {
		require.NoError(t, r.Transition(next))
		assert.Equal(t, next, r.Status)
	}

	assert.True(t, r.Status.IsTerminalFor(false))
	assert.False(t, r.Status.IsTerminalFor(true))
}

func TestTransition_FullClusterPath(t *testing.T) {
	r := &AppRecord{Status: StatusPending}

	path := []Status{StatusInitializing, StatusBuilt, StatusRunning, StatusVerified, StatusDeploying, StatusRolledOut}
	for _, next := range path {
		require.NoError(t, r.Transition(next))
	}

	assert.True(t, r.Status.IsTerminal())
	assert.False(t, r.Status.IsFailure())
}

func TestTransition_CannotSkipStages(t *testing.T) {
	r := &AppRecord{Status: StatusPending}

	err := r.Transition(StatusBuilt)

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusPending, r.Status)
}

func TestTransition_NoBackwardMoves(t *testing.T) {
	r := &AppRecord{Status: StatusVerified}

	assert.ErrorIs(t, r.Transition(StatusPending), ErrInvalidTransition)
	assert.ErrorIs(t, r.Transition(StatusBuilt), ErrInvalidTransition)
}

func TestTransition_FailureStatesAreTerminal(t *testing.T) {
	for _, s := range []Status{StatusBuildFailed, StatusStartupFailed, StatusVerificationFailed, StatusRolloutFailed} {
		r := &AppRecord{Status: s}

		assert.True(t, s.IsTerminal(), "status %s", s)
		assert.True(t, s.IsFailure(), "status %s", s)
		assert.ErrorIs(t, r.Transition(StatusInitializing), ErrInvalidTransition)
	}
}

func TestTransition_SuccessFromTerminalRequiresNewRecord(t *testing.T) {
	r := &AppRecord{Status: StatusRolledOut}

	// No sequence of transitions moves a terminal record back to pending;
	// a new attempt creates a fresh record instead.
	for _, s := range []Status{StatusPending, StatusInitializing, StatusDeploying} {
		assert.ErrorIs(t, r.Transition(s), ErrInvalidTransition)
	}

	fresh := NewAppRecord(AppSpec{Name: "demo", Type: AppTypeNode, Port: 8000, Mode: ModeDev, Replicas: 1},
		RecordDefaults{DevNamespace: "development", ProdNamespace: "production", MinInstances: 1, MaxInstances: 5})
	assert.Equal(t, StatusPending, fresh.Status)
	assert.NotEmpty(t, fresh.AttemptID)
}

// =============================================================================
// Error Classification Tests
// =============================================================================

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
		ok   bool
	}{
		{"build failure", ErrBuildFailed, StatusBuildFailed, true},
		{"artifact generation", ErrConfigGeneration, StatusBuildFailed, true},
		{"startup failure", ErrStartupFailed, StatusStartupFailed, true},
		{"container not running", ErrContainerNotRunning, StatusVerificationFailed, true},
		{"rollout timeout", ErrRolloutTimeout, StatusRolloutFailed, true},
		{"manifest apply", ErrManifestApply, StatusRolloutFailed, true},
		{"environment", ErrEnvironmentUnavailable, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := StatusForError(NewStageError("execute", tt.err))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFailingStage(t *testing.T) {
	err := NewStageError("converge", ErrRolloutTimeout)

	assert.Equal(t, "converge", FailingStage(err))
	assert.Empty(t, FailingStage(ErrRolloutTimeout))
}
