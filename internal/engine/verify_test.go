package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipway-sh/slipway/internal/core/domain"
	"github.com/slipway-sh/slipway/internal/shell/kube"
)

// the cluster parameter is the interface, not the fake, so a nil here stays
// a nil inside the verifier
func newVerifier(rt *fakeRuntime, launcher *fakeLauncher, cluster kube.Cluster, clock *fakeClock) *Verifier {
	return NewVerifier(rt, launcher, cluster, "docker-desktop", clock, discardLogger())
}

func TestVerifyRuntimeAlreadyRunning(t *testing.T) {
	clock := newFakeClock()
	v := newVerifier(&fakeRuntime{}, &fakeLauncher{}, nil, clock)

	require.NoError(t, v.Verify(context.Background(), false))
	assert.Zero(t, clock.sleepCount(), "no waiting when the daemon answers immediately")
}

func TestVerifyStartsStoppedRuntime(t *testing.T) {
	clock := newFakeClock()
	rt := &fakeRuntime{pingFailures: 3}
	launcher := &fakeLauncher{}
	v := newVerifier(rt, launcher, nil, clock)

	require.NoError(t, v.Verify(context.Background(), false))
	assert.Equal(t, 1, launcher.starts)
	// first ping fails, then three more fail inside the poll loop
	assert.Equal(t, 3, clock.sleepCount())
	assert.Equal(t, 3*2*time.Second, clock.elapsed)
}

func TestVerifyRuntimeStartTimeout(t *testing.T) {
	clock := newFakeClock()
	rt := &fakeRuntime{pingFailures: 1000}
	v := newVerifier(rt, &fakeLauncher{}, nil, clock)

	err := v.Verify(context.Background(), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRuntimeStartTimeout))
	// one initial ping plus exactly the bounded poll attempts
	assert.Equal(t, 1+runtimeStartAttempts, rt.pings)
	assert.Equal(t, runtimeStartAttempts, clock.sleepCount())
}

func TestVerifyInstallerHookGetsOneRetry(t *testing.T) {
	clock := newFakeClock()
	rt := &fakeRuntime{versionErr: errors.New("not installed")}
	launcher := &fakeLauncher{}
	v := newVerifier(rt, launcher, nil, clock)

	err := v.Verify(context.Background(), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEnvironmentUnavailable))
	assert.Equal(t, 1, launcher.installs)
}

func TestVerifyClusterRetriesThenSucceeds(t *testing.T) {
	clock := newFakeClock()
	cluster := &fakeCluster{contextName: "docker-desktop", connectFailures: 2}
	v := newVerifier(&fakeRuntime{}, &fakeLauncher{}, cluster, clock)

	require.NoError(t, v.Verify(context.Background(), true))
	assert.Equal(t, 3, cluster.checks)
	assert.Equal(t, 2*5*time.Second, clock.elapsed)
}

func TestVerifyClusterUnreachableAfterBoundedRetries(t *testing.T) {
	clock := newFakeClock()
	cluster := &fakeCluster{contextName: "docker-desktop", connectFailures: 1000}
	v := newVerifier(&fakeRuntime{}, &fakeLauncher{}, cluster, clock)

	err := v.Verify(context.Background(), true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrClusterUnreachable))
	assert.Equal(t, clusterAttempts, cluster.checks)
	// the failure carries the remediation list
	assert.Contains(t, err.Error(), "kubernetes is not enabled")
}

func TestVerifyWrongContext(t *testing.T) {
	clock := newFakeClock()
	cluster := &fakeCluster{contextName: "minikube"}
	v := newVerifier(&fakeRuntime{}, &fakeLauncher{}, cluster, clock)

	err := v.Verify(context.Background(), true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrClusterNotConfigured))
	assert.Zero(t, cluster.checks, "no connection attempt against the wrong context")
}

func TestVerifyNoClusterClient(t *testing.T) {
	v := newVerifier(&fakeRuntime{}, &fakeLauncher{}, nil, newFakeClock())

	err := v.Verify(context.Background(), true)
	assert.True(t, errors.Is(err, domain.ErrClusterNotConfigured))
}

func TestVerifyCancelledContextStopsPolling(t *testing.T) {
	clock := newFakeClock()
	rt := &fakeRuntime{pingFailures: 1000}
	v := newVerifier(rt, &fakeLauncher{}, nil, clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := v.Verify(ctx, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
