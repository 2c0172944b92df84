package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipway-sh/slipway/internal/core/domain"
	"github.com/slipway-sh/slipway/internal/core/render"
	"github.com/slipway-sh/slipway/internal/shell/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	engine   *Engine
	runtime  *fakeRuntime
	launcher *fakeLauncher
	cluster  *fakeCluster
	clock    *fakeClock
	store    *store.FileStore
	dir      string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	rt := &fakeRuntime{inspectRunning: true}
	launcher := &fakeLauncher{}
	cluster := &fakeCluster{contextName: "docker-desktop", phases: []string{"Running", "Running", "Running"}}
	clock := newFakeClock()
	st := store.NewFileStore(dir)

	eng := New(Options{
		Runtime:         rt,
		Launcher:        launcher,
		Cluster:         cluster,
		Store:           st,
		Defaults:        render.NewDefaults(),
		ExpectedContext: "docker-desktop",
		WorkDir:         dir,
		Clock:           clock,
		Logger:          discardLogger(),
	})
	return &testEnv{engine: eng, runtime: rt, launcher: launcher, cluster: cluster, clock: clock, store: st, dir: dir}
}

func devSpec() domain.AppSpec {
	return domain.AppSpec{Name: "demo", Type: domain.AppTypeBun, Port: 3000, Mode: domain.ModeDev, Replicas: 1}
}

func prodSpec() domain.AppSpec {
	return domain.AppSpec{Name: "demo", Type: domain.AppTypeBun, Port: 3000, Mode: domain.ModeProd, Replicas: 3, AutoScale: true}
}

// =============================================================================
// Local Pipeline
// =============================================================================

func TestDeployLocalHappyPath(t *testing.T) {
	env := newTestEnv(t)

	report, err := env.engine.Deploy(context.Background(), devSpec())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusVerified, report.Record.Status)
	assert.Equal(t, "http://localhost:3000", report.URL)
	assert.Equal(t, []string{"demo-app"}, env.runtime.builtTags)
	assert.Empty(t, env.cluster.applied, "local mode must not touch the cluster")

	// the record on disk matches the in-memory one
	persisted, err := env.store.Load()
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, domain.StatusVerified, persisted.Status)
	assert.Equal(t, report.Record.AttemptID, persisted.AttemptID)
	assert.NotEmpty(t, persisted.ContainerID)

	// gating artifacts got written, aux configs too
	for _, name := range []string{render.FileDockerfile, render.FileCompose, render.FileNginxConf, render.FilePrometheus} {
		_, statErr := os.Stat(filepath.Join(env.dir, name))
		assert.NoError(t, statErr, name)
	}
	// no cluster manifests in local mode
	_, statErr := os.Stat(filepath.Join(env.dir, render.FileDeployment))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDeployBuildFailure(t *testing.T) {
	env := newTestEnv(t)
	env.runtime.buildErr = errors.New("compile error in index.ts")

	_, err := env.engine.Deploy(context.Background(), devSpec())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBuildFailed))
	assert.Equal(t, StageBuild, domain.FailingStage(err))

	persisted, loadErr := env.store.Load()
	require.NoError(t, loadErr)
	assert.Equal(t, domain.StatusBuildFailed, persisted.Status)
	assert.Equal(t, StageBuild, persisted.FailingStage)
	assert.Contains(t, persisted.LastError, "compile error")
	assert.Empty(t, env.runtime.started, "no container may start after a failed build")
}

func TestDeployStartupFailure(t *testing.T) {
	env := newTestEnv(t)
	env.runtime.runErr = errors.New("port is already allocated")

	_, err := env.engine.Deploy(context.Background(), devSpec())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStartupFailed))

	persisted, _ := env.store.Load()
	assert.Equal(t, domain.StatusStartupFailed, persisted.Status)
}

func TestDeployVerificationFailure(t *testing.T) {
	env := newTestEnv(t)
	env.runtime.inspectRunning = false

	_, err := env.engine.Deploy(context.Background(), devSpec())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrContainerNotRunning))

	persisted, _ := env.store.Load()
	assert.Equal(t, domain.StatusVerificationFailed, persisted.Status)
}

func TestDeployUnhealthyContainerIsAdvisory(t *testing.T) {
	env := newTestEnv(t)
	env.runtime.inspectHealth = "unhealthy"

	report, err := env.engine.Deploy(context.Background(), devSpec())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusVerified, report.Record.Status)
	require.NotEmpty(t, report.Warnings)
	assert.Contains(t, report.Warnings[0], "unhealthy")
}

func TestDeployReplacesStaleContainer(t *testing.T) {
	env := newTestEnv(t)
	env.runtime.existingContainer = "stale-id"

	_, err := env.engine.Deploy(context.Background(), devSpec())
	require.NoError(t, err)
	assert.Contains(t, env.runtime.removedIDs, "stale-id")
}

func TestDeployRejectsConcurrentAttempt(t *testing.T) {
	env := newTestEnv(t)

	record := domain.NewAppRecord(devSpec(), domain.RecordDefaults{
		DevNamespace: "development", ProdNamespace: "production", MinInstances: 1, MaxInstances: 10,
	})
	require.NoError(t, record.Transition(domain.StatusInitializing))
	require.NoError(t, env.store.Save(record))

	_, err := env.engine.Deploy(context.Background(), devSpec())
	assert.True(t, errors.Is(err, domain.ErrAttemptInProgress))
}

func TestDeployAllowsNewAttemptAfterTerminalState(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.engine.Deploy(context.Background(), devSpec())
	require.NoError(t, err)

	second, err := env.engine.Deploy(context.Background(), devSpec())
	require.NoError(t, err)
	assert.NotEqual(t, first.Record.AttemptID, second.Record.AttemptID)
}

func TestDeployInvalidSpec(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.Deploy(context.Background(), domain.AppSpec{Name: "Bad Name!", Type: domain.AppTypeBun, Port: 3000, Mode: domain.ModeDev, Replicas: 1})
	assert.True(t, errors.Is(err, domain.ErrInvalidSpec))

	persisted, loadErr := env.store.Load()
	require.NoError(t, loadErr)
	assert.Nil(t, persisted, "an invalid spec must not create a record")
}

// =============================================================================
// Cluster Pipeline
// =============================================================================

func TestDeployClusterHappyPath(t *testing.T) {
	env := newTestEnv(t)

	report, err := env.engine.Deploy(context.Background(), prodSpec())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusRolledOut, report.Record.Status)
	assert.Equal(t, "http://demo.local", report.URL)
	assert.Equal(t, []string{"demo:latest"}, env.runtime.taggedAs)
	require.Len(t, env.cluster.applied, 1)
	assert.Equal(t, 1, env.cluster.rollouts)
	// one phase per replica of the three-replica deployment
	assert.Equal(t, []string{"Running", "Running", "Running"}, report.Record.KubernetesMetadata.PodStatus)
	assert.Equal(t, "demo.local", report.Record.KubernetesMetadata.IngressHost)

	// cluster manifests got written alongside the local artifacts
	_, statErr := os.Stat(filepath.Join(env.dir, render.FileDeployment))
	assert.NoError(t, statErr)
}

func TestDeployRolloutTimeout(t *testing.T) {
	env := newTestEnv(t)
	env.cluster.rolloutErr = domain.ErrRolloutTimeout

	_, err := env.engine.Deploy(context.Background(), prodSpec())
	require.Error(t, err)
	assert.Equal(t, StageRollout, domain.FailingStage(err))

	persisted, _ := env.store.Load()
	assert.Equal(t, domain.StatusRolloutFailed, persisted.Status)
}

func TestDeployManifestApplyFailure(t *testing.T) {
	env := newTestEnv(t)
	env.cluster.applyErr = domain.ErrManifestApply

	_, err := env.engine.Deploy(context.Background(), prodSpec())
	require.Error(t, err)

	persisted, _ := env.store.Load()
	assert.Equal(t, domain.StatusRolloutFailed, persisted.Status)
	assert.Equal(t, 0, env.cluster.rollouts, "no rollout wait after a failed apply")
}

// =============================================================================
// Environment Verification Failures
// =============================================================================

func TestDeployEnvironmentFailureLeavesNoArtifacts(t *testing.T) {
	env := newTestEnv(t)
	env.runtime.versionErr = errors.New("docker: command not found")
	env.launcher.installErr = errors.New("install docker first")

	_, err := env.engine.Deploy(context.Background(), devSpec())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEnvironmentUnavailable))
	assert.Equal(t, StageVerify, domain.FailingStage(err))

	// record exists at pending with the error, but no file was generated
	persisted, _ := env.store.Load()
	require.NotNil(t, persisted)
	assert.Equal(t, domain.StatusPending, persisted.Status)
	assert.Equal(t, StageVerify, persisted.FailingStage)
	_, statErr := os.Stat(filepath.Join(env.dir, render.FileDockerfile))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDeployRetriesAfterEnvironmentFailure(t *testing.T) {
	env := newTestEnv(t)
	env.runtime.versionErr = errors.New("docker: command not found")
	env.launcher.installErr = errors.New("install docker first")

	_, err := env.engine.Deploy(context.Background(), devSpec())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEnvironmentUnavailable))

	// once the environment is fixed, the failed attempt must not block a retry
	env.runtime.versionErr = nil
	env.launcher.installErr = nil

	report, err := env.engine.Deploy(context.Background(), devSpec())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusVerified, report.Record.Status)
}

// =============================================================================
// Cleanup
// =============================================================================

func TestCleanupAfterLocalDeploy(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.Deploy(context.Background(), devSpec())
	require.NoError(t, err)

	require.NoError(t, env.engine.Cleanup(context.Background()))

	assert.NotEmpty(t, env.runtime.removedIDs)
	assert.Equal(t, 0, env.cluster.torndown, "local cleanup must not touch the cluster")
	for _, name := range render.GeneratedFileNames() {
		_, statErr := os.Stat(filepath.Join(env.dir, name))
		assert.True(t, os.IsNotExist(statErr), name)
	}
	persisted, _ := env.store.Load()
	assert.Nil(t, persisted)
}

func TestCleanupAfterClusterDeploy(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.Deploy(context.Background(), prodSpec())
	require.NoError(t, err)

	require.NoError(t, env.engine.Cleanup(context.Background()))
	assert.Equal(t, 1, env.cluster.torndown)
}

func TestCleanupIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.Deploy(context.Background(), devSpec())
	require.NoError(t, err)

	require.NoError(t, env.engine.Cleanup(context.Background()))
	require.NoError(t, env.engine.Cleanup(context.Background()))
}

func TestCleanupWithNoRecord(t *testing.T) {
	env := newTestEnv(t)
	assert.NoError(t, env.engine.Cleanup(context.Background()))
}
