package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/slipway-sh/slipway/internal/core/render"
	"github.com/slipway-sh/slipway/internal/shell/docker"
)

// =============================================================================
// Test Fakes
// =============================================================================

// fakeClock advances instantly and records how long was slept.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	elapsed time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	c.elapsed += d
	return nil
}

func (c *fakeClock) sleepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sleeps)
}

// fakeRuntime scripts the container runtime's behavior per test.
type fakeRuntime struct {
	versionErr error
	// pingFailures is decremented on every failed ping; once it hits zero
	// pings succeed.
	pingFailures int
	pingErr      error

	buildErr error
	runErr   error
	tagErr   error

	inspectRunning bool
	inspectHealth  string
	inspectErr     error

	existingContainer string

	builtTags  []string
	taggedAs   []string
	started    []docker.ContainerSpec
	removedIDs []string
	pings      int
}

func (f *fakeRuntime) Version(ctx context.Context) (string, error) {
	if f.versionErr != nil {
		return "", f.versionErr
	}
	return "28.0-test", nil
}

func (f *fakeRuntime) Ping(ctx context.Context) error {
	f.pings++
	if f.pingFailures > 0 {
		f.pingFailures--
		return errors.New("daemon not responding")
	}
	return f.pingErr
}

func (f *fakeRuntime) BuildImage(ctx context.Context, contextDir, tag string) error {
	if f.buildErr != nil {
		return f.buildErr
	}
	f.builtTags = append(f.builtTags, tag)
	return nil
}

func (f *fakeRuntime) TagImage(ctx context.Context, source, target string) error {
	if f.tagErr != nil {
		return f.tagErr
	}
	f.taggedAs = append(f.taggedAs, target)
	return nil
}

func (f *fakeRuntime) RunDetached(ctx context.Context, spec docker.ContainerSpec) (string, error) {
	if f.runErr != nil {
		return "", f.runErr
	}
	f.started = append(f.started, spec)
	return "container-" + spec.Name, nil
}

func (f *fakeRuntime) Inspect(ctx context.Context, containerID string) (*docker.ContainerState, error) {
	if f.inspectErr != nil {
		return nil, f.inspectErr
	}
	return &docker.ContainerState{
		ID:      containerID,
		Name:    "demo-app",
		Running: f.inspectRunning,
		Status:  "running",
		Health:  f.inspectHealth,
	}, nil
}

func (f *fakeRuntime) FindByName(ctx context.Context, name string) (string, error) {
	return f.existingContainer, nil
}

func (f *fakeRuntime) StopAndRemove(ctx context.Context, containerID string) error {
	f.removedIDs = append(f.removedIDs, containerID)
	return nil
}

func (f *fakeRuntime) Close() error { return nil }

// fakeLauncher records install/start calls.
type fakeLauncher struct {
	installErr error
	startErr   error
	installs   int
	starts     int
}

func (f *fakeLauncher) Install(ctx context.Context) error {
	f.installs++
	return f.installErr
}

func (f *fakeLauncher) Start(ctx context.Context) error {
	f.starts++
	return f.startErr
}

// fakeCluster scripts the cluster adapter.
type fakeCluster struct {
	contextName string
	// connectFailures is decremented on every failed check; once it hits
	// zero checks succeed.
	connectFailures int
	connectErr      error

	applyErr   error
	rolloutErr error
	phases     []string
	phasesErr  error

	applied  []*render.KubeObjects
	torndown int
	checks   int
	rollouts int
}

func (f *fakeCluster) Context() string { return f.contextName }

func (f *fakeCluster) CheckConnection(ctx context.Context) error {
	f.checks++
	if f.connectFailures > 0 {
		f.connectFailures--
		return errors.New("connection refused")
	}
	return f.connectErr
}

func (f *fakeCluster) Apply(ctx context.Context, objs *render.KubeObjects) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = append(f.applied, objs)
	return nil
}

func (f *fakeCluster) WaitForRollout(ctx context.Context, namespace, name string, timeout time.Duration) error {
	f.rollouts++
	return f.rolloutErr
}

func (f *fakeCluster) PodPhases(ctx context.Context, namespace, app string) ([]string, error) {
	if f.phasesErr != nil {
		return nil, f.phasesErr
	}
	return f.phases, nil
}

func (f *fakeCluster) Teardown(ctx context.Context, objs *render.KubeObjects) error {
	f.torndown++
	return nil
}
