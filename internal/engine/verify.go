package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/slipway-sh/slipway/internal/core/domain"
	"github.com/slipway-sh/slipway/internal/shell/docker"
	"github.com/slipway-sh/slipway/internal/shell/kube"
)

// =============================================================================
// Environment Verification
// =============================================================================

// Retry bounds for environment verification. The runtime gets a generous
// start window because Docker Desktop cold starts are slow; the cluster
// check fails fast because an unreachable API server rarely heals itself.
const (
	runtimeStartAttempts = 30
	runtimeStartInterval = 2 * time.Second
	clusterAttempts      = 3
	clusterBackoff       = 5 * time.Second
)

// Verifier checks that the container runtime — and in cluster mode, the
// Kubernetes API server — are usable before any artifact is written. It
// never mutates the deployment record.
type Verifier struct {
	runtime         docker.Runtime
	launcher        docker.Launcher
	cluster         kube.Cluster
	expectedContext string
	clock           Clock
	logger          *slog.Logger
}

// NewVerifier wires a verifier. cluster may be nil for local-only targets.
func NewVerifier(runtime docker.Runtime, launcher docker.Launcher, cluster kube.Cluster, expectedContext string, clock Clock, logger *slog.Logger) *Verifier {
	return &Verifier{
		runtime:         runtime,
		launcher:        launcher,
		cluster:         cluster,
		expectedContext: expectedContext,
		clock:           clock,
		logger:          logger,
	}
}

// Verify runs the environment checks for the target mode. Any error it
// returns is fatal for the attempt: nothing has been written yet.
func (v *Verifier) Verify(ctx context.Context, clusterMode bool) error {
	if err := v.verifyRuntime(ctx); err != nil {
		return err
	}
	if !clusterMode {
		return nil
	}
	return v.verifyCluster(ctx)
}

// verifyRuntime confirms the daemon is installed and live, starting it if
// needed and polling until it answers or the retry bound is hit.
func (v *Verifier) verifyRuntime(ctx context.Context) error {
	version, err := v.runtime.Version(ctx)
	if err != nil {
		// Not installed, or the client cannot reach it at all. Let the
		// installer hook have one shot before giving up.
		if installErr := v.launcher.Install(ctx); installErr != nil {
			return fmt.Errorf("%w: %v", domain.ErrEnvironmentUnavailable, installErr)
		}
		if version, err = v.runtime.Version(ctx); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrEnvironmentUnavailable, err)
		}
	}
	v.logger.Debug("container runtime detected", "version", version)

	if err := v.runtime.Ping(ctx); err == nil {
		return nil
	}

	v.logger.Info("container runtime is not running, starting it")
	if err := v.launcher.Start(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEnvironmentUnavailable, err)
	}

	for attempt := 1; attempt <= runtimeStartAttempts; attempt++ {
		if err := v.clock.Sleep(ctx, runtimeStartInterval); err != nil {
			return err
		}
		if err := v.runtime.Ping(ctx); err == nil {
			v.logger.Info("container runtime is up", "attempts", attempt)
			return nil
		}
		v.logger.Debug("waiting for container runtime", "attempt", attempt, "max", runtimeStartAttempts)
	}
	return fmt.Errorf("%w: gave up after %d attempts", domain.ErrRuntimeStartTimeout, runtimeStartAttempts)
}

// verifyCluster confirms the kube context is the expected one and the API
// server answers within the bounded retries.
func (v *Verifier) verifyCluster(ctx context.Context) error {
	if v.cluster == nil {
		return fmt.Errorf("%w: no cluster client", domain.ErrClusterNotConfigured)
	}
	if v.expectedContext != "" && v.cluster.Context() != v.expectedContext {
		return fmt.Errorf("%w: bound to context %q, expected %q",
			domain.ErrClusterNotConfigured, v.cluster.Context(), v.expectedContext)
	}

	var lastErr error
	for attempt := 1; attempt <= clusterAttempts; attempt++ {
		lastErr = v.cluster.CheckConnection(ctx)
		if lastErr == nil {
			return nil
		}
		v.logger.Warn("cluster connection failed", "attempt", attempt, "max", clusterAttempts, "error", lastErr)
		if attempt < clusterAttempts {
			if err := v.clock.Sleep(ctx, clusterBackoff); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("%w: %v\ncheck that:\n  - %s",
		domain.ErrClusterUnreachable, lastErr, strings.Join(domain.ClusterRemediation, "\n  - "))
}
