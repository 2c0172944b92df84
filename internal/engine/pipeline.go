// Package engine drives a deploy attempt end to end: verify the
// environment, render and write artifacts, build and start the container,
// confirm it converged, and — in cluster mode — apply the manifests and wait
// for the rollout. Every status change is validated by the state machine and
// persisted before the next stage runs, so an interrupted attempt leaves an
// accurate record behind.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/slipway-sh/slipway/internal/core/domain"
	"github.com/slipway-sh/slipway/internal/core/render"
	"github.com/slipway-sh/slipway/internal/shell/docker"
	"github.com/slipway-sh/slipway/internal/shell/kube"
	"github.com/slipway-sh/slipway/internal/shell/store"
)

// Pipeline stage names, recorded on the failing record and printed by the
// status command.
const (
	StageVerify   = "verify"
	StageRender   = "render"
	StageBuild    = "build"
	StageRun      = "run"
	StageConverge = "converge"
	StageDeploy   = "deploy"
	StageRollout  = "rollout"
)

const (
	settleDelay    = 5 * time.Second
	rolloutTimeout = 300 * time.Second
	auxConcurrency = 2
)

// =============================================================================
// Engine
// =============================================================================

// Engine owns one deploy attempt at a time. It is not safe for concurrent
// use; the CLI constructs one per invocation.
type Engine struct {
	runtime  docker.Runtime
	launcher docker.Launcher
	cluster  kube.Cluster // nil for local-only targets
	store    store.Store
	builder  *render.Builder
	verifier *Verifier
	clock    Clock
	logger   *slog.Logger
	workDir  string
	defaults render.Defaults
}

// Options configures an Engine.
type Options struct {
	Runtime         docker.Runtime
	Launcher        docker.Launcher
	Cluster         kube.Cluster
	Store           store.Store
	Defaults        render.Defaults
	ExpectedContext string
	WorkDir         string
	Clock           Clock
	Logger          *slog.Logger
}

// New wires an engine from its collaborators.
func New(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = NewClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		runtime:  opts.Runtime,
		launcher: opts.Launcher,
		cluster:  opts.Cluster,
		store:    opts.Store,
		builder:  render.NewBuilder(opts.Defaults),
		verifier: NewVerifier(opts.Runtime, opts.Launcher, opts.Cluster, opts.ExpectedContext, opts.Clock, opts.Logger),
		clock:    opts.Clock,
		logger:   opts.Logger,
		workDir:  opts.WorkDir,
		defaults: opts.Defaults,
	}
}

// Report is the outcome of a deploy attempt.
type Report struct {
	Record   *domain.AppRecord
	URL      string
	Warnings []string

	artifacts *render.Artifacts
}

// Check runs environment verification only, without touching the record or
// writing anything.
func (e *Engine) Check(ctx context.Context, clusterMode bool) error {
	return e.verifier.Verify(ctx, clusterMode)
}

// Deploy runs the full pipeline for spec. On failure the returned error
// names the stage, and the persisted record carries the terminal failure
// status when one applies.
func (e *Engine) Deploy(ctx context.Context, spec domain.AppSpec) (*Report, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	existing, err := e.store.Load()
	if err != nil {
		return nil, err
	}
	if existing != nil && !existing.Concluded() {
		return nil, fmt.Errorf("%w: attempt %s is at %q, run cleanup first",
			domain.ErrAttemptInProgress, existing.AttemptID, existing.Status)
	}

	record := domain.NewAppRecord(spec, domain.RecordDefaults{
		DevNamespace:  e.defaults.DevNamespace,
		ProdNamespace: e.defaults.ProdNamespace,
		MinInstances:  spec.Replicas,
		MaxInstances:  e.defaults.MaxInstances,
	})
	if err := e.store.Save(record); err != nil {
		return nil, err
	}
	report := &Report{Record: record}

	log := e.logger.With("app", spec.Name, "attempt", record.AttemptID, "mode", spec.Mode)
	log.Info("starting deploy")

	if err := e.runStages(ctx, log, spec, record, report); err != nil {
		e.recordFailure(record, err)
		return report, err
	}

	e.runAuxTasks(ctx, log, spec, report)

	log.Info("deploy complete", "status", record.Status, "url", report.URL)
	return report, nil
}

// runStages executes the gating pipeline. The first failed stage aborts the
// attempt; the caller maps the error to a terminal status.
func (e *Engine) runStages(ctx context.Context, log *slog.Logger, spec domain.AppSpec, record *domain.AppRecord, report *Report) error {
	log.Info("verifying environment")
	if err := e.verifier.Verify(ctx, spec.Mode.IsCluster()); err != nil {
		return domain.NewStageError(StageVerify, err)
	}

	if err := e.transition(record, domain.StatusInitializing); err != nil {
		return err
	}

	log.Info("rendering artifacts")
	artifacts, err := e.builder.Render(spec)
	if err != nil {
		return domain.NewStageError(StageRender, err)
	}
	report.artifacts = artifacts
	if err := e.writeArtifacts(artifacts); err != nil {
		return domain.NewStageError(StageRender, fmt.Errorf("%w: %v", domain.ErrConfigGeneration, err))
	}

	log.Info("building image", "tag", spec.ImageName())
	if err := e.buildImage(ctx, spec); err != nil {
		return domain.NewStageError(StageBuild, err)
	}
	if err := e.transition(record, domain.StatusBuilt); err != nil {
		return err
	}

	log.Info("starting container")
	containerID, err := e.startContainer(ctx, spec)
	if err != nil {
		return domain.NewStageError(StageRun, err)
	}
	record.ContainerID = containerID
	if err := e.transition(record, domain.StatusRunning); err != nil {
		return err
	}

	log.Info("waiting for container to settle")
	warn, err := e.convergeLocal(ctx, containerID)
	if err != nil {
		return domain.NewStageError(StageConverge, err)
	}
	if warn != "" {
		report.Warnings = append(report.Warnings, warn)
	}
	if err := e.transition(record, domain.StatusVerified); err != nil {
		return err
	}

	if !spec.Mode.IsCluster() {
		report.URL = fmt.Sprintf("http://localhost:%d", spec.Port)
		return nil
	}

	if err := e.transition(record, domain.StatusDeploying); err != nil {
		return err
	}
	log.Info("applying cluster manifests", "namespace", record.KubernetesMetadata.Namespace)
	if err := e.deployToCluster(ctx, spec, artifacts.Kube); err != nil {
		return domain.NewStageError(StageDeploy, err)
	}

	log.Info("waiting for rollout", "deployment", record.KubernetesMetadata.DeploymentName, "timeout", rolloutTimeout)
	if err := e.cluster.WaitForRollout(ctx, record.KubernetesMetadata.Namespace,
		record.KubernetesMetadata.DeploymentName, rolloutTimeout); err != nil {
		return domain.NewStageError(StageRollout, err)
	}

	phases, err := e.cluster.PodPhases(ctx, record.KubernetesMetadata.Namespace, spec.Name)
	if err != nil {
		log.Warn("could not read pod phases", "error", err)
	} else {
		record.SetPodStatus(phases)
	}
	record.KubernetesMetadata.IngressHost = render.IngressHost(spec.Name, e.defaults.IngressDomain)
	if err := e.transition(record, domain.StatusRolledOut); err != nil {
		return err
	}
	report.URL = fmt.Sprintf("http://%s", record.KubernetesMetadata.IngressHost)
	return nil
}

// transition moves the record and persists it before the next stage runs.
func (e *Engine) transition(record *domain.AppRecord, to domain.Status) error {
	if err := record.Transition(to); err != nil {
		return err
	}
	return e.store.Save(record)
}

// recordFailure maps the stage error to a terminal failure status when one
// applies, and always persists the error details for the status command.
func (e *Engine) recordFailure(record *domain.AppRecord, err error) {
	stage := domain.FailingStage(err)
	if status, ok := domain.StatusForError(err); ok {
		if markErr := record.MarkFailed(status, stage, err); markErr == nil {
			if saveErr := e.store.Save(record); saveErr != nil {
				e.logger.Error("failed to persist failure record", "error", saveErr)
			}
			return
		}
	}
	// No terminal status applies (environment errors, cancellation): keep
	// the current status but record what happened.
	record.LastError = err.Error()
	record.FailingStage = stage
	if saveErr := e.store.Save(record); saveErr != nil {
		e.logger.Error("failed to persist failure record", "error", saveErr)
	}
}

// writeArtifacts writes the gating artifact files to the working directory.
// Aux configs are written later by the auxiliary task group.
func (e *Engine) writeArtifacts(artifacts *render.Artifacts) error {
	files, err := artifacts.Files()
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(e.workDir, f.Name), f.Content, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", f.Name, err)
		}
	}
	return nil
}

// buildImage removes a stale same-name container first so repeated deploys
// of the same app are idempotent, then builds the image from the working
// directory.
func (e *Engine) buildImage(ctx context.Context, spec domain.AppSpec) error {
	if id, err := e.runtime.FindByName(ctx, containerName(spec.Name)); err == nil && id != "" {
		e.logger.Info("removing previous container", "id", id)
		if err := e.runtime.StopAndRemove(ctx, id); err != nil {
			e.logger.Warn("could not remove previous container", "error", err)
		}
	}
	if err := e.runtime.BuildImage(ctx, e.workDir, spec.ImageName()); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBuildFailed, err)
	}
	return nil
}

func (e *Engine) startContainer(ctx context.Context, spec domain.AppSpec) (string, error) {
	id, err := e.runtime.RunDetached(ctx, docker.ContainerSpec{
		Name:  containerName(spec.Name),
		Image: spec.ImageName(),
		Port:  spec.Port,
		Env: map[string]string{
			"PORT":     fmt.Sprintf("%d", spec.Port),
			"NODE_ENV": spec.Mode.NodeEnv(),
		},
		Labels: map[string]string{
			docker.LabelManaged: "true",
			docker.LabelApp:     spec.Name,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStartupFailed, err)
	}
	return id, nil
}

// convergeLocal gives the container a settle window, then requires it to be
// running. Health status is advisory: an unhealthy report produces a
// warning, not a failure.
func (e *Engine) convergeLocal(ctx context.Context, containerID string) (string, error) {
	if err := e.clock.Sleep(ctx, settleDelay); err != nil {
		return "", err
	}
	state, err := e.runtime.Inspect(ctx, containerID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrContainerNotRunning, err)
	}
	if !state.Running {
		return "", fmt.Errorf("%w: container %s is %s", domain.ErrContainerNotRunning, state.Name, state.Status)
	}
	if state.Health != "" && state.Health != "healthy" {
		return fmt.Sprintf("container is running but reports health %q", state.Health), nil
	}
	return "", nil
}

// deployToCluster retags the local image for the cluster and applies the
// rendered objects in dependency order.
func (e *Engine) deployToCluster(ctx context.Context, spec domain.AppSpec, objs *render.KubeObjects) error {
	if err := e.runtime.TagImage(ctx, spec.ImageName(), spec.ClusterImageName()); err != nil {
		return fmt.Errorf("%w: tagging image: %v", domain.ErrManifestApply, err)
	}
	return e.cluster.Apply(ctx, objs)
}

// runAuxTasks writes the non-gating provisioning configs concurrently. An
// aux failure degrades the report with a warning but never reverts the core
// success status.
func (e *Engine) runAuxTasks(ctx context.Context, log *slog.Logger, spec domain.AppSpec, report *Report) {
	if report.artifacts == nil || len(report.artifacts.Aux) == 0 {
		return
	}
	aux := report.artifacts.Aux

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(auxConcurrency)
	for _, f := range aux {
		g.Go(func() error {
			if err := os.WriteFile(filepath.Join(e.workDir, f.Name), f.Content, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", f.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn("auxiliary provisioning degraded", "error", err)
		report.Warnings = append(report.Warnings, fmt.Sprintf("auxiliary provisioning incomplete: %v", err))
	}
}

func containerName(app string) string {
	return app + "-app"
}
