package engine

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/slipway-sh/slipway/internal/core/domain"
	"github.com/slipway-sh/slipway/internal/core/render"
)

// =============================================================================
// Cleanup
// =============================================================================

// Cleanup tears down whatever the last attempt left behind: the container,
// the cluster objects, the generated artifact files, and the state record.
// Every sub-step is best-effort; failures are logged and the rest proceeds,
// so running cleanup twice is safe and the second run is a no-op.
func (e *Engine) Cleanup(ctx context.Context) error {
	record, err := e.store.Load()
	if err != nil {
		return err
	}

	if record != nil {
		e.cleanupContainer(ctx, record)
		if record.KubernetesEnabled && e.cluster != nil {
			e.cleanupCluster(ctx, record)
		}
	}

	e.cleanupFiles()

	if err := e.store.Clear(); err != nil {
		return err
	}
	e.logger.Info("cleanup complete")
	return nil
}

// cleanupContainer removes the recorded container, then any same-name
// container a prior crashed attempt may have left without recording.
func (e *Engine) cleanupContainer(ctx context.Context, record *domain.AppRecord) {
	ids := []string{}
	if record.ContainerID != "" {
		ids = append(ids, record.ContainerID)
	}
	if id, err := e.runtime.FindByName(ctx, containerName(record.AppName)); err == nil && id != "" && (len(ids) == 0 || id != ids[0]) {
		ids = append(ids, id)
	}
	for _, id := range ids {
		if err := e.runtime.StopAndRemove(ctx, id); err != nil {
			e.logger.Warn("could not remove container", "id", id, "error", err)
		}
	}
}

// cleanupCluster re-renders the object set from the record and deletes it.
// Rendering with autoscale on is deliberate: teardown ignores objects that
// were never created.
func (e *Engine) cleanupCluster(ctx context.Context, record *domain.AppRecord) {
	artifacts, err := e.builder.Render(domain.AppSpec{
		Name:      record.AppName,
		Type:      record.AppType,
		Port:      record.Port,
		Mode:      domain.ModeProd,
		Replicas:  record.KubernetesMetadata.Replicas,
		AutoScale: true,
	})
	if err != nil {
		e.logger.Warn("could not reconstruct cluster objects", "error", err)
		return
	}
	if err := e.cluster.Teardown(ctx, artifacts.Kube); err != nil {
		e.logger.Warn("cluster teardown incomplete", "error", err)
	}
}

// cleanupFiles removes every file the renderer can produce. Absent files are
// skipped silently.
func (e *Engine) cleanupFiles() {
	for _, name := range render.GeneratedFileNames() {
		err := os.Remove(filepath.Join(e.workDir, name))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			e.logger.Warn("could not remove artifact", "file", name, "error", err)
		}
	}
}
