// Package docker adapts the Docker SDK into the narrow container-runtime
// surface the deployment pipeline needs: build, run, inspect, stop, remove.
package docker

import "context"

// =============================================================================
// Runtime Types
// =============================================================================

// ContainerSpec is what the pipeline needs to run one app container.
type ContainerSpec struct {
	Name   string
	Image  string
	Port   int               // published as host:container on the same port
	Env    map[string]string
	Labels map[string]string
}

// ContainerState is the inspected state of a container.
type ContainerState struct {
	ID      string
	Name    string
	Running bool
	Status  string // "running", "exited", ...
	Health  string // "healthy", "unhealthy", "starting", "" when no healthcheck
}

// =============================================================================
// Runtime Interface
// =============================================================================

// Runtime is the container-runtime surface used by the pipeline. The real
// adapter talks to the Docker daemon through the SDK; tests use an in-memory
// fake.
type Runtime interface {
	// Version returns the daemon version, or an error when the runtime is
	// not installed or not reachable at all.
	Version(ctx context.Context) (string, error)

	// Ping checks daemon liveness.
	Ping(ctx context.Context) error

	// BuildImage builds an image from contextDir (which must contain a
	// Dockerfile) and tags it.
	BuildImage(ctx context.Context, contextDir, tag string) error

	// TagImage retags an existing local image.
	TagImage(ctx context.Context, source, target string) error

	// RunDetached creates and starts a container, returning its ID.
	RunDetached(ctx context.Context, spec ContainerSpec) (string, error)

	// Inspect returns the current state of a container.
	Inspect(ctx context.Context, containerID string) (*ContainerState, error)

	// FindByName returns the ID of the container with the exact name, or ""
	// when no such container exists (running or stopped).
	FindByName(ctx context.Context, name string) (string, error)

	// StopAndRemove stops the container if running and removes it.
	StopAndRemove(ctx context.Context, containerID string) error

	Close() error
}

// Launcher starts or installs the runtime itself. Both operations shell out
// to the host; installation in particular is an external collaborator and
// the default implementation only instructs the user.
type Launcher interface {
	Install(ctx context.Context) error
	Start(ctx context.Context) error
}

// Label constants attached to containers the pipeline manages.
const (
	LabelManaged = "sh.slipway.managed"
	LabelApp     = "sh.slipway.app"
)
