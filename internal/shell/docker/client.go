package docker

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/go-connections/nat"
)

// =============================================================================
// Docker Client Implementation
// =============================================================================

// DockerRuntime implements the Runtime interface using the Docker SDK.
type DockerRuntime struct {
	cli *client.Client
}

var _ Runtime = (*DockerRuntime)(nil)

// NewDockerRuntime creates a new Docker-backed runtime.
// If host is empty, it uses the default Docker host from environment.
// On macOS with Docker Desktop, it automatically detects the correct socket.
func NewDockerRuntime(host string) (*DockerRuntime, error) {
	var opts []client.Opt
	opts = append(opts, client.FromEnv)
	opts = append(opts, client.WithAPIVersionNegotiation())

	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, NewRuntimeError("NewDockerRuntime", "daemon", "", "failed to create client", ErrConnectionFailed)
	}

	// Try to ping with default settings
	ctx := context.Background()
	if _, pingErr := cli.Ping(ctx); pingErr != nil {
		// If default socket fails, try Docker Desktop socket on macOS
		homeDir, _ := os.UserHomeDir()
		dockerDesktopSocket := "unix://" + homeDir + "/.docker/run/docker.sock"

		cli2, err2 := client.NewClientWithOpts(
			client.WithHost(dockerDesktopSocket),
			client.WithAPIVersionNegotiation(),
		)
		if err2 == nil {
			if _, pingErr2 := cli2.Ping(ctx); pingErr2 == nil {
				cli.Close()
				return &DockerRuntime{cli: cli2}, nil
			}
			cli2.Close()
		}
	}

	return &DockerRuntime{cli: cli}, nil
}

// Version returns the daemon's server version.
func (d *DockerRuntime) Version(ctx context.Context) (string, error) {
	v, err := d.cli.ServerVersion(ctx)
	if err != nil {
		return "", NewRuntimeError("Version", "daemon", "", fmt.Sprintf("failed to query version: %v", err), ErrConnectionFailed)
	}
	return v.Version, nil
}

// Ping checks if the Docker daemon is reachable.
func (d *DockerRuntime) Ping(ctx context.Context) error {
	if _, err := d.cli.Ping(ctx); err != nil {
		return NewRuntimeError("Ping", "daemon", "", fmt.Sprintf("failed to ping docker: %v", err), ErrConnectionFailed)
	}
	return nil
}

// Close closes the Docker client connection.
func (d *DockerRuntime) Close() error {
	return d.cli.Close()
}

// =============================================================================
// Image Operations
// =============================================================================

// BuildImage builds an image from contextDir and tags it. The build context
// is streamed to the daemon as a tar archive.
func (d *DockerRuntime) BuildImage(ctx context.Context, contextDir, tag string) error {
	buildCtx, err := tarBuildContext(contextDir)
	if err != nil {
		return NewRuntimeError("BuildImage", "image", tag, fmt.Sprintf("failed to prepare build context: %v", err), err)
	}
	defer buildCtx.Close()

	resp, err := d.cli.ImageBuild(ctx, buildCtx, build.ImageBuildOptions{
		Tags:       []string{tag},
		Dockerfile: "Dockerfile",
		Remove:     true,
	})
	if err != nil {
		return NewRuntimeError("BuildImage", "image", tag, err.Error(), ErrBuildFailed)
	}
	defer resp.Body.Close()

	// The daemon reports build failures inside the response stream, not as
	// a transport error.
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, io.Discard, 0, false, nil); err != nil {
		return NewRuntimeError("BuildImage", "image", tag, err.Error(), ErrBuildFailed)
	}
	return nil
}

// TagImage retags an existing local image.
func (d *DockerRuntime) TagImage(ctx context.Context, source, target string) error {
	if err := d.cli.ImageTag(ctx, source, target); err != nil {
		if client.IsErrNotFound(err) {
			return NewRuntimeError("TagImage", "image", source, "image not found", ErrImageNotFound)
		}
		return NewRuntimeError("TagImage", "image", source, err.Error(), err)
	}
	return nil
}

// =============================================================================
// Container Operations
// =============================================================================

// RunDetached creates and starts a container from the spec.
func (d *DockerRuntime) RunDetached(ctx context.Context, spec ContainerSpec) (string, error) {
	port := nat.Port(fmt.Sprintf("%d/tcp", spec.Port))

	config := &container.Config{
		Image:        spec.Image,
		Labels:       spec.Labels,
		ExposedPorts: nat.PortSet{port: struct{}{}},
	}
	for k, v := range spec.Env {
		config.Env = append(config.Env, fmt.Sprintf("%s=%s", k, v))
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{HostPort: fmt.Sprintf("%d", spec.Port)}},
		},
	}

	resp, err := d.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, spec.Name)
	if err != nil {
		if strings.Contains(err.Error(), "port is already allocated") {
			return "", NewRuntimeError("RunDetached", "container", spec.Name, err.Error(), ErrPortAllocated)
		}
		return "", NewRuntimeError("RunDetached", "container", spec.Name, err.Error(), err)
	}

	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", NewRuntimeError("RunDetached", "container", resp.ID, err.Error(), err)
	}
	return resp.ID, nil
}

// Inspect returns the running state and health of a container.
func (d *DockerRuntime) Inspect(ctx context.Context, containerID string) (*ContainerState, error) {
	resp, err := d.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, NewRuntimeError("Inspect", "container", containerID, "container not found", ErrContainerNotFound)
		}
		return nil, NewRuntimeError("Inspect", "container", containerID, err.Error(), err)
	}

	health := ""
	if resp.State.Health != nil {
		health = resp.State.Health.Status
	}
	return &ContainerState{
		ID:      resp.ID,
		Name:    strings.TrimPrefix(resp.Name, "/"),
		Running: resp.State.Running,
		Status:  resp.State.Status,
		Health:  health,
	}, nil
}

// FindByName returns the ID of the container with the exact name, including
// stopped ones, or "" when absent.
func (d *DockerRuntime) FindByName(ctx context.Context, name string) (string, error) {
	f := filters.NewArgs()
	f.Add("name", name)

	containers, err := d.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: f})
	if err != nil {
		return "", NewRuntimeError("FindByName", "container", name, err.Error(), err)
	}

	// The name filter matches substrings; compare exactly.
	for _, c := range containers {
		for _, n := range c.Names {
			if strings.TrimPrefix(n, "/") == name {
				return c.ID, nil
			}
		}
	}
	return "", nil
}

// StopAndRemove stops the container if running and removes it.
func (d *DockerRuntime) StopAndRemove(ctx context.Context, containerID string) error {
	stopTimeout := int((10 * time.Second).Seconds())
	if err := d.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &stopTimeout}); err != nil {
		if client.IsErrNotFound(err) {
			return NewRuntimeError("StopAndRemove", "container", containerID, "container not found", ErrContainerNotFound)
		}
		// "is not running" is fine, we remove anyway
		if !strings.Contains(err.Error(), "is not running") {
			return NewRuntimeError("StopAndRemove", "container", containerID, err.Error(), err)
		}
	}

	if err := d.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		if client.IsErrNotFound(err) {
			return NewRuntimeError("StopAndRemove", "container", containerID, "container not found", ErrContainerNotFound)
		}
		return NewRuntimeError("StopAndRemove", "container", containerID, err.Error(), err)
	}
	return nil
}
