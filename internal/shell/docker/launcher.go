package docker

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// =============================================================================
// Daemon Launcher
// =============================================================================

// ExecLauncher starts the Docker daemon through the host's service manager.
// It is used when the daemon is installed but not running.
type ExecLauncher struct{}

var _ Launcher = (*ExecLauncher)(nil)

// Start attempts to start the Docker daemon for the current platform.
func (ExecLauncher) Start(ctx context.Context) error {
	switch runtime.GOOS {
	case "darwin":
		if err := exec.CommandContext(ctx, "open", "-a", "Docker").Run(); err != nil {
			return NewRuntimeError("Start", "daemon", "", "failed to launch Docker Desktop", err)
		}
		return nil
	case "linux":
		if err := exec.CommandContext(ctx, "systemctl", "start", "docker").Run(); err != nil {
			return NewRuntimeError("Start", "daemon", "", "failed to start docker service (try: sudo systemctl start docker)", err)
		}
		return nil
	default:
		return NewRuntimeError("Start", "daemon", "", fmt.Sprintf("unsupported platform %s, start Docker manually", runtime.GOOS), ErrConnectionFailed)
	}
}

// Install reports how to install Docker rather than installing it; package
// installation needs privileges and interaction we do not assume.
func (ExecLauncher) Install(ctx context.Context) error {
	switch runtime.GOOS {
	case "darwin":
		return NewRuntimeError("Install", "daemon", "", "Docker Desktop is not installed, install it with: brew install --cask docker", ErrConnectionFailed)
	case "linux":
		return NewRuntimeError("Install", "daemon", "", "docker is not installed, install it with your package manager (e.g. apt install docker.io)", ErrConnectionFailed)
	default:
		return NewRuntimeError("Install", "daemon", "", fmt.Sprintf("docker is not installed and %s is unsupported", runtime.GOOS), ErrConnectionFailed)
	}
}
