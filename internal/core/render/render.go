package render

import (
	"fmt"

	"github.com/slipway-sh/slipway/internal/core/domain"
)

// =============================================================================
// Builder
// =============================================================================

// Defaults carries the render-time constants that vary per installation.
// They are passed in explicitly rather than read from package globals.
type Defaults struct {
	DevNamespace  string
	ProdNamespace string

	// Autoscaler bounds when the spec enables autoscaling.
	MaxInstances         int
	TargetCPUUtilization int32

	// Session affinity timeout for the generated Service, in seconds.
	AffinityTimeoutSeconds int32

	// IngressDomain is appended to the app name for the ingress host.
	IngressDomain string
}

// NewDefaults returns the stock defaults.
func NewDefaults() Defaults {
	return Defaults{
		DevNamespace:           "development",
		ProdNamespace:          "production",
		MaxInstances:           10,
		TargetCPUUtilization:   70,
		AffinityTimeoutSeconds: 10800,
		IngressDomain:          "local",
	}
}

// Namespace returns the namespace for a mode.
func (d Defaults) Namespace(mode domain.Mode) string {
	if mode.IsCluster() {
		return d.ProdNamespace
	}
	return d.DevNamespace
}

// Builder renders the artifact set for a deployment attempt.
type Builder struct {
	defaults Defaults
}

// NewBuilder creates a Builder with the given defaults.
func NewBuilder(defaults Defaults) *Builder {
	return &Builder{defaults: defaults}
}

// Render produces the complete artifact set for (spec, spec.Mode).
// Deterministic: identical specs always yield byte-identical artifacts,
// which is what makes redeploys idempotent and the output testable.
func (b *Builder) Render(spec domain.AppSpec) (*Artifacts, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	dockerfile, err := renderDockerfile(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigGeneration, err)
	}

	compose, err := renderCompose(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigGeneration, err)
	}
	if err := ValidateCompose(compose); err != nil {
		return nil, fmt.Errorf("%w: generated compose file is invalid: %v", domain.ErrConfigGeneration, err)
	}

	artifacts := &Artifacts{
		Dockerfile: dockerfile,
		Compose:    compose,
		Proxy: []File{
			{Name: FileNginxConf, Content: renderNginxConf(spec.Mode)},
			{Name: FileHAProxyConf, Content: renderHAProxyConf(spec.Mode)},
		},
		Aux: renderAuxConfigs(spec),
	}

	if spec.Mode.IsCluster() {
		artifacts.Kube = b.renderKubeObjects(spec)
	}

	return artifacts, nil
}
