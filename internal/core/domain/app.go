// Package domain holds the pure deployment model: specs, records, statuses
// and the status state machine. Following the core/shell split, this package
// contains NO I/O.
package domain

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// App Types
// =============================================================================

// AppType identifies the kind of application being deployed.
type AppType string

const (
	AppTypeBun    AppType = "bun"
	AppTypeNode   AppType = "node"
	AppTypeNextJS AppType = "nextjs"
	AppTypeStatic AppType = "static"
)

// KnownAppTypes lists the supported application types.
var KnownAppTypes = []AppType{AppTypeBun, AppTypeNode, AppTypeNextJS, AppTypeStatic}

// Mode selects the deployment target behaviour.
type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

// IsCluster reports whether this mode deploys to a cluster rather than the
// local container runtime.
func (m Mode) IsCluster() bool { return m == ModeProd }

// NodeEnv returns the NODE_ENV value injected into the app for this mode.
func (m Mode) NodeEnv() string {
	if m.IsCluster() {
		return "production"
	}
	return "development"
}

// =============================================================================
// AppSpec
// =============================================================================

var nameRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// AppSpec is the user-declared intent for one deployment attempt.
// It is immutable once the attempt starts.
type AppSpec struct {
	Name      string
	Type      AppType
	Port      int
	Mode      Mode
	Replicas  int
	AutoScale bool
}

// Validate checks the spec before an attempt is started.
func (s AppSpec) Validate() error {
	if s.Name == "" || !nameRe.MatchString(s.Name) {
		return fmt.Errorf("%w: app name %q must be a DNS-safe label", ErrInvalidSpec, s.Name)
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidSpec, s.Port)
	}
	switch s.Mode {
	case ModeDev, ModeProd:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidSpec, s.Mode)
	}
	known := false
	for _, t := range KnownAppTypes {
		if s.Type == t {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: unsupported app type %q", ErrInvalidSpec, s.Type)
	}
	if s.Replicas < 1 {
		return fmt.Errorf("%w: replicas must be >= 1", ErrInvalidSpec)
	}
	return nil
}

// ImageName returns the local build tag for the app image.
func (s AppSpec) ImageName() string { return fmt.Sprintf("%s-app", s.Name) }

// ClusterImageName returns the tag the image carries inside the cluster.
func (s AppSpec) ClusterImageName() string { return fmt.Sprintf("%s:latest", s.Name) }

// =============================================================================
// AppRecord
// =============================================================================

// KubernetesMetadata is the cluster-side metadata attached to a record.
type KubernetesMetadata struct {
	Namespace      string   `json:"namespace"`
	DeploymentName string   `json:"deploymentName"`
	ServiceName    string   `json:"serviceName"`
	Replicas       int      `json:"replicas"`
	PodStatus      []string `json:"podStatus"`
	IngressHost    string   `json:"ingressHost,omitempty"`
}

// PerformanceMetrics carries advisory runtime metrics. Never gating.
type PerformanceMetrics struct {
	AvgResponseTimeMs float64 `json:"avgResponseTimeMs"`
	RequestsPerSecond uint64  `json:"requestsPerSecond"`
	ErrorRate         float64 `json:"errorRate"`
	MemoryUsageMB     float64 `json:"memoryUsageMb"`
	CPUUsagePercent   float64 `json:"cpuUsagePercent"`
}

// ScalingConfig carries the autoscaling hints for a record.
type ScalingConfig struct {
	AutoScaleThreshold float64 `json:"autoScaleThreshold"`
	MinInstances       int     `json:"minInstances"`
	MaxInstances       int     `json:"maxInstances"`
	ScaleUpCooldown    uint64  `json:"scaleUpCooldown"`
	ScaleDownCooldown  uint64  `json:"scaleDownCooldown"`
}

// AppRecord is the persisted, mutable record of a deployment's current state.
// Exactly one record exists per working directory; JSON field names match the
// on-disk state document.
type AppRecord struct {
	AppName            string             `json:"appName"`
	AppType            AppType            `json:"appType"`
	Port               int                `json:"port"`
	CreatedAt          time.Time          `json:"createdAt"`
	AttemptID          string             `json:"attemptId"`
	ContainerID        string             `json:"containerId,omitempty"`
	Status             Status             `json:"status"`
	KubernetesEnabled  bool               `json:"kubernetesEnabled"`
	KubernetesMetadata KubernetesMetadata `json:"kubernetesMetadata"`
	PerformanceMetrics PerformanceMetrics `json:"performanceMetrics"`
	ScalingConfig      ScalingConfig      `json:"scalingConfig"`
	LastError          string             `json:"lastError,omitempty"`
	FailingStage       string             `json:"failingStage,omitempty"`
}

// RecordDefaults are the record-level defaults that were ambient globals in
// earlier revisions; they are now carried explicitly by the caller's config.
type RecordDefaults struct {
	DevNamespace  string
	ProdNamespace string
	MinInstances  int
	MaxInstances  int
}

// NewAppRecord creates a fresh record for a deploy attempt in status Pending.
func NewAppRecord(spec AppSpec, defaults RecordDefaults) *AppRecord {
	namespace := defaults.DevNamespace
	if spec.Mode.IsCluster() {
		namespace = defaults.ProdNamespace
	}
	return &AppRecord{
		AppName:           spec.Name,
		AppType:           spec.Type,
		Port:              spec.Port,
		CreatedAt:         time.Now().UTC(),
		AttemptID:         uuid.New().String(),
		Status:            StatusPending,
		KubernetesEnabled: spec.Mode.IsCluster(),
		KubernetesMetadata: KubernetesMetadata{
			Namespace:      namespace,
			DeploymentName: fmt.Sprintf("%s-deployment", spec.Name),
			ServiceName:    fmt.Sprintf("%s-service", spec.Name),
			Replicas:       spec.Replicas,
			PodStatus:      []string{},
		},
		ScalingConfig: ScalingConfig{
			MinInstances: defaults.MinInstances,
			MaxInstances: defaults.MaxInstances,
		},
	}
}

// SetPodStatus replaces the pod phase list atomically. Stale entries are
// never appended to.
func (r *AppRecord) SetPodStatus(phases []string) {
	next := make([]string, len(phases))
	copy(next, phases)
	r.KubernetesMetadata.PodStatus = next
}

// Concluded reports whether the attempt is over and a new one may replace
// it: either a terminal status for its target, or a recorded failure at a
// stage with no terminal status of its own (environment failures happen
// before anything is created, so re-running is safe).
func (r *AppRecord) Concluded() bool {
	return r.Status.IsTerminalFor(r.KubernetesEnabled) || r.FailingStage != ""
}

// MarkFailed transitions the record to a terminal failure status and records
// the failing stage and error for the status command.
func (r *AppRecord) MarkFailed(to Status, stage string, cause error) error {
	if err := r.Transition(to); err != nil {
		return err
	}
	r.FailingStage = stage
	if cause != nil {
		r.LastError = cause.Error()
	}
	return nil
}
