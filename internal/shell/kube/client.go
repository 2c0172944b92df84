// Package kube is the cluster adapter: kubeconfig loading, context
// switching, manifest application, rollout waiting, and teardown against a
// Kubernetes API server. The engine talks to it through the Cluster
// interface so tests can substitute a fake clientset.
package kube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/slipway-sh/slipway/internal/core/domain"
	"github.com/slipway-sh/slipway/internal/core/render"
)

// =============================================================================
// Cluster Interface
// =============================================================================

// Cluster is the surface the engine needs from a Kubernetes cluster.
type Cluster interface {
	// Context returns the kubeconfig context the client is bound to.
	Context() string

	// CheckConnection makes a lightweight API call to verify connectivity.
	CheckConnection(ctx context.Context) error

	// Apply creates or updates every object in the set, in order.
	Apply(ctx context.Context, objs *render.KubeObjects) error

	// WaitForRollout blocks until the deployment's replicas are updated and
	// available, or the timeout elapses.
	WaitForRollout(ctx context.Context, namespace, name string, timeout time.Duration) error

	// PodPhases returns the phase of every pod carrying the app label.
	PodPhases(ctx context.Context, namespace, app string) ([]string, error)

	// Teardown deletes the app's objects and namespace, ignoring objects
	// that are already gone.
	Teardown(ctx context.Context, objs *render.KubeObjects) error
}

// =============================================================================
// Client
// =============================================================================

// Client implements Cluster against a real (or fake) clientset.
type Client struct {
	clientset    kubernetes.Interface
	config       *rest.Config
	contextName  string
	serverURL    string
	clock        Clock
	pollInterval time.Duration
}

var _ Cluster = (*Client)(nil)

const defaultPollInterval = 5 * time.Second

// NewClient loads the kubeconfig and binds to contextName. An empty
// contextName uses the kubeconfig's current context. A context that does not
// exist in the kubeconfig is a configuration error, not a connectivity one.
func NewClient(kubeconfigPath, contextName string) (*Client, error) {
	if kubeconfigPath == "" {
		kubeconfigPath = os.Getenv("KUBECONFIG")
	}
	if kubeconfigPath == "" {
		home, _ := os.UserHomeDir()
		kubeconfigPath = filepath.Join(home, ".kube", "config")
	}

	if _, err := os.Stat(kubeconfigPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: no kubeconfig at %s", domain.ErrClusterNotConfigured, kubeconfigPath)
	}

	loadingRules := &clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfigPath}
	overrides := &clientcmd.ConfigOverrides{}
	if contextName != "" {
		overrides.CurrentContext = contextName
	}
	kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides)

	rawConfig, err := kubeConfig.RawConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid kubeconfig: %v", domain.ErrClusterNotConfigured, err)
	}

	effective := contextName
	if effective == "" {
		effective = rawConfig.CurrentContext
	}
	if effective == "" {
		return nil, fmt.Errorf("%w: kubeconfig has no current context", domain.ErrClusterNotConfigured)
	}
	ctxEntry, ok := rawConfig.Contexts[effective]
	if !ok {
		return nil, fmt.Errorf("%w: context %q not found in kubeconfig", domain.ErrClusterNotConfigured, effective)
	}

	restConfig, err := kubeConfig.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrClusterNotConfigured, err)
	}
	restConfig.Timeout = 10 * time.Second

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrClusterNotConfigured, err)
	}

	serverURL := ""
	if cluster, ok := rawConfig.Clusters[ctxEntry.Cluster]; ok {
		serverURL = cluster.Server
	}

	return &Client{
		clientset:    clientset,
		config:       restConfig,
		contextName:  effective,
		serverURL:    serverURL,
		clock:        NewClock(),
		pollInterval: defaultPollInterval,
	}, nil
}

// NewWithClientset wires a prebuilt clientset, used by tests with the fake
// clientset.
func NewWithClientset(clientset kubernetes.Interface, contextName string) *Client {
	return &Client{
		clientset:    clientset,
		contextName:  contextName,
		clock:        NewClock(),
		pollInterval: time.Millisecond,
	}
}

// Context returns the kubeconfig context the client is bound to.
func (c *Client) Context() string { return c.contextName }

// CheckConnection makes a lightweight API call to verify connectivity.
func (c *Client) CheckConnection(ctx context.Context) error {
	_, err := c.clientset.Discovery().ServerVersion()
	return c.classifyError(err)
}

// classifyError converts a raw API error into one of the cluster sentinels.
func (c *Client) classifyError(err error) error {
	if err == nil {
		return nil
	}

	var statusErr *k8serrors.StatusError
	if errors.As(err, &statusErr) {
		code := statusErr.Status().Code
		if code == http.StatusUnauthorized || code == http.StatusForbidden {
			return fmt.Errorf("%w: access denied by %s: %v", domain.ErrClusterNotConfigured, c.serverURL, err)
		}
	}

	msg := err.Error()
	if strings.Contains(msg, "dial tcp") || strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "connection refused") || strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "x509") || strings.Contains(msg, "certificate") {
		return fmt.Errorf("%w: %s: %v", domain.ErrClusterUnreachable, c.serverURL, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrClusterUnreachable, err)
}
