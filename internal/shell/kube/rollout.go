package kube

import (
	"context"
	"fmt"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/slipway-sh/slipway/internal/core/domain"
)

// =============================================================================
// Rollout Watching
// =============================================================================

// WaitForRollout polls the deployment until every replica is updated and
// available, or the timeout elapses. Only exhausting the timeout produces a
// rollout timeout error; API failures keep their own classification, and a
// cancelled context surfaces as such. The deployment is left as-is for
// inspection either way.
func (c *Client) WaitForRollout(ctx context.Context, namespace, name string, timeout time.Duration) error {
	deadline := c.clock.Now().Add(timeout)
	api := c.clientset.AppsV1().Deployments(namespace)

	for {
		dep, err := api.Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return c.classifyError(err)
		}
		if rolloutComplete(dep) {
			return nil
		}
		if !c.clock.Now().Before(deadline) {
			return fmt.Errorf("%w: deployment %s/%s not ready after %s (%d/%d replicas available)",
				domain.ErrRolloutTimeout, namespace, name, timeout,
				dep.Status.AvailableReplicas, desiredReplicas(dep))
		}
		if err := c.clock.Sleep(ctx, c.pollInterval); err != nil {
			return err
		}
	}
}

// PodPhases returns the phase of every pod carrying the app label, sorted by
// the API server's list order.
func (c *Client) PodPhases(ctx context.Context, namespace, app string) ([]string, error) {
	pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("app=%s", app),
	})
	if err != nil {
		return nil, c.classifyError(err)
	}
	phases := make([]string, 0, len(pods.Items))
	for _, pod := range pods.Items {
		phases = append(phases, string(pod.Status.Phase))
	}
	return phases, nil
}

func desiredReplicas(dep *appsv1.Deployment) int32 {
	if dep.Spec.Replicas == nil {
		return 1
	}
	return *dep.Spec.Replicas
}

// rolloutComplete mirrors kubectl's rollout status condition: the controller
// has observed the latest generation and all replicas are updated and
// available.
func rolloutComplete(dep *appsv1.Deployment) bool {
	if dep.Generation > dep.Status.ObservedGeneration {
		return false
	}
	want := desiredReplicas(dep)
	return dep.Status.UpdatedReplicas >= want &&
		dep.Status.Replicas == want &&
		dep.Status.AvailableReplicas >= want
}
