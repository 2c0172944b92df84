package kube

import (
	"context"
	"fmt"

	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/slipway-sh/slipway/internal/core/render"
)

// =============================================================================
// Teardown
// =============================================================================

// Teardown deletes the app's objects in reverse apply order, then the
// namespace. Objects that are already gone are skipped, so running teardown
// twice is harmless. Errors are collected rather than aborting, so one stuck
// resource does not shield the rest.
func (c *Client) Teardown(ctx context.Context, objs *render.KubeObjects) error {
	var failed []string
	del := func(kind string, err error) {
		if err != nil && !k8serrors.IsNotFound(err) {
			failed = append(failed, fmt.Sprintf("%s: %v", kind, err))
		}
	}

	opts := metav1.DeleteOptions{}
	del("ingress", c.clientset.NetworkingV1().Ingresses(objs.Ingress.Namespace).
		Delete(ctx, objs.Ingress.Name, opts))
	if objs.Autoscaler != nil {
		del("hpa", c.clientset.AutoscalingV2().HorizontalPodAutoscalers(objs.Autoscaler.Namespace).
			Delete(ctx, objs.Autoscaler.Name, opts))
	}
	del("networkpolicy", c.clientset.NetworkingV1().NetworkPolicies(objs.NetworkPolicy.Namespace).
		Delete(ctx, objs.NetworkPolicy.Name, opts))
	del("service", c.clientset.CoreV1().Services(objs.Service.Namespace).
		Delete(ctx, objs.Service.Name, opts))
	del("deployment", c.clientset.AppsV1().Deployments(objs.Deployment.Namespace).
		Delete(ctx, objs.Deployment.Name, opts))
	del("resourcequota", c.clientset.CoreV1().ResourceQuotas(objs.Quota.Namespace).
		Delete(ctx, objs.Quota.Name, opts))
	del("namespace", c.clientset.CoreV1().Namespaces().
		Delete(ctx, objs.Namespace.Name, opts))

	if len(failed) > 0 {
		return fmt.Errorf("teardown left resources behind: %v", failed)
	}
	return nil
}
