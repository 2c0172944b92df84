package kube

import (
	"context"
	"fmt"
	"strings"

	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/slipway-sh/slipway/internal/core/domain"
	"github.com/slipway-sh/slipway/internal/core/render"
)

// =============================================================================
// Manifest Application
// =============================================================================

// Apply creates or updates every object in the set, in dependency order:
// namespace and quota first, then workload objects, then network policy,
// autoscaler, and ingress. The first failure stops the sequence, and the
// error names the objects that were never applied.
func (c *Client) Apply(ctx context.Context, objs *render.KubeObjects) error {
	steps := []struct {
		kind string
		fn   func() error
	}{
		{"namespace", func() error { return c.applyNamespace(ctx, objs) }},
		{"resourcequota", func() error { return c.applyQuota(ctx, objs) }},
		{"deployment", func() error { return c.applyDeployment(ctx, objs) }},
		{"service", func() error { return c.applyService(ctx, objs) }},
		{"networkpolicy", func() error { return c.applyNetworkPolicy(ctx, objs) }},
		{"hpa", func() error { return c.applyAutoscaler(ctx, objs) }},
		{"ingress", func() error { return c.applyIngress(ctx, objs) }},
	}
	for i, step := range steps {
		if err := step.fn(); err != nil {
			var remaining []string
			for _, rest := range steps[i+1:] {
				remaining = append(remaining, rest.kind)
			}
			if len(remaining) > 0 {
				return fmt.Errorf("%w: %s: %v (not yet applied: %s)",
					domain.ErrManifestApply, step.kind, err, strings.Join(remaining, ", "))
			}
			return fmt.Errorf("%w: %s: %v", domain.ErrManifestApply, step.kind, err)
		}
	}
	return nil
}

func (c *Client) applyNamespace(ctx context.Context, objs *render.KubeObjects) error {
	api := c.clientset.CoreV1().Namespaces()
	_, err := api.Create(ctx, objs.Namespace, metav1.CreateOptions{})
	if k8serrors.IsAlreadyExists(err) {
		return nil
	}
	return err
}

func (c *Client) applyQuota(ctx context.Context, objs *render.KubeObjects) error {
	api := c.clientset.CoreV1().ResourceQuotas(objs.Quota.Namespace)
	_, err := api.Create(ctx, objs.Quota, metav1.CreateOptions{})
	if k8serrors.IsAlreadyExists(err) {
		existing, getErr := api.Get(ctx, objs.Quota.Name, metav1.GetOptions{})
		if getErr != nil {
			return getErr
		}
		existing.Spec = objs.Quota.Spec
		_, err = api.Update(ctx, existing, metav1.UpdateOptions{})
	}
	return err
}

func (c *Client) applyDeployment(ctx context.Context, objs *render.KubeObjects) error {
	api := c.clientset.AppsV1().Deployments(objs.Deployment.Namespace)
	_, err := api.Create(ctx, objs.Deployment, metav1.CreateOptions{})
	if k8serrors.IsAlreadyExists(err) {
		existing, getErr := api.Get(ctx, objs.Deployment.Name, metav1.GetOptions{})
		if getErr != nil {
			return getErr
		}
		existing.Spec = objs.Deployment.Spec
		existing.Labels = objs.Deployment.Labels
		_, err = api.Update(ctx, existing, metav1.UpdateOptions{})
	}
	return err
}

func (c *Client) applyService(ctx context.Context, objs *render.KubeObjects) error {
	api := c.clientset.CoreV1().Services(objs.Service.Namespace)
	_, err := api.Create(ctx, objs.Service, metav1.CreateOptions{})
	if k8serrors.IsAlreadyExists(err) {
		existing, getErr := api.Get(ctx, objs.Service.Name, metav1.GetOptions{})
		if getErr != nil {
			return getErr
		}
		// ClusterIP is immutable, carry it over on update.
		clusterIP := existing.Spec.ClusterIP
		existing.Spec = objs.Service.Spec
		existing.Spec.ClusterIP = clusterIP
		existing.Annotations = objs.Service.Annotations
		_, err = api.Update(ctx, existing, metav1.UpdateOptions{})
	}
	return err
}

func (c *Client) applyNetworkPolicy(ctx context.Context, objs *render.KubeObjects) error {
	api := c.clientset.NetworkingV1().NetworkPolicies(objs.NetworkPolicy.Namespace)
	_, err := api.Create(ctx, objs.NetworkPolicy, metav1.CreateOptions{})
	if k8serrors.IsAlreadyExists(err) {
		existing, getErr := api.Get(ctx, objs.NetworkPolicy.Name, metav1.GetOptions{})
		if getErr != nil {
			return getErr
		}
		existing.Spec = objs.NetworkPolicy.Spec
		_, err = api.Update(ctx, existing, metav1.UpdateOptions{})
	}
	return err
}

func (c *Client) applyAutoscaler(ctx context.Context, objs *render.KubeObjects) error {
	if objs.Autoscaler == nil {
		return nil
	}
	api := c.clientset.AutoscalingV2().HorizontalPodAutoscalers(objs.Autoscaler.Namespace)
	_, err := api.Create(ctx, objs.Autoscaler, metav1.CreateOptions{})
	if k8serrors.IsAlreadyExists(err) {
		existing, getErr := api.Get(ctx, objs.Autoscaler.Name, metav1.GetOptions{})
		if getErr != nil {
			return getErr
		}
		existing.Spec = objs.Autoscaler.Spec
		_, err = api.Update(ctx, existing, metav1.UpdateOptions{})
	}
	return err
}

func (c *Client) applyIngress(ctx context.Context, objs *render.KubeObjects) error {
	api := c.clientset.NetworkingV1().Ingresses(objs.Ingress.Namespace)
	_, err := api.Create(ctx, objs.Ingress, metav1.CreateOptions{})
	if k8serrors.IsAlreadyExists(err) {
		existing, getErr := api.Get(ctx, objs.Ingress.Name, metav1.GetOptions{})
		if getErr != nil {
			return getErr
		}
		existing.Spec = objs.Ingress.Spec
		existing.Annotations = objs.Ingress.Annotations
		_, err = api.Update(ctx, existing, metav1.UpdateOptions{})
	}
	return err
}
