package render

import (
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/slipway-sh/slipway/internal/core/domain"
)

// =============================================================================
// Cluster Object Rendering
// =============================================================================

// Rolling update policy is fixed regardless of mode.
var (
	maxSurge       = intstr.FromString("25%")
	maxUnavailable = intstr.FromString("25%")
)

func ptr[T any](v T) *T { return &v }

// renderKubeObjects builds the typed cluster objects for a prod deployment.
func (b *Builder) renderKubeObjects(spec domain.AppSpec) *KubeObjects {
	namespace := b.defaults.Namespace(spec.Mode)
	objs := &KubeObjects{
		Namespace:     renderNamespace(namespace),
		Quota:         renderQuota(namespace, spec.Mode),
		Deployment:    renderDeployment(spec, namespace),
		Service:       b.renderService(spec, namespace),
		NetworkPolicy: renderNetworkPolicy(spec, namespace),
		Ingress:       b.renderIngress(spec, namespace),
	}
	if spec.AutoScale {
		objs.Autoscaler = b.renderAutoscaler(spec, namespace)
	}
	return objs
}

func renderNamespace(name string) *corev1.Namespace {
	return &corev1.Namespace{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Namespace"},
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: map[string]string{"name": name},
		},
	}
}

// renderQuota derives the namespace resource quota from the mode, not from
// the replica count.
func renderQuota(namespace string, mode domain.Mode) *corev1.ResourceQuota {
	hard := corev1.ResourceList{
		"requests.cpu":    resource.MustParse("1"),
		"requests.memory": resource.MustParse("2Gi"),
		"limits.cpu":      resource.MustParse("2"),
		"limits.memory":   resource.MustParse("4Gi"),
	}
	if mode == domain.ModeProd {
		hard = corev1.ResourceList{
			"requests.cpu":    resource.MustParse("4"),
			"requests.memory": resource.MustParse("8Gi"),
			"limits.cpu":      resource.MustParse("8"),
			"limits.memory":   resource.MustParse("16Gi"),
		}
	}
	return &corev1.ResourceQuota{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "ResourceQuota"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      "compute-quota",
			Namespace: namespace,
		},
		Spec: corev1.ResourceQuotaSpec{Hard: hard},
	}
}

// containerResources scales requests and limits by mode: prod gets higher
// ceilings than dev.
func containerResources(mode domain.Mode) corev1.ResourceRequirements {
	if mode == domain.ModeProd {
		return corev1.ResourceRequirements{
			Requests: corev1.ResourceList{
				corev1.ResourceCPU:    resource.MustParse("1"),
				corev1.ResourceMemory: resource.MustParse("2Gi"),
			},
			Limits: corev1.ResourceList{
				corev1.ResourceCPU:    resource.MustParse("2"),
				corev1.ResourceMemory: resource.MustParse("4Gi"),
			},
		}
	}
	return corev1.ResourceRequirements{
		Requests: corev1.ResourceList{
			corev1.ResourceCPU:    resource.MustParse("500m"),
			corev1.ResourceMemory: resource.MustParse("512Mi"),
		},
		Limits: corev1.ResourceList{
			corev1.ResourceCPU:    resource.MustParse("1"),
			corev1.ResourceMemory: resource.MustParse("1Gi"),
		},
	}
}

// healthProbe builds an HTTP probe against /health. Probe thresholds are
// fixed constants independent of mode.
func healthProbe(port int) corev1.ProbeHandler {
	return corev1.ProbeHandler{
		HTTPGet: &corev1.HTTPGetAction{
			Path: "/health",
			Port: intstr.FromInt(port),
		},
	}
}

func renderDeployment(spec domain.AppSpec, namespace string) *appsv1.Deployment {
	labels := map[string]string{"app": spec.Name}
	portStr := fmt.Sprintf("%d", spec.Port)

	return &appsv1.Deployment{
		TypeMeta: metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      fmt.Sprintf("%s-deployment", spec.Name),
			Namespace: namespace,
			Labels:    labels,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr(int32(spec.Replicas)),
			Strategy: appsv1.DeploymentStrategy{
				Type: appsv1.RollingUpdateDeploymentStrategyType,
				RollingUpdate: &appsv1.RollingUpdateDeployment{
					MaxSurge:       &maxSurge,
					MaxUnavailable: &maxUnavailable,
				},
			},
			Selector: &metav1.LabelSelector{MatchLabels: labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: labels,
					Annotations: map[string]string{
						"prometheus.io/scrape": "true",
						"prometheus.io/port":   portStr,
					},
				},
				Spec: corev1.PodSpec{
					SecurityContext: &corev1.PodSecurityContext{
						RunAsNonRoot: ptr(true),
						RunAsUser:    ptr(int64(1000)),
					},
					Containers: []corev1.Container{{
						Name:            spec.Name,
						Image:           spec.ClusterImageName(),
						ImagePullPolicy: corev1.PullNever,
						Ports: []corev1.ContainerPort{{
							ContainerPort: int32(spec.Port),
							Protocol:      corev1.ProtocolTCP,
						}},
						Env: []corev1.EnvVar{
							{Name: "PORT", Value: portStr},
							{Name: "NODE_ENV", Value: spec.Mode.NodeEnv()},
						},
						Resources: containerResources(spec.Mode),
						LivenessProbe: &corev1.Probe{
							ProbeHandler:        healthProbe(spec.Port),
							InitialDelaySeconds: 15,
							PeriodSeconds:       20,
							TimeoutSeconds:      5,
							FailureThreshold:    3,
						},
						ReadinessProbe: &corev1.Probe{
							ProbeHandler:        healthProbe(spec.Port),
							InitialDelaySeconds: 5,
							PeriodSeconds:       10,
							TimeoutSeconds:      3,
							SuccessThreshold:    1,
							FailureThreshold:    3,
						},
						StartupProbe: &corev1.Probe{
							ProbeHandler:     healthProbe(spec.Port),
							PeriodSeconds:    10,
							FailureThreshold: 30,
						},
					}},
					TopologySpreadConstraints: []corev1.TopologySpreadConstraint{{
						MaxSkew:           1,
						TopologyKey:       "kubernetes.io/hostname",
						WhenUnsatisfiable: corev1.DoNotSchedule,
						LabelSelector:     &metav1.LabelSelector{MatchLabels: labels},
					}},
				},
			},
		},
	}
}

// renderService builds a ClusterIP service with client-IP session affinity
// and a fixed affinity timeout.
func (b *Builder) renderService(spec domain.AppSpec, namespace string) *corev1.Service {
	portStr := fmt.Sprintf("%d", spec.Port)
	return &corev1.Service{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      fmt.Sprintf("%s-service", spec.Name),
			Namespace: namespace,
			Annotations: map[string]string{
				"prometheus.io/scrape": "true",
				"prometheus.io/port":   portStr,
			},
		},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{"app": spec.Name},
			Ports: []corev1.ServicePort{{
				Port:       int32(spec.Port),
				TargetPort: intstr.FromInt(spec.Port),
			}},
			Type:            corev1.ServiceTypeClusterIP,
			SessionAffinity: corev1.ServiceAffinityClientIP,
			SessionAffinityConfig: &corev1.SessionAffinityConfig{
				ClientIP: &corev1.ClientIPConfig{
					TimeoutSeconds: ptr(b.defaults.AffinityTimeoutSeconds),
				},
			},
		},
	}
}

func renderNetworkPolicy(spec domain.AppSpec, namespace string) *networkingv1.NetworkPolicy {
	tcp := corev1.ProtocolTCP
	port80 := intstr.FromInt(80)
	return &networkingv1.NetworkPolicy{
		TypeMeta: metav1.TypeMeta{APIVersion: "networking.k8s.io/v1", Kind: "NetworkPolicy"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      fmt.Sprintf("%s-network-policy", spec.Name),
			Namespace: namespace,
		},
		Spec: networkingv1.NetworkPolicySpec{
			PodSelector: metav1.LabelSelector{MatchLabels: map[string]string{"app": spec.Name}},
			PolicyTypes: []networkingv1.PolicyType{
				networkingv1.PolicyTypeIngress,
				networkingv1.PolicyTypeEgress,
			},
			Ingress: []networkingv1.NetworkPolicyIngressRule{{
				From: []networkingv1.NetworkPolicyPeer{{
					NamespaceSelector: &metav1.LabelSelector{MatchLabels: map[string]string{"name": namespace}},
				}},
				Ports: []networkingv1.NetworkPolicyPort{{Protocol: &tcp, Port: &port80}},
			}},
			Egress: []networkingv1.NetworkPolicyEgressRule{{
				To: []networkingv1.NetworkPolicyPeer{{
					NamespaceSelector: &metav1.LabelSelector{MatchLabels: map[string]string{"name": "kube-system"}},
				}},
				Ports: []networkingv1.NetworkPolicyPort{{Protocol: &tcp}},
			}},
		},
	}
}

func (b *Builder) renderAutoscaler(spec domain.AppSpec, namespace string) *autoscalingv2.HorizontalPodAutoscaler {
	return &autoscalingv2.HorizontalPodAutoscaler{
		TypeMeta: metav1.TypeMeta{APIVersion: "autoscaling/v2", Kind: "HorizontalPodAutoscaler"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      fmt.Sprintf("%s-hpa", spec.Name),
			Namespace: namespace,
		},
		Spec: autoscalingv2.HorizontalPodAutoscalerSpec{
			ScaleTargetRef: autoscalingv2.CrossVersionObjectReference{
				APIVersion: "apps/v1",
				Kind:       "Deployment",
				Name:       fmt.Sprintf("%s-deployment", spec.Name),
			},
			MinReplicas: ptr(int32(spec.Replicas)),
			MaxReplicas: int32(b.defaults.MaxInstances),
			Metrics: []autoscalingv2.MetricSpec{{
				Type: autoscalingv2.ResourceMetricSourceType,
				Resource: &autoscalingv2.ResourceMetricSource{
					Name: corev1.ResourceCPU,
					Target: autoscalingv2.MetricTarget{
						Type:               autoscalingv2.UtilizationMetricType,
						AverageUtilization: ptr(b.defaults.TargetCPUUtilization),
					},
				},
			}},
		},
	}
}

// renderIngress exposes the app at <name>.<domain> through the nginx ingress
// controller.
func (b *Builder) renderIngress(spec domain.AppSpec, namespace string) *networkingv1.Ingress {
	pathType := networkingv1.PathTypePrefix
	return &networkingv1.Ingress{
		TypeMeta: metav1.TypeMeta{APIVersion: "networking.k8s.io/v1", Kind: "Ingress"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      fmt.Sprintf("%s-ingress", spec.Name),
			Namespace: namespace,
			Annotations: map[string]string{
				"nginx.ingress.kubernetes.io/rewrite-target": "/",
			},
		},
		Spec: networkingv1.IngressSpec{
			Rules: []networkingv1.IngressRule{{
				Host: IngressHost(spec.Name, b.defaults.IngressDomain),
				IngressRuleValue: networkingv1.IngressRuleValue{
					HTTP: &networkingv1.HTTPIngressRuleValue{
						Paths: []networkingv1.HTTPIngressPath{{
							Path:     "/",
							PathType: &pathType,
							Backend: networkingv1.IngressBackend{
								Service: &networkingv1.IngressServiceBackend{
									Name: fmt.Sprintf("%s-service", spec.Name),
									Port: networkingv1.ServiceBackendPort{Number: int32(spec.Port)},
								},
							},
						}},
					},
				},
			}},
		},
	}
}

// IngressHost returns the host the ingress routes, e.g. "demo.local".
func IngressHost(appName, domain string) string {
	return fmt.Sprintf("%s.%s", appName, domain)
}
