// Package render is the artifact generator: it turns an AppSpec into the
// full set of deployment artifacts. Everything here is pure — identical
// input yields byte-identical output, and no filesystem or network calls
// originate from this package. Writing files is the caller's job.
package render

import (
	appsv1 "k8s.io/api/apps/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	"sigs.k8s.io/yaml"
)

// =============================================================================
// Artifact Types
// =============================================================================

// File is a single generated artifact ready to be written to the working
// directory.
type File struct {
	Name    string
	Content []byte
}

// KubeObjects holds the typed cluster objects for one deployment, in the
// order they must be applied: namespace, quota, workload objects, network
// policy, autoscaler, ingress.
type KubeObjects struct {
	Namespace     *corev1.Namespace
	Quota         *corev1.ResourceQuota
	Deployment    *appsv1.Deployment
	Service       *corev1.Service
	NetworkPolicy *networkingv1.NetworkPolicy
	Autoscaler    *autoscalingv2.HorizontalPodAutoscaler
	Ingress       *networkingv1.Ingress
}

// Artifacts is the complete render output for one (spec, mode) input.
type Artifacts struct {
	Dockerfile []byte
	Compose    []byte
	Kube       *KubeObjects // nil in local mode
	Proxy      []File       // web-server / load-balancer configs
	Aux        []File       // non-gating provisioning configs (monitoring, caching)
}

// File names written to the working directory. The cluster file names match
// the apply order of KubeObjects.
const (
	FileDockerfile = "Dockerfile"
	FileCompose    = "docker-compose.yml"

	FileNamespace     = "k8s-namespace.yaml"
	FileQuota         = "quota.yaml"
	FileDeployment    = "k8s-deployment.yaml"
	FileService       = "k8s-service.yaml"
	FileNetworkPolicy = "network-policy.yaml"
	FileAutoscaler    = "hpa.yaml"
	FileIngress       = "k8s-ingress.yaml"
)

// Files flattens the artifact set into named files in dependency order.
func (a *Artifacts) Files() ([]File, error) {
	files := []File{
		{Name: FileDockerfile, Content: a.Dockerfile},
		{Name: FileCompose, Content: a.Compose},
	}
	if a.Kube != nil {
		kubeFiles, err := a.Kube.Files()
		if err != nil {
			return nil, err
		}
		files = append(files, kubeFiles...)
	}
	files = append(files, a.Proxy...)
	return files, nil
}

// Files marshals each cluster object to YAML, in apply order. Marshalling
// goes through sigs.k8s.io/yaml so map keys come out sorted and two renders
// of the same input are byte-identical.
func (k *KubeObjects) Files() ([]File, error) {
	var files []File
	add := func(name string, obj interface{}) error {
		data, err := yaml.Marshal(obj)
		if err != nil {
			return err
		}
		files = append(files, File{Name: name, Content: data})
		return nil
	}

	for _, step := range []func() error{
		func() error { return add(FileNamespace, k.Namespace) },
		func() error { return add(FileQuota, k.Quota) },
		func() error { return add(FileDeployment, k.Deployment) },
		func() error { return add(FileService, k.Service) },
		func() error { return add(FileNetworkPolicy, k.NetworkPolicy) },
	} {
		if err := step(); err != nil {
			return nil, err
		}
	}
	if k.Autoscaler != nil {
		if err := add(FileAutoscaler, k.Autoscaler); err != nil {
			return nil, err
		}
	}
	if err := add(FileIngress, k.Ingress); err != nil {
		return nil, err
	}
	return files, nil
}

// GeneratedFileNames lists every file name the renderer can produce, for
// cleanup purposes.
func GeneratedFileNames() []string {
	return []string{
		FileDockerfile, FileCompose,
		FileNamespace, FileQuota, FileDeployment, FileService,
		FileNetworkPolicy, FileAutoscaler, FileIngress,
		FileNginxConf, FileHAProxyConf,
		FilePrometheus, FileGrafanaDashboard, FileRedisConf, FileVarnishVCL,
	}
}
