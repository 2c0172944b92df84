package render

import (
	"fmt"

	"github.com/slipway-sh/slipway/internal/core/domain"
)

const (
	FilePrometheus       = "prometheus.yml"
	FileGrafanaDashboard = "grafana-dashboard.json"
	FileRedisConf        = "redis.conf"
	FileVarnishVCL       = "default.vcl"
)

// =============================================================================
// Auxiliary Provisioning Configs
// =============================================================================

// renderAuxConfigs produces the non-gating provisioning artifacts: monitoring
// scrape config and dashboard, plus the caching layer configs. They are
// written by the auxiliary task group after the core pipeline succeeds; a
// failure there degrades the report but never reverts the deployment.
func renderAuxConfigs(spec domain.AppSpec) []File {
	prometheus := fmt.Sprintf(`global:
  scrape_interval: 15s
  evaluation_interval: 15s

scrape_configs:
  - job_name: '%s'
    static_configs:
      - targets: ['localhost:%d']
    metrics_path: '/metrics'
`, spec.Name, spec.Port)

	dashboard := fmt.Sprintf(`{
  "dashboard": {
    "id": null,
    "title": "%s performance",
    "panels": [
      {
        "title": "Request Rate",
        "type": "graph",
        "datasource": "Prometheus"
      }
    ]
  }
}
`, spec.Name)

	redis := `port 6379
cluster-enabled yes
cluster-config-file nodes.conf
cluster-node-timeout 5000
appendonly yes
maxmemory 2gb
maxmemory-policy allkeys-lru
`

	varnish := fmt.Sprintf(`vcl 4.0;

backend default {
    .host = "127.0.0.1";
    .port = "%d";
    .probe = {
        .url = "/health";
        .timeout = 2s;
        .interval = 5s;
        .window = 5;
        .threshold = 3;
    }
}

sub vcl_recv {
    if (req.method == "PURGE") {
        return(purge);
    }
}
`, spec.Port)

	return []File{
		{Name: FilePrometheus, Content: []byte(prometheus)},
		{Name: FileGrafanaDashboard, Content: []byte(dashboard)},
		{Name: FileRedisConf, Content: []byte(redis)},
		{Name: FileVarnishVCL, Content: []byte(varnish)},
	}
}
