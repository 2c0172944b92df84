package render

import (
	"fmt"

	"github.com/slipway-sh/slipway/internal/core/domain"
)

const (
	FileNginxConf   = "nginx.conf"
	FileHAProxyConf = "haproxy.cfg"
)

// =============================================================================
// Web Server Config
// =============================================================================

// renderNginxConf produces the front web-server config. Worker count is the
// only mode-dependent parameter.
func renderNginxConf(mode domain.Mode) []byte {
	workers := "4"
	if mode == domain.ModeProd {
		workers = "auto"
	}

	return []byte(fmt.Sprintf(`user nginx;
worker_processes %s;
worker_rlimit_nofile 1000000;
pcre_jit on;

events {
    worker_connections 65535;
    multi_accept on;
}

http {
    sendfile on;
    tcp_nopush on;
    tcp_nodelay on;
    keepalive_timeout 65;
    keepalive_requests 1000;
    server_tokens off;

    client_body_buffer_size 128k;
    client_max_body_size 50M;

    open_file_cache max=200000 inactive=20s;
    open_file_cache_valid 30s;
    open_file_cache_min_uses 2;

    gzip on;
    gzip_comp_level 5;
    gzip_min_length 256;
    gzip_proxied any;
    gzip_vary on;

    add_header Strict-Transport-Security "max-age=31536000; includeSubDomains" always;
    add_header X-Frame-Options "SAMEORIGIN" always;
    add_header X-Content-Type-Options "nosniff" always;
}
`, workers))
}

// =============================================================================
// Load Balancer Config
// =============================================================================

// renderHAProxyConf produces the load-balancer config that fronts the app
// containers.
func renderHAProxyConf(mode domain.Mode) []byte {
	_ = mode // layout is mode-independent today
	return []byte(`global
    maxconn 100000
    stats socket /var/run/haproxy.sock mode 600 level admin
    stats timeout 2m

defaults
    mode http
    timeout connect 10s
    timeout client 30s
    timeout server 30s
    option httplog
    option dontlognull
    option http-server-close
    option forwardfor except 127.0.0.0/8
    option redispatch
    retries 3
    maxconn 3000

frontend main
    bind *:80
    stick-table type ip size 100k expire 30s store conn_cur,conn_rate(3s),http_req_rate(10s)
    http-request track-sc0 src
    http-request deny deny_status 429 if { sc_http_req_rate(0) gt 10 }
    default_backend apps

backend apps
    balance roundrobin
    option httpchk HEAD /health HTTP/1.1\r\nHost:\ localhost
    http-check expect status 200
    default-server inter 3s fall 3 rise 2 on-marked-down shutdown-sessions
    server app1 127.0.0.1:3000 check weight 100 maxconn 3000
    server app2 127.0.0.1:3001 check weight 100 maxconn 3000
`)
}
