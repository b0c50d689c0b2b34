package nginx

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfFileName is the name of the generated configuration artifact
const ConfFileName = "nginx-devpi-lockdown.conf"

// GeneratorConfig parameterizes the generated server block
type GeneratorConfig struct {
	// ServerName is the nginx server_name value
	ServerName string

	// Port is the port nginx listens on
	Port int

	// UpstreamURL is the devpi server URL nginx proxies to
	UpstreamURL string

	// ServerDir is the devpi-server state directory, used to serve release
	// files directly
	ServerDir string
}

// Generate produces the complete lockdown nginx configuration: the regular
// devpi proxy config with the authcheck block injected before the first
// location block.
func Generate(cfg GeneratorConfig) []string {
	base := fmt.Sprintf(`server {
    server_name %s;
    listen %d;
    gzip             on;
    gzip_min_length  2000;
    gzip_proxied     any;
    gzip_types       application/json;

    proxy_read_timeout 60s;
    client_max_body_size 64M;

    # set to where your devpi-server state is on the filesystem
    root %s;

    # try serving static files directly
    location ~ /\+f/ {
        # workaround to pass non-GET/HEAD requests through to the named location below
        error_page 418 = @proxy_to_app;
        if ($request_method !~ (GET)|(HEAD)) {
            return 418;
        }

        expires max;
        try_files /+files$uri @proxy_to_app;
    }
    # try serving docs directly
    location ~ /\+doc/ {
        try_files $uri @proxy_to_app;
    }
    location / {
        # workaround to pass all requests to / through to the named location below
        error_page 418 = @proxy_to_app;
        return 418;
    }
    location @proxy_to_app {
        proxy_pass %s;
        proxy_set_header X-outside-url $scheme://$http_host;
        proxy_set_header X-Real-IP $remote_addr;
    }
}`, cfg.ServerName, cfg.Port, cfg.ServerDir, cfg.UpstreamURL)

	return Inject(strings.Split(base, "\n"))
}

// WriteConfig generates the configuration and writes it into dir as
// nginx-devpi-lockdown.conf.
func WriteConfig(cfg GeneratorConfig, dir string) (string, error) {
	path := filepath.Join(dir, ConfFileName)
	content := strings.Join(Generate(cfg), "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", ConfFileName, err)
	}
	return path, nil
}
