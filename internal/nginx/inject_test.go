package nginx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexOf(lines []string, substr string) int {
	for i, line := range lines {
		if strings.Contains(line, substr) {
			return i
		}
	}
	return -1
}

func TestFindInjectionIndex(t *testing.T) {
	// the block lands after the last real directive, in front of the comment
	// run that introduces the first location
	lines := []string{
		"server {",
		"    server_name example.com;",
		"",
		"    # serve static files directly",
		"    location /static/ {",
		"    }",
		"}",
	}
	assert.Equal(t, 2, FindInjectionIndex(lines))

	// no comment run: directly before the location line
	lines = []string{
		"server {",
		"    server_name example.com;",
		"    location / {",
		"    }",
		"}",
	}
	assert.Equal(t, 2, FindInjectionIndex(lines))

	// no location block at all: after the last directive
	lines = []string{
		"server {",
		"    server_name example.com;",
		"}",
	}
	assert.Equal(t, 3, FindInjectionIndex(lines))

	assert.Equal(t, 0, FindInjectionIndex([]string{"location / {", "}"}))
}

func TestInjectMirrorsDirectives(t *testing.T) {
	lines := []string{
		"server {",
		"    server_name example.com;",
		"    location @proxy_to_app {",
		"        proxy_pass http://localhost:3141;",
		"        proxy_set_header X-outside-url $scheme://$http_host;",
		"        proxy_set_header X-Real-IP $remote_addr;",
		"    }",
		"}",
	}
	out := Inject(lines)

	joined := strings.Join(out, "\n")
	assert.Contains(t, joined,
		"proxy_pass http://localhost:3141; # same as in @proxy_to_app below")
	assert.Contains(t, joined,
		"proxy_set_header X-outside-url $scheme://$http_host; # same as in @proxy_to_app below")
	assert.Contains(t, joined,
		"proxy_set_header X-Real-IP $remote_addr; # same as in @proxy_to_app below")

	// the original proxy block is untouched
	assert.Contains(t, joined, "        proxy_pass http://localhost:3141;\n")
}

func TestInjectMissingDirectivePlaceholder(t *testing.T) {
	lines := []string{
		"server {",
		"    location / {",
		"        proxy_pass http://localhost:3141;",
		"    }",
		"}",
	}
	out := Inject(lines)

	// a missing directive shows up as a placeholder, not a generation error
	joined := strings.Join(out, "\n")
	assert.Contains(t, joined, `couldn't find "proxy_set_header.+x-outside-url"`)
	assert.Contains(t, joined, `couldn't find "proxy_set_header.+x-real-ip"`)
	assert.NotContains(t, joined, `couldn't find "proxy_pass"`)
}

func TestGenerateOrdering(t *testing.T) {
	out := Generate(GeneratorConfig{
		ServerName:  "pypi.example.com",
		Port:        80,
		UpstreamURL: "http://localhost:3141",
		ServerDir:   "/var/lib/devpi",
	})

	serverName := indexOf(out, "server_name pypi.example.com;")
	authRequest := indexOf(out, "auth_request /+authcheck;")
	checkLocation := indexOf(out, "location = /+authcheck {")
	errorPage := indexOf(out, "error_page 401 = @error401;")
	loginRedirect := indexOf(out, "return 302 /+login?goto_url=$request_uri;")
	firstFileLocation := indexOf(out, `location ~ /\+f/ {`)

	// the annotated copy in the authcheck block also matches the substring;
	// find the original by exact line
	proxyPass := -1
	for i, line := range out {
		if strings.TrimSpace(line) == "proxy_pass http://localhost:3141;" {
			proxyPass = i
			break
		}
	}

	require.NotEqual(t, -1, serverName)
	require.NotEqual(t, -1, authRequest)
	require.NotEqual(t, -1, checkLocation)
	require.NotEqual(t, -1, errorPage)
	require.NotEqual(t, -1, loginRedirect)
	require.NotEqual(t, -1, firstFileLocation)
	require.NotEqual(t, -1, proxyPass)

	// auth_request must precede every protected location
	assert.Less(t, serverName, authRequest)
	assert.Less(t, errorPage, authRequest)
	assert.Less(t, authRequest, checkLocation)
	assert.Less(t, checkLocation, firstFileLocation)
	assert.Less(t, firstFileLocation, proxyPass)

	// the mirrored directives carry their annotation
	joined := strings.Join(out, "\n")
	assert.Contains(t, joined, "proxy_pass http://localhost:3141; # same as in @proxy_to_app below")
	assert.Contains(t, joined, "proxy_set_header X-Original-URI $request_uri;")
	assert.Contains(t, joined, "root /var/lib/devpi;")
	assert.Contains(t, joined, "listen 80;")
}

func TestWriteConfig(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteConfig(GeneratorConfig{
		ServerName:  "localhost",
		Port:        8080,
		UpstreamURL: "http://localhost:3141",
		ServerDir:   "/srv/devpi",
	}, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ConfFileName), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "auth_request /+authcheck;")
	assert.True(t, strings.HasSuffix(string(content), "\n"))
}
