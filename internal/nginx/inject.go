// Package nginx generates the lockdown nginx configuration: the regular
// devpi proxy config with the auth_request block spliced in front of the
// first location block. Pure text transformation; the output is meant to be
// read by operators, so a missing directive produces a visible placeholder
// instead of an error.
package nginx

import (
	"fmt"
	"regexp"
	"strings"
)

// lockdownTemplate is the block inserted before the first location block.
// Ordering is load-bearing: auth_request must precede the protected
// locations or nginx will not gate them.
const lockdownTemplate = `
    # this redirects to the login view when not logged in
    recursive_error_pages on;
    error_page 401 = @error401;
    location @error401 {
        return 302 /+login?goto_url=$request_uri;
    }

    # lock down everything by default
    auth_request /+authcheck;

    # the location to check whether the provided infos authenticate the user
    location = /+authcheck {
        internal;

        proxy_pass_request_body off;
        proxy_set_header Content-Length "";
        proxy_set_header X-Original-URI $request_uri;
        %s
        %s
        %s
    }`

// Directive patterns mirrored from the existing proxy block into the
// authcheck location
const (
	patternOutsideURL = `proxy_set_header.+x-outside-url`
	patternRealIP     = `proxy_set_header.+x-real-ip`
	patternProxyPass  = `proxy_pass`
)

// FindInjectionIndex locates where the lockdown block belongs: just before
// the first location block, but after any run of blank and comment lines
// that immediately precedes it.
func FindInjectionIndex(lines []string) int {
	index := len(lines)
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "location") {
			index = i
			break
		}
	}
	for index = index - 1; index > 0; index-- {
		trimmed := strings.TrimSpace(lines[index])
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		return index + 1
	}
	return 0
}

// findLine returns the first existing line matching the case-insensitive
// pattern, annotated as a duplicate of the main proxy block. When nothing
// matches it returns a placeholder so the breakage is visible in the
// generated config rather than crashing generation.
func findLine(lines []string, pattern string) string {
	re := regexp.MustCompile("(?i)" + pattern)
	for _, line := range lines {
		if re.MatchString(line) {
			return strings.TrimSpace(line) + " # same as in @proxy_to_app below"
		}
	}
	return fmt.Sprintf("couldn't find %q", pattern)
}

// Inject splices the lockdown block into a generated proxy configuration.
// Not idempotent: running it twice duplicates the block, so the caller must
// invoke it exactly once per generated config.
func Inject(lines []string) []string {
	index := FindInjectionIndex(lines)
	block := fmt.Sprintf(lockdownTemplate,
		findLine(lines, patternOutsideURL),
		findLine(lines, patternRealIP),
		findLine(lines, patternProxyPass),
	)
	blockLines := strings.Split(block, "\n")

	out := make([]string, 0, len(lines)+len(blockLines))
	out = append(out, lines[:index]...)
	out = append(out, blockLines...)
	out = append(out, lines[index:]...)
	return out
}
