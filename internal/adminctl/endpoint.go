package adminctl

import (
	"net/url"
	"strings"
)

const (
	// EndpointOverrideVar is the environment variable naming a full endpoint
	// URL; only its origin is used, the path argument is appended.
	EndpointOverrideVar = "CODEKIDS_LOCAL_ADMIN_ENDPOINT"

	localBase = "http://127.0.0.1:5055"
)

// ResolveEndpoint decides where a tool call goes, in order: the explicit
// override (origin only), the local development server when env names a
// local environment, and finally the bare path for the production hosting
// rewrite.
func ResolveEndpoint(override, env, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	if override != "" {
		if u, err := url.Parse(override); err == nil && u.Scheme != "" && u.Host != "" {
			return u.Scheme + "://" + u.Host + path
		}
	}

	switch strings.ToLower(strings.TrimSpace(env)) {
	case "local", "development", "dev":
		return localBase + path
	}

	return path
}
