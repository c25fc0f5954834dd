package origins

import (
	"net/url"
	"strings"
)

// SafeRedirectTarget returns raw in a form that is safe to navigate to,
// or ok == false when it must not be followed. Relative paths are
// returned with surrounding whitespace trimmed; absolute http(s) URLs
// must point at an allowlisted origin and are returned in canonical form.
func SafeRedirectTarget(raw string, allowlist AllowedOrigins) (target string, ok bool) {
	defer func() {
		if recover() != nil {
			target, ok = "", false
		}
	}()

	if strings.TrimSpace(raw) == "" {
		return "", false
	}
	if hasControlChars(raw) {
		return "", false
	}

	candidate := strings.TrimSpace(raw)
	if strings.HasPrefix(candidate, "//") || strings.HasPrefix(candidate, `/\`) {
		return "", false
	}
	if strings.HasPrefix(candidate, "/") {
		return candidate, true
	}

	u, err := url.Parse(candidate)
	if err != nil || !u.IsAbs() {
		return "", false
	}
	origin, err := originOf(u)
	if err != nil {
		return "", false
	}
	if _, allowed := allowlist[origin]; !allowed {
		return "", false
	}
	return canonicalURL(u), true
}

func hasControlChars(s string) bool {
	for _, r := range s {
		if r <= 31 || r == 127 {
			return true
		}
	}
	return false
}

func canonicalURL(u *url.URL) string {
	c := *u
	c.Scheme = strings.ToLower(c.Scheme)
	c.Host = strings.ToLower(c.Host)
	if port := c.Port(); (c.Scheme == "http" && port == "80") || (c.Scheme == "https" && port == "443") {
		c.Host = strings.TrimSuffix(c.Host, ":"+port)
	}
	if c.Path == "" && c.Opaque == "" {
		c.Path = "/"
	}
	return c.String()
}
