package tpdb

import "strings"

// ResolveURL turns a link found on the site into an absolute URL.
// Absolute http(s) hrefs pass through and root-relative hrefs are joined
// to base. Anything else returns ok=false and must be dropped.
func ResolveURL(base, href string) (string, bool) {
	href = strings.TrimSpace(href)
	switch {
	case strings.HasPrefix(href, "http"):
		return href, true
	case strings.HasPrefix(href, "/"):
		return strings.TrimRight(base, "/") + href, true
	default:
		return "", false
	}
}
