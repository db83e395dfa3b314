package util

import (
	"net/url"
	"strings"
)

// ApiBase normalizes a node base url to its canonical host form:
// trimmed, no trailing slash noise, always ending in "/api/".
// "http://node/" and "http://node/api" both become "http://node/api/".
func ApiBase(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return ""
	}
	if strings.HasSuffix(base, "/api") {
		return base + "/"
	}
	return base + "/api/"
}

// SiteBase strips a trailing "/api" from a host, giving the bare
// scheme://netloc[/prefix] form used for web (non-api) links.
func SiteBase(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	return strings.TrimSuffix(host, "/api")
}

// NetlocBase returns scheme://netloc of raw, without any path.
func NetlocBase(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// SameNetloc reports whether two urls point at the same network location,
// ignoring paths ("/api" vs "/") and trailing slashes.
func SameNetloc(a, b string) bool {
	ua, errA := url.Parse(strings.TrimSpace(a))
	ub, errB := url.Parse(strings.TrimSpace(b))
	if errA != nil || errB != nil {
		return false
	}
	return ua.Host != "" && ua.Host == ub.Host
}

// LastPathSegment returns the final non-empty path segment of a url or path.
func LastPathSegment(raw string) string {
	s := strings.TrimRight(strings.TrimSpace(raw), "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// SegmentAfter returns the path segment directly following marker in the
// url's path, e.g. SegmentAfter(".../authors/<id>/entries/...", "authors")
// yields "<id>".
func SegmentAfter(raw, marker string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	path := u.Path
	if path == "" {
		path = raw
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		if p == marker && i+1 < len(parts) {
			return parts[i+1], true
		}
	}
	return "", false
}
