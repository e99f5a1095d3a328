package classify

import (
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrNoise marks requests from crawlers and probes that should get a
	// silent 204 with no record of any kind.
	ErrNoise = errors.New("noise request")
	// ErrInvalidSlug marks paths that cannot be a link slug.
	ErrInvalidSlug = errors.New("invalid slug")
)

// noisePaths are exact paths that are never slugs.
var noisePaths = map[string]struct{}{
	"favicon.ico":                      {},
	"robots.txt":                       {},
	"sitemap.xml":                      {},
	"apple-touch-icon.png":             {},
	"apple-touch-icon-precomposed.png": {},
	"ads.txt":                          {},
	"humans.txt":                       {},
	"security.txt":                     {},
}

// noisePrefixes catch admin probes and well-known lookups.
var noisePrefixes = []string{
	".well-known/",
	"wp-admin",
	"wp-login",
	"wp-content",
	"wp-includes",
	"phpmyadmin",
	"cgi-bin/",
	"assets/",
	"static/",
	"_next/",
}

// noiseSuffixes catch static-asset and script-probe extensions.
var noiseSuffixes = []string{
	".php", ".asp", ".aspx", ".jsp", ".env",
	".js", ".css", ".map",
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico", ".webp",
	".woff", ".woff2", ".ttf",
}

// Request is a classified inbound visit: the lookup key plus the
// visitor signal the verdict engine works from.
type Request struct {
	Domain string
	Slug   string
	Query  string
	Signal Signal
}

// Classify parses an inbound request into a lookup key and visitor
// signal. It returns ErrNoise for crawler/probe paths (silent 204, no
// telemetry) and ErrInvalidSlug for paths that cannot name a link.
// An empty slug is valid and means the domain root.
func Classify(r *http.Request) (*Request, error) {
	path := strings.Trim(r.URL.Path, "/")

	if IsNoisePath(path) {
		return nil, ErrNoise
	}
	if path != "" && !validSlug(path) {
		return nil, ErrInvalidSlug
	}

	return &Request{
		Domain: hostOnly(r.Host),
		Slug:   path,
		Query:  r.URL.RawQuery,
		Signal: SignalFromRequest(r),
	}, nil
}

// IsNoisePath reports whether a request path is crawler or probe
// noise. Noise gets a silent 204 and must leave no trace anywhere,
// access logs included, so the logging layer consults this too.
func IsNoisePath(path string) bool {
	lower := strings.ToLower(strings.Trim(path, "/"))
	if _, ok := noisePaths[lower]; ok {
		return true
	}
	for _, prefix := range noisePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	for _, suffix := range noiseSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// validSlug accepts only [a-z0-9-]; dots are rejected outright so
// file-looking paths never hit the resolver.
func validSlug(slug string) bool {
	if slug == "" || strings.Contains(slug, ".") {
		return false
	}
	for _, c := range slug {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
			return false
		}
	}
	return true
}

// Host returns the normalized request host (lowercased, no port).
func Host(r *http.Request) string {
	return hostOnly(r.Host)
}

func hostOnly(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return strings.TrimSuffix(host, ".")
}
