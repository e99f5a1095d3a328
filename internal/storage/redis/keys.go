package redis

import (
	"fmt"
	"time"
)

// Key schema shared with the management layer. Changing any of these
// breaks explicit invalidation from the backoffice.
const (
	BlacklistTTL = 24 * time.Hour
	// RayDedupTTL bounds the technical-retry window: the edge may
	// replay a request with the same ray id for up to two minutes.
	RayDedupTTL = 120 * time.Second
	// IPDedupTTL suppresses rapid double-clicks from one visitor.
	IPDedupTTL = time.Second
)

func BlacklistKey(ip string) string {
	return fmt.Sprintf("blacklist:%s", ip)
}

func RayDedupKey(ray, slug string) string {
	return fmt.Sprintf("log:%s:%s", ray, slug)
}

func IPDedupKey(ip, slug string) string {
	return fmt.Sprintf("ip_limit:%s:%s", ip, slug)
}
