package cache

import (
	"net/url"
	"sort"
	"strings"
)

// keyPrefix namespaces every entry this gateway writes to Redis.
const keyPrefix = "rezervacije"

// CacheKey identifies a cached upstream reply.
type CacheKey struct {
	// Endpoint is the upstream path relative to the base URL,
	// e.g. "sets/rezervacije_fri/types/classroom/reservables/".
	Endpoint string

	// QueryParams forwarded upstream. format=json is implied and ignored.
	QueryParams url.Values
}

// String generates a deterministic key.
// Format: rezervacije:endpoint:query1=val1,val2:query2=val
//
// Example:
//
//	rezervacije:reservables/12
func (k CacheKey) String() string {
	parts := []string{keyPrefix}

	if endpoint := strings.Trim(k.Endpoint, "/"); endpoint != "" {
		parts = append(parts, endpoint)
	}

	keys := make([]string, 0, len(k.QueryParams))
	for key := range k.QueryParams {
		if key == "format" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		parts = append(parts, key+"="+strings.Join(k.QueryParams[key], ","))
	}

	return strings.Join(parts, ":")
}
