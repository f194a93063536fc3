package config

import (
	"strings"
	"time"
)

// CacheConfig controls the Redis response cache middleware.  Only the
// read-mostly catalog endpoints (counters, menus) are cached; order and
// ready-to-eat listings change too fast to be worth it.
//
// Fields:
//
//	Enabled      – master switch; also off when no Redis is reachable.
//	Methods      – HTTP methods eligible for caching, upper-cased.
//	TTL          – lifetime of a cached response.
//	KeyStrategy  – which request parts form the key (see middleware).
//	Prefix       – key namespace in Redis.
//	MaxBodyBytes – responses larger than this are not cached.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig builds a CacheConfig from the environment, with
// defaults suited to a small catalog that changes a few times a day.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      parseMethods(envStr("CACHE_METHODS", "GET")),
		TTL:          envDur("CACHE_TTL", 60*time.Second),
		KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       envStr("CACHE_PREFIX", "canteen:cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}

func envDur(k string, d time.Duration) time.Duration {
	v := envStr(k, "")
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
