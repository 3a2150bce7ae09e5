// Package geo resolves client IP addresses to coarse country codes for
// the unusual-location heuristic. Resolution is best effort: any failure
// yields an empty country and the heuristic simply does not fire.
package geo

import (
	"net"
	"strings"
	"time"

	"github.com/oschwald/geoip2-golang"
	gocache "github.com/patrickmn/go-cache"
)

// Resolver looks up countries in a local GeoLite2 database with an
// in-memory cache in front.
type Resolver struct {
	db    *geoip2.Reader
	cache *gocache.Cache
}

// NewResolver opens the GeoLite2 database at dbPath. An empty path
// returns a disabled resolver whose lookups always come back empty.
func NewResolver(dbPath string) (*Resolver, error) {
	r := &Resolver{
		cache: gocache.New(24*time.Hour, 1*time.Hour),
	}

	if dbPath == "" {
		return r, nil
	}

	db, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, err
	}
	r.db = db

	return r, nil
}

// Close releases the database handle.
func (r *Resolver) Close() {
	if r.db != nil {
		_ = r.db.Close()
	}
}

// Country returns the ISO country code for an IP, or "" when the lookup
// is unavailable (private range, disabled resolver, parse failure).
func (r *Resolver) Country(ip string) string {
	if ip == "" || isPrivate(ip) {
		return ""
	}

	if v, ok := r.cache.Get(ip); ok {
		return v.(string)
	}

	if r.db == nil {
		return ""
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}

	rec, err := r.db.Country(parsed)
	if err != nil {
		return ""
	}

	code := rec.Country.IsoCode
	r.cache.Set(ip, code, gocache.DefaultExpiration)
	return code
}

func isPrivate(ip string) bool {
	if ip == "127.0.0.1" || ip == "::1" {
		return true
	}
	if parsed := net.ParseIP(ip); parsed != nil {
		return parsed.IsPrivate() || parsed.IsLoopback() || parsed.IsLinkLocalUnicast()
	}
	return strings.HasPrefix(ip, "10.") || strings.HasPrefix(ip, "192.168.")
}
