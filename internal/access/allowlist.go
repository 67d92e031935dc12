// Package access decides which browser origins may call the gateway.
package access

import (
	"strings"

	"portfolio-api-go/internal/config"
)

// AllowList is an ordered, immutable set of trusted origins (scheme://host[:port]).
type AllowList struct {
	origins []string
	set     map[string]struct{}
}

// New builds an AllowList from the given origins. Empty and repeated entries are dropped.
func New(origins ...string) *AllowList {
	a := &AllowList{set: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		if o == "" {
			continue
		}
		if _, ok := a.set[o]; ok {
			continue
		}
		a.set[o] = struct{}{}
		a.origins = append(a.origins, o)
	}
	return a
}

// FromConfig builds the production AllowList: the configured site origin, the
// local development origin on the listening port, then any extra origins.
func FromConfig(cfg *config.Config) *AllowList {
	origins := []string{cfg.Access.Origin, cfg.Server.LocalOrigin()}
	origins = append(origins, cfg.Access.ExtraOrigins...)
	return New(origins...)
}

// Origins returns a copy of the trusted origins in order.
func (a *AllowList) Origins() []string {
	out := make([]string, len(a.origins))
	copy(out, a.origins)
	return out
}

// Contains reports whether origin exactly matches a trusted origin.
func (a *AllowList) Contains(origin string) bool {
	_, ok := a.set[origin]
	return ok
}

// MatchesReferer reports whether referer starts with a trusted origin.
func (a *AllowList) MatchesReferer(referer string) bool {
	if referer == "" {
		return false
	}
	for _, o := range a.origins {
		if strings.HasPrefix(referer, o) {
			return true
		}
	}
	return false
}

// Allowed applies the guard rule. A request passes when its Origin is absent
// or trusted, or when its Referer begins with a trusted origin. A request with
// neither header passes.
func (a *AllowList) Allowed(origin, referer string) bool {
	if origin == "" || a.Contains(origin) {
		return true
	}
	return a.MatchesReferer(referer)
}
