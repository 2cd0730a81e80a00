// Package identity models the caller identity used to scope rate-limit and
// quota state. Authentication itself is external: an authenticated user ID
// arrives pre-resolved on the request, and unauthenticated callers fall back
// to their network origin address.
package identity

import (
	"net"
	"net/http"
	"strings"
)

// Kind discriminates the identity variants.
type Kind string

// Identity kinds.
const (
	KindUser    Kind = "user"
	KindIP      Kind = "ip"
	KindUnknown Kind = "unknown"
)

// Caller is a tagged identity: an authenticated user, a network origin
// address, or unknown. All counter keys are derived from it via Key().
type Caller struct {
	Kind Kind
	ID   string
}

// User returns an authenticated-user identity.
func User(id string) Caller {
	return Caller{Kind: KindUser, ID: id}
}

// IP returns a network-origin identity.
func IP(addr string) Caller {
	return Caller{Kind: KindIP, ID: addr}
}

// Unknown returns an unresolvable identity. Requests carrying it are
// rejected before any admission state is touched.
func Unknown() Caller {
	return Caller{Kind: KindUnknown}
}

// Resolvable reports whether the identity can key admission state.
func (c Caller) Resolvable() bool {
	return c.Kind != KindUnknown && c.ID != ""
}

// Key returns the stable counter-key fragment for this identity.
// Distinct identities never share a key.
func (c Caller) Key() string {
	return string(c.Kind) + ":" + c.ID
}

func (c Caller) String() string {
	if c.Kind == KindUnknown {
		return "unknown"
	}
	return c.Key()
}

// UserIDHeader carries the authenticated user ID, set by the identity
// layer in front of this service. An empty value means unauthenticated.
const UserIDHeader = "X-Capgate-User"

// FromRequest resolves the caller identity for an HTTP request.
// Authenticated requests carry UserIDHeader; otherwise the client address
// is taken from X-Forwarded-For, X-Real-IP, or the socket peer, in that
// order. Returns Unknown when no address can be determined.
func FromRequest(r *http.Request) Caller {
	if userID := strings.TrimSpace(r.Header.Get(UserIDHeader)); userID != "" {
		return User(userID)
	}

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// First hop is the original client.
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return IP(first)
		}
	}

	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return IP(real)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return IP(host)
	}
	if r.RemoteAddr != "" {
		return IP(r.RemoteAddr)
	}

	return Unknown()
}
