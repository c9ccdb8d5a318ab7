package route

import "strings"

// OnionSuffix is the reserved Tor pseudo-domain (RFC 7686).
// Names under it are only meaningful inside the Tor network and must never
// be resolved or connected to over the public internet.
const OnionSuffix = ".onion"

// Domain is the network a request is routed over.
type Domain int

const (
	// Clearnet is the ordinary internet, reached with a direct TCP dial.
	Clearnet Domain = iota
	// Overlay is the Tor network.
	Overlay
)

// String returns a short name for the domain.
func (d Domain) String() string {
	switch d {
	case Clearnet:
		return "clearnet"
	case Overlay:
		return "tor"
	default:
		return "unknown"
	}
}

// Classify returns Overlay when host is in the ".onion" namespace and
// Clearnet otherwise.
//
// The comparison is case-insensitive and ignores trailing root dots, so
// "ABC.ONION" and "abc.onion." are both Overlay. An empty host is Clearnet;
// callers that need to reject empty hosts use Request.Validate.
func Classify(host string) Domain {
	host = strings.TrimRight(host, ".")
	if len(host) < len(OnionSuffix) {
		return Clearnet
	}
	if strings.EqualFold(host[len(host)-len(OnionSuffix):], OnionSuffix) {
		return Overlay
	}
	return Clearnet
}

// IsOnion reports whether host is in the ".onion" namespace.
func IsOnion(host string) bool {
	return Classify(host) == Overlay
}
