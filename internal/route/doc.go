// Package route models outbound connection requests and decides which
// network a request travels over.
//
// A Request carries the destination host, an optional port and the URI
// scheme. Classify maps a hostname to a routing Domain: hosts under the
// Tor private ".onion" namespace belong to the Overlay domain, everything
// else to Clearnet. Classification is total and has no side effects, so it
// can be called from any goroutine.
//
// The package also defines ConnectError, the single error value returned
// by every connector in this module regardless of which backend failed.
package route
