// Package tor connects to destinations through the Tor network.
//
// Two connectors satisfy the same Connect(ctx, host, port) contract:
//
//   - ProxyConnector dials an existing Tor SOCKS5 port (127.0.0.1:9050 by
//     default) and asks it to connect to the destination by name, so no
//     local DNS lookup ever happens.
//   - NativeConnector owns a Session that launches an embedded Tor daemon
//     through tornago the first time a connection is needed. Concurrent
//     first callers share a single bootstrap attempt.
//
// Both connectors report failures as *route.ConnectError. They never retry
// and never fall back to another backend or to a direct connection; that
// decision belongs to the caller.
//
// The package also contains CheckProxy, a cheap SOCKS5 round trip used to verify
// that a proxy address really is a Tor SOCKS port, and helpers to validate
// v3 onion addresses.
package tor
