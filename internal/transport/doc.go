// Package transport decides, per outbound connection, whether traffic goes
// through Tor or directly to the destination, and hands the caller a single
// stream type either way.
//
// A Service is built in one of three modes. ClearnetOnly and OverlayOnly
// send everything to one connector. Hybrid looks at the destination host:
// names ending in ".onion" go to the overlay connector, everything else to
// the clearnet connector. A request classified as overlay is never sent to
// the clearnet connector, even when the overlay connection fails.
//
// Service.DialContext plugs the service into net/http, and NewHTTPClient
// builds a ready-to-use client on top of it.
package transport
