// Package stream provides Stream, a duplex byte stream that hides whether a
// connection was made directly or through Tor.
//
// A Stream is a tagged union with one case per routing domain. The case is
// fixed when the connection is established and every I/O operation is
// forwarded to the transport of that case without buffering, so partial
// reads and writes, deadlines and error values behave exactly as they do on
// the underlying connection.
package stream
