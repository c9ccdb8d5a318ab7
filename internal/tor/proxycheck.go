package tor

import (
	"context"
	"errors"
	"io"
	"net"
	"time"
)

// checkTimeout bounds the whole proxy check. It is only a liveness check,
// so it is much shorter than a real connection through Tor.
const checkTimeout = 2 * time.Second

// SOCKS5 protocol constants used by CheckProxy.
const (
	socks5Version       = 0x05
	socks5AuthNone      = 0x00
	socks5CmdConnect    = 0x01
	socks5AddrTypeDomID = 0x03

	// checkOnion is a syntactically valid but non-existent onion address.
	// CheckProxy only needs the proxy to answer a CONNECT for it.
	checkOnion = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.onion"
	checkPort  = 80
)

// CheckProxy verifies that proxyAddress is a Tor SOCKS5 proxy.
//
// It performs the SOCKS5 greeting offering only "no authentication" and
// then sends a CONNECT for a non-existent onion address. Any well-formed
// SOCKS5 reply counts as success: Tor answers such a request with a
// failure code, which is expected.
func CheckProxy(ctx context.Context, proxyAddress string) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", proxyAddress)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return ProxyStatusCannotConnect
	}

	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	greeting := make([]byte, 2)
	if _, err := io.ReadFull(conn, greeting); err != nil {
		return readFailureStatus(err)
	}
	if greeting[0] != socks5Version || greeting[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}

	req := make([]byte, 0, 7+len(checkOnion))
	req = append(req, socks5Version, socks5CmdConnect, 0x00, socks5AddrTypeDomID, byte(len(checkOnion)))
	req = append(req, checkOnion...)
	req = append(req, byte(checkPort>>8), byte(checkPort&0xFF))
	if _, err := conn.Write(req); err != nil {
		return ProxyStatusCannotConnect
	}

	// version, reply, reserved, address type
	reply := make([]byte, 4)
	if _, err := io.ReadFull(conn, reply); err != nil {
		return readFailureStatus(err)
	}
	if reply[0] != socks5Version {
		return ProxyStatusWrongType
	}

	return ProxyStatusOK
}

// readFailureStatus maps a failed read during the check to a status.
// A peer that closes or answers short did not speak SOCKS5.
func readFailureStatus(err error) ProxyStatus {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ProxyStatusTimeout
	}
	return ProxyStatusWrongType
}
