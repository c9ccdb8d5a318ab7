package main

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
)

// ddgOnion is DuckDuckGo's v3 onion service.
const ddgOnion = "duckduckgogg42xjoc72x3sjasowoarfbgcmvfimaftt6twagswzczad.onion"

// writeConfig writes a configuration file whose history lives in its own
// temporary directory, followed by extra YAML lines.
func writeConfig(t *testing.T, extra string) (path, dbDir string) {
	t.Helper()

	dir := t.TempDir()
	dbDir = filepath.Join(dir, "data")
	path = filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("dbDir: %q\n%s", dbDir, extra)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path, dbDir
}

// executeRoot runs the root command with args and returns stdout.
func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

// closedAddress returns a loopback address nothing listens on.
func closedAddress(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatalf("failed to close listener: %v", err)
	}
	return addr
}

// startSOCKSAnswerer starts a server that answers one SOCKS5 greeting and
// CONNECT the way Tor answers a request for an unknown onion service.
func startSOCKSAnswerer(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				greeting := make([]byte, 3)
				if _, err := io.ReadFull(conn, greeting); err != nil {
					return
				}
				if _, err := conn.Write([]byte{0x05, 0x00}); err != nil {
					return
				}
				header := make([]byte, 5)
				if _, err := io.ReadFull(conn, header); err != nil {
					return
				}
				rest := make([]byte, int(header[4])+2)
				if _, err := io.ReadFull(conn, rest); err != nil {
					return
				}
				// Host unreachable, bound to 0.0.0.0:0.
				_, _ = conn.Write([]byte{0x05, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
			}()
		}
	}()
	return ln.Addr().String()
}
