package main

import (
	"strings"
	"testing"
)

func TestCheckCmd(t *testing.T) {
	t.Parallel()

	t.Run("proxy answering like Tor", func(t *testing.T) {
		t.Parallel()

		cfgPath, _ := writeConfig(t, "")
		addr := startSOCKSAnswerer(t)

		out, err := executeRoot(t, "check", "-c", cfgPath, "--proxy", addr)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, addr+": OK") {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("proxy down", func(t *testing.T) {
		t.Parallel()

		cfgPath, _ := writeConfig(t, "")
		addr := closedAddress(t)

		out, err := executeRoot(t, "check", "-c", cfgPath, "--proxy", addr)
		if err == nil || !strings.Contains(err.Error(), "tor proxy check failed") {
			t.Errorf("expected proxy check error, got %v", err)
		}
		if !strings.Contains(out, "cannot connect") {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("proxy address from config file", func(t *testing.T) {
		t.Parallel()

		addr := startSOCKSAnswerer(t)
		cfgPath, _ := writeConfig(t, "proxyAddress: "+addr+"\n")

		out, err := executeRoot(t, "check", "-c", cfgPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, addr) {
			t.Errorf("output = %q, want proxy %s", out, addr)
		}
	})
}
