package tor

import (
	"testing"
	"time"
)

func TestNewEmbeddedTor(t *testing.T) {
	t.Parallel()

	t.Run("creates with default timeout", func(t *testing.T) {
		t.Parallel()

		embedded := NewEmbeddedTor()
		if embedded.StartupTimeout() != DefaultStartupTimeout {
			t.Errorf("expected default timeout %v, got %v", DefaultStartupTimeout, embedded.StartupTimeout())
		}
	})

	t.Run("applies WithStartupTimeout", func(t *testing.T) {
		t.Parallel()

		embedded := NewEmbeddedTor(WithStartupTimeout(5 * time.Minute))
		if embedded.StartupTimeout() != 5*time.Minute {
			t.Errorf("expected timeout 5m, got %v", embedded.StartupTimeout())
		}
	})

	t.Run("satisfies Bootstrapper", func(t *testing.T) {
		t.Parallel()

		var b Bootstrapper = NewEmbeddedTor()
		if b == nil {
			t.Fatal("expected non-nil Bootstrapper")
		}
	})
}
