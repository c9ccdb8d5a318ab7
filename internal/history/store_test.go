package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "nested", "history.db")
	s, err := Open(context.Background(), path, DefaultOptions())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database and parent directories", func(t *testing.T) {
		t.Parallel()

		s := openTestStore(t)
		if _, err := os.Stat(s.Path()); err != nil {
			t.Errorf("database file not created: %v", err)
		}
	})

	t.Run("missing database without create", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "missing.db")
		_, err := Open(context.Background(), path, Options{})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Open() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("reopen keeps entries", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "history.db")

		s, err := Open(ctx, path, DefaultOptions())
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if _, err := s.Record(ctx, Entry{URL: "http://example.com/", Host: "example.com", Domain: "clearnet", Backend: "direct", StatusCode: 200}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}

		s, err = Open(ctx, path, Options{})
		if err != nil {
			t.Fatalf("reopen error = %v", err)
		}
		defer s.Close()

		entries, err := s.Recent(ctx, 0)
		if err != nil {
			t.Fatalf("Recent() error = %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("len(entries) = %d, want 1", len(entries))
		}
	})
}

func TestStoreRecordAndRecent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	inputs := []Entry{
		{URL: "http://example.com/", Host: "example.com", Domain: "clearnet", Backend: "direct", StatusCode: 200, Duration: 120 * time.Millisecond, Timestamp: start},
		{URL: "http://duckduckgogg42xjoc72x3sjasowoarfbgcmvfimaftt6twagswzczad.onion/", Host: "duckduckgogg42xjoc72x3sjasowoarfbgcmvfimaftt6twagswzczad.onion", Domain: "tor", Backend: "socks5", StatusCode: 200, Duration: 3 * time.Second, Timestamp: start.Add(time.Minute)},
		{URL: "http://unreachable.onion/", Host: "unreachable.onion", Domain: "tor", Backend: "socks5", Error: "host unreachable", Duration: 10 * time.Second},
	}

	var lastID int64
	for _, e := range inputs {
		id, err := s.Record(ctx, e)
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		if id <= lastID {
			t.Errorf("Record() id = %d, want > %d", id, lastID)
		}
		lastID = id
	}

	tests := []struct {
		name string
		n    int
		want int
	}{
		{name: "all", n: 0, want: 3},
		{name: "negative means all", n: -1, want: 3},
		{name: "limited", n: 2, want: 2},
		{name: "more than stored", n: 10, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			entries, err := s.Recent(ctx, tt.n)
			if err != nil {
				t.Fatalf("Recent() error = %v", err)
			}
			if len(entries) != tt.want {
				t.Fatalf("len(entries) = %d, want %d", len(entries), tt.want)
			}
			if entries[0].ID != lastID {
				t.Errorf("first entry ID = %d, want newest %d", entries[0].ID, lastID)
			}
		})
	}

	t.Run("round trip of fields", func(t *testing.T) {
		t.Parallel()

		entries, err := s.Recent(ctx, 0)
		if err != nil {
			t.Fatalf("Recent() error = %v", err)
		}
		got := entries[1]
		want := inputs[1]
		if got.URL != want.URL || got.Host != want.Host || got.Domain != want.Domain || got.Backend != want.Backend {
			t.Errorf("entry = %+v, want %+v", got, want)
		}
		if got.StatusCode != want.StatusCode {
			t.Errorf("StatusCode = %d, want %d", got.StatusCode, want.StatusCode)
		}
		if got.Duration != want.Duration {
			t.Errorf("Duration = %v, want %v", got.Duration, want.Duration)
		}
		if !got.Timestamp.Equal(want.Timestamp) {
			t.Errorf("Timestamp = %v, want %v", got.Timestamp, want.Timestamp)
		}
		if !got.Succeeded() {
			t.Error("Succeeded() = false, want true")
		}

		failed := entries[0]
		if failed.Succeeded() {
			t.Error("failed entry Succeeded() = true")
		}
		if failed.Timestamp.IsZero() {
			t.Error("zero Timestamp was not set on Record")
		}
	})
}

func TestStoreDomainCounts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)

	counts, err := s.DomainCounts(ctx)
	if err != nil {
		t.Fatalf("DomainCounts() error = %v", err)
	}
	if len(counts) != 0 {
		t.Errorf("counts on empty store = %v, want empty", counts)
	}

	for _, domain := range []string{"tor", "clearnet", "tor", "tor"} {
		if _, err := s.Record(ctx, Entry{URL: "http://x/", Host: "x", Domain: domain, Backend: "direct"}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	counts, err = s.DomainCounts(ctx)
	if err != nil {
		t.Fatalf("DomainCounts() error = %v", err)
	}
	if counts["tor"] != 3 || counts["clearnet"] != 1 {
		t.Errorf("counts = %v, want tor=3 clearnet=1", counts)
	}
}

func TestEntrySucceeded(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		entry Entry
		want  bool
	}{
		{name: "response", entry: Entry{StatusCode: 404}, want: true},
		{name: "error", entry: Entry{Error: "refused"}, want: false},
		{name: "no response", entry: Entry{}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.entry.Succeeded(); got != tt.want {
				t.Errorf("Succeeded() = %v, want %v", got, tt.want)
			}
		})
	}
}
