package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeProvider struct {
	stats []CacheStats
	err   error
	calls int
}

func (f *fakeProvider) CacheStats() ([]CacheStats, error) {
	f.calls++
	return f.stats, f.err
}

func TestNewCollector(t *testing.T) {
	provider := &fakeProvider{}
	c := NewCollector(provider, time.Minute)

	if c.statsProvider != provider {
		t.Error("statsProvider not set")
	}
	if c.interval != time.Minute {
		t.Errorf("interval = %v, want %v", c.interval, time.Minute)
	}
	if c.stopChan == nil {
		t.Error("stopChan not initialized")
	}
}

func TestCollectWithNilProvider(_ *testing.T) {
	c := NewCollector(nil, time.Minute)
	// Should not panic
	c.collect()
}

func TestCollectSetsGauges(t *testing.T) {
	provider := &fakeProvider{stats: []CacheStats{
		{Size: "48", Bytes: 1024, Count: 3},
		{Size: "96", Bytes: 4096, Count: 5},
	}}
	c := NewCollector(provider, time.Minute)
	c.collect()

	if got := testutil.ToFloat64(ThumbnailCacheSize.WithLabelValues("48")); got != 1024 {
		t.Errorf("cache size for 48 = %v, want 1024", got)
	}
	if got := testutil.ToFloat64(ThumbnailCacheCount.WithLabelValues("96")); got != 5 {
		t.Errorf("cache count for 96 = %v, want 5", got)
	}
}

func TestCollectProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("boom")}
	c := NewCollector(provider, time.Minute)
	c.collect()

	if provider.calls != 1 {
		t.Errorf("provider called %d times, want 1", provider.calls)
	}
}

func TestCollectorStartStop(t *testing.T) {
	provider := &fakeProvider{}
	c := NewCollector(provider, 10*time.Millisecond)
	c.Start()
	time.Sleep(35 * time.Millisecond)
	c.Stop()

	if provider.calls == 0 {
		t.Error("expected at least one collection")
	}
}

func TestDirStatsProvider(t *testing.T) {
	root := t.TempDir()

	mustWrite := func(rel string, n int) {
		t.Helper()
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, make([]byte, n), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	mustWrite("48/aaa", 10)
	mustWrite("48/bbb", 20)
	mustWrite("192/ccc", 5)
	mustWrite("stray-file", 100)

	stats, err := DirStatsProvider{Root: root}.CacheStats()
	if err != nil {
		t.Fatalf("CacheStats() error: %v", err)
	}

	bySize := make(map[string]CacheStats)
	for _, s := range stats {
		bySize[s.Size] = s
	}

	if len(bySize) != 2 {
		t.Fatalf("expected 2 size buckets, got %d: %+v", len(bySize), stats)
	}
	if bySize["48"].Bytes != 30 || bySize["48"].Count != 2 {
		t.Errorf("bucket 48 = %+v, want 30 bytes / 2 files", bySize["48"])
	}
	if bySize["192"].Bytes != 5 || bySize["192"].Count != 1 {
		t.Errorf("bucket 192 = %+v, want 5 bytes / 1 file", bySize["192"])
	}
}

func TestDirStatsProviderMissingRoot(t *testing.T) {
	_, err := DirStatsProvider{Root: filepath.Join(t.TempDir(), "missing")}.CacheStats()
	if err == nil {
		t.Error("expected error for missing root")
	}
}
