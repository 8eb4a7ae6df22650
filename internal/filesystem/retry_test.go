package filesystem

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

// withStat replaces the stat function for the duration of a test.
func withStat(t *testing.T, fn func(string) (os.FileInfo, error)) {
	t.Helper()
	orig := osStat
	osStat = fn
	t.Cleanup(func() { osStat = orig })
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "ESTALE error",
			err:  syscall.ESTALE,
			want: true,
		},
		{
			name: "wrapped ESTALE",
			err:  &os.PathError{Op: "stat", Path: "/x", Err: syscall.ESTALE},
			want: true,
		},
		{
			name: "ENOENT error",
			err:  syscall.ENOENT,
			want: false,
		},
		{
			name: "generic error",
			err:  os.ErrNotExist,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isNFSStaleError(tt.err)
			if got != tt.want {
				t.Errorf("isNFSStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatWithRetry_Success(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thumb")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	info, err := StatWithRetry(path, fastRetryConfig())
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("Size() = %d, want 4", info.Size())
	}
}

func TestStatWithRetry_NotExistDoesNotRetry(t *testing.T) {
	calls := 0
	withStat(t, func(p string) (os.FileInfo, error) {
		calls++
		return os.Stat(p)
	})

	_, err := StatWithRetry(filepath.Join(t.TempDir(), "missing"), fastRetryConfig())
	if !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("stat called %d times, want 1", calls)
	}
}

func TestStatWithRetry_RecoversFromStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thumb")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	calls := 0
	withStat(t, func(p string) (os.FileInfo, error) {
		calls++
		if calls < 3 {
			return nil, &os.PathError{Op: "stat", Path: p, Err: syscall.ESTALE}
		}
		return os.Stat(p)
	})

	if _, err := StatWithRetry(path, fastRetryConfig()); err != nil {
		t.Fatalf("StatWithRetry() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("stat called %d times, want 3", calls)
	}
}

func TestStatWithRetry_GivesUp(t *testing.T) {
	calls := 0
	withStat(t, func(p string) (os.FileInfo, error) {
		calls++
		return nil, &os.PathError{Op: "stat", Path: p, Err: syscall.ESTALE}
	})

	config := fastRetryConfig()
	_, err := StatWithRetry("/stale", config)
	if !isNFSStaleError(err) {
		t.Errorf("expected ESTALE, got %v", err)
	}
	if calls != config.MaxRetries+1 {
		t.Errorf("stat called %d times, want %d", calls, config.MaxRetries+1)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "thumb")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		want    bool
		wantErr bool
	}{
		{name: "existing file", path: file, want: true},
		{name: "missing file", path: filepath.Join(dir, "missing"), want: false},
		{name: "directory", path: dir, want: false, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Exists(tt.path, fastRetryConfig())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Exists() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Exists() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryConfig_ExponentialBackoff(t *testing.T) {
	withStat(t, func(p string) (os.FileInfo, error) {
		return nil, syscall.ESTALE
	})

	config := RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     8 * time.Millisecond,
	}

	start := time.Now()
	_, _ = StatWithRetry("/stale", config)
	elapsed := time.Since(start)

	// 5ms + 8ms + 8ms with the cap applied
	if elapsed < 21*time.Millisecond {
		t.Errorf("elapsed %v, expected at least 21ms of backoff", elapsed)
	}
}

func TestOpenWithRetry_RecoversFromStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thumb")
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	calls := 0
	orig := osOpen
	osOpen = func(p string) (*os.File, error) {
		calls++
		if calls == 1 {
			return nil, &os.PathError{Op: "open", Path: p, Err: syscall.ESTALE}
		}
		return os.Open(p)
	}
	t.Cleanup(func() { osOpen = orig })

	f, err := OpenWithRetry(path, fastRetryConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	defer f.Close()

	if calls != 2 {
		t.Errorf("open called %d times, want 2", calls)
	}
}

func TestOpenWithRetry_NotExist(t *testing.T) {
	_, err := OpenWithRetry(filepath.Join(t.TempDir(), "missing"), fastRetryConfig())
	if !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
