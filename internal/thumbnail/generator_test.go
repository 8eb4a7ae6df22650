package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"seafile-thumbnail/internal/seafile"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRepoID = "4b8ff7a0-5b2d-4d5f-9d5a-6a6e3f0b9c11"

type tokenRequest struct {
	fileID  string
	op      string
	oneTime bool
}

// fakeStore serves files from memory. URLs are "mem://<fileID>/<name>".
type fakeStore struct {
	mu sync.Mutex

	repo    *seafile.Repo
	files   map[string]string // path -> fileID
	content map[string][]byte // fileID -> bytes
	sizes   map[string]int64  // overrides len(content)

	fileIDErr error
	repoErr   error
	tokenErr  error
	noToken   bool

	tokens []tokenRequest
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		repo:    &seafile.Repo{ID: testRepoID, Name: "Photos", Version: 1},
		files:   map[string]string{},
		content: map[string][]byte{},
		sizes:   map[string]int64{},
	}
}

func (s *fakeStore) add(filePath, fileID string, data []byte) {
	s.files[filePath] = fileID
	s.content[fileID] = data
}

func (s *fakeStore) FileID(_ context.Context, repoID, filePath string) (string, error) {
	if s.fileIDErr != nil {
		return "", s.fileIDErr
	}
	if repoID != testRepoID {
		return "", seafile.ErrNotFound
	}
	id, ok := s.files[filePath]
	if !ok {
		return "", seafile.ErrNotFound
	}
	return id, nil
}

func (s *fakeStore) Repo(_ context.Context, repoID string) (*seafile.Repo, error) {
	if s.repoErr != nil {
		return nil, s.repoErr
	}
	return s.repo, nil
}

func (s *fakeStore) FileSize(_ context.Context, _ *seafile.Repo, fileID string) (int64, error) {
	if size, ok := s.sizes[fileID]; ok {
		return size, nil
	}
	return int64(len(s.content[fileID])), nil
}

func (s *fakeStore) AccessToken(_ context.Context, _, fileID, op string, oneTime bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens = append(s.tokens, tokenRequest{fileID: fileID, op: op, oneTime: oneTime})
	if s.tokenErr != nil {
		return "", s.tokenErr
	}
	if s.noToken {
		return "", nil
	}
	return fileID, nil
}

func (s *fakeStore) FileURL(_ context.Context, token, filename string) (string, error) {
	return "mem://" + token + "/" + filename, nil
}

// fakeFetcher reads mem:// URLs from the store and counts fetches.
type fakeFetcher struct {
	store *fakeStore
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (io.ReadCloser, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	for id, data := range f.store.content {
		if strings.HasPrefix(url, "mem://"+id+"/") {
			return io.NopCloser(bytes.NewReader(data)), nil
		}
	}
	return nil, seafile.ErrNotFound
}

type fakeExtractor struct {
	frame []byte
	err   error
	calls int
	src   string
}

func (e *fakeExtractor) ExtractFrame(_ context.Context, source, dst string, _ time.Duration) error {
	e.calls++
	e.src = source
	if e.err != nil {
		return e.err
	}
	return os.WriteFile(dst, e.frame, 0644)
}

func jpegBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.RGBA{200, 100, 50, 255}}, image.Point{}, draw.Src)

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

type harness struct {
	gen       *Generator
	store     *fakeStore
	fetcher   *fakeFetcher
	extractor *fakeExtractor
	root      string
	tempDir   string
}

func newHarness(t *testing.T, modify func(*Options)) *harness {
	t.Helper()

	store := newFakeStore()
	fetcher := &fakeFetcher{store: store}
	extractor := &fakeExtractor{frame: jpegBytes(t, 640, 360)}

	opts := Options{
		Root:                filepath.Join(t.TempDir(), "thumbnails"),
		Extension:           "png",
		ImageSizeLimitMB:    30,
		OriginalSizeLimitMB: 256,
		VideoFrameTime:      5 * time.Second,
		TempDir:             t.TempDir(),
	}
	if modify != nil {
		modify(&opts)
	}

	gen, err := New(opts, Deps{Store: store, Fetcher: fetcher, Extractor: extractor})
	require.NoError(t, err)

	return &harness{
		gen:       gen,
		store:     store,
		fetcher:   fetcher,
		extractor: extractor,
		root:      opts.Root,
		tempDir:   opts.TempDir,
	}
}

func (h *harness) generate(path, size, watermark string) (bool, int) {
	return h.gen.Generate(context.Background(), Request{RepoID: testRepoID, Path: path, Size: size, Watermark: watermark})
}

func dimensions(t *testing.T, path string) (int, int) {
	t.Helper()

	img, err := imaging.Open(path)
	require.NoError(t, err)
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestNewValidation(t *testing.T) {
	store := newFakeStore()

	_, err := New(Options{Root: "/tmp"}, Deps{Fetcher: &fakeFetcher{store: store}})
	assert.Error(t, err)

	_, err = New(Options{Root: "/tmp"}, Deps{Store: store})
	assert.Error(t, err)

	_, err = New(Options{}, Deps{Store: store, Fetcher: &fakeFetcher{store: store}})
	assert.Error(t, err)
}

func TestGenerateImageThenCacheHit(t *testing.T) {
	h := newHarness(t, nil)
	h.store.add("/photos/cat.jpg", "f1", jpegBytes(t, 800, 600))

	ok, status := h.generate("/photos/cat.jpg", "48", "")
	require.True(t, ok)
	require.Equal(t, http.StatusOK, status)

	dst := filepath.Join(h.root, "48", "f1")
	w, hgt := dimensions(t, dst)
	assert.Equal(t, 48, w)
	assert.Equal(t, 36, hgt)
	assert.Equal(t, 1, h.fetcher.calls)

	ok, status = h.generate("/photos/cat.jpg", "48", "")
	assert.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, h.fetcher.calls, "cache hit must not fetch again")

	require.Len(t, h.store.tokens, 1)
	assert.Equal(t, tokenRequest{fileID: "f1", op: seafile.OpView, oneTime: true}, h.store.tokens[0])
}

func TestGenerateInvalidSize(t *testing.T) {
	for _, size := range []string{"abc", "", "0", "-5", "1.5"} {
		t.Run(size, func(t *testing.T) {
			h := newHarness(t, nil)
			h.store.add("/a.jpg", "f1", jpegBytes(t, 10, 10))

			ok, status := h.generate("/a.jpg", size, "")
			assert.False(t, ok)
			assert.Equal(t, http.StatusBadRequest, status)

			_, err := os.Stat(h.root)
			assert.True(t, os.IsNotExist(err), "cache root must not be created for a bad size")
			assert.Zero(t, h.fetcher.calls)
		})
	}
}

func TestGenerateSizeNotAllowed(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.AllowedSizes = []int{48, 256} })
	h.store.add("/a.jpg", "f1", jpegBytes(t, 10, 10))

	ok, status := h.generate("/a.jpg", "100", "")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, status)

	ok, status = h.generate("/a.jpg", "256", "")
	assert.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
}

func TestGenerateFileNotFound(t *testing.T) {
	h := newHarness(t, nil)

	ok, status := h.generate("/missing.jpg", "48", "")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, status)

	// The size directory is still created before the lookup.
	info, err := os.Stat(filepath.Join(h.root, "48"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestGenerateStoreErrors(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*fakeStore)
		status int
	}{
		{"file id backend error", func(s *fakeStore) { s.fileIDErr = errors.New("rpc down") }, http.StatusInternalServerError},
		{"empty file id", func(s *fakeStore) { s.files["/a.jpg"] = "" }, http.StatusBadRequest},
		{"repo missing", func(s *fakeStore) { s.repoErr = seafile.ErrNotFound }, http.StatusBadRequest},
		{"repo backend error", func(s *fakeStore) { s.repoErr = errors.New("rpc down") }, http.StatusInternalServerError},
		{"encrypted repo", func(s *fakeStore) { s.repo.Encrypted = true }, http.StatusBadRequest},
		{"token error", func(s *fakeStore) { s.tokenErr = errors.New("rpc down") }, http.StatusInternalServerError},
		{"empty token", func(s *fakeStore) { s.noToken = true }, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.store.add("/a.jpg", "f1", jpegBytes(t, 10, 10))
			tt.setup(h.store)

			ok, status := h.generate("/a.jpg", "48", "")
			assert.False(t, ok)
			assert.Equal(t, tt.status, status)
			assert.NoFileExists(t, filepath.Join(h.root, "48", "f1"))
		})
	}
}

func TestGenerateFetchError(t *testing.T) {
	h := newHarness(t, nil)
	h.store.add("/a.jpg", "f1", jpegBytes(t, 10, 10))
	h.fetcher.err = errors.New("connection reset")

	ok, status := h.generate("/a.jpg", "48", "")
	assert.False(t, ok)
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestGenerateRawSizeLimit(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.ImageSizeLimitMB = 1 })
	h.store.add("/big.jpg", "f1", jpegBytes(t, 10, 10))
	h.store.sizes["f1"] = 1024*1024 + 1

	ok, status := h.generate("/big.jpg", "48", "")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Zero(t, h.fetcher.calls, "oversized files must not be fetched")
	assert.Empty(t, h.store.tokens)
}

func TestGenerateRawSizeLimitWhenSizeUnderreported(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.ImageSizeLimitMB = 1 })
	h.store.add("/big.jpg", "f1", make([]byte, 1024*1024+10))
	h.store.sizes["f1"] = 10

	ok, status := h.generate("/big.jpg", "48", "")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGenerateDecodedMemoryLimit(t *testing.T) {
	// 1024x1024 RGBA is 4MB.
	h := newHarness(t, func(o *Options) { o.OriginalSizeLimitMB = 3 })
	h.store.add("/huge.jpg", "f1", jpegBytes(t, 1024, 1024))

	ok, status := h.generate("/huge.jpg", "48", "")
	assert.False(t, ok)
	assert.Equal(t, http.StatusForbidden, status)
	assert.NoFileExists(t, filepath.Join(h.root, "48", "f1"))
}

func TestGenerateCorruptImage(t *testing.T) {
	h := newHarness(t, nil)
	h.store.add("/broken.png", "f1", []byte("not really a png"))

	ok, status := h.generate("/broken.png", "48", "")
	assert.False(t, ok)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NoFileExists(t, filepath.Join(h.root, "48", "f1"))
}

func TestGenerateWatermarkKeepsDimensions(t *testing.T) {
	h := newHarness(t, nil)
	h.store.add("/photos/cat.jpg", "f1", jpegBytes(t, 800, 600))

	ok, status := h.generate("/photos/cat.jpg", "48", "alice@example.com")
	require.True(t, ok)
	require.Equal(t, http.StatusOK, status)

	w, hgt := dimensions(t, filepath.Join(h.root, "48", "f1_alice@example.com"))
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, hgt)
	assert.NoFileExists(t, filepath.Join(h.root, "48", "f1"))
}

func TestGenerateInvalidWatermark(t *testing.T) {
	h := newHarness(t, nil)
	h.store.add("/a.jpg", "f1", jpegBytes(t, 10, 10))

	ok, status := h.generate("/a.jpg", "48", "../../escape")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Zero(t, h.fetcher.calls)
}

func TestGenerateUnsupportedType(t *testing.T) {
	h := newHarness(t, nil)
	h.store.add("/docs/report.pdf", "f1", []byte("%PDF-1.4"))
	h.store.add("/noext", "f2", []byte("data"))

	for _, p := range []string{"/docs/report.pdf", "/noext"} {
		ok, status := h.generate(p, "48", "")
		assert.False(t, ok, p)
		assert.Equal(t, http.StatusBadRequest, status, p)
	}
	assert.Zero(t, h.fetcher.calls)
}

func TestGenerateVideoDisabled(t *testing.T) {
	h := newHarness(t, nil)
	h.store.add("/movies/clip.MP4", "v1", []byte("video"))

	ok, status := h.generate("/movies/clip.MP4", "48", "")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Zero(t, h.extractor.calls, "extractor must not run when video thumbnails are disabled")
	assert.Empty(t, h.store.tokens)
}

func TestGenerateVideo(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.VideoEnabled = true })
	h.store.add("/movies/clip.mp4", "v1234567890", []byte("video"))

	ok, status := h.generate("/movies/clip.mp4", "128", "")
	require.True(t, ok)
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, 1, h.extractor.calls)
	assert.Equal(t, "mem://v1234567890/clip.mp4", h.extractor.src)
	require.Len(t, h.store.tokens, 1)
	assert.False(t, h.store.tokens[0].oneTime, "video tokens must allow repeated reads")
	assert.Zero(t, h.fetcher.calls)

	w, hgt := dimensions(t, filepath.Join(h.root, "128", "v1234567890"))
	assert.Equal(t, 128, w)
	assert.Equal(t, 72, hgt)

	entries, err := os.ReadDir(h.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary frame must be removed")
}

func TestGenerateVideoFailureCleansUp(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeExtractor)
	}{
		{"extractor error", func(e *fakeExtractor) { e.err = errors.New("moov atom not found") }},
		{"bad frame", func(e *fakeExtractor) { e.frame = []byte("garbage") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(o *Options) { o.VideoEnabled = true })
			h.store.add("/clip.mov", "v1", []byte("video"))
			tt.setup(h.extractor)

			ok, status := h.generate("/clip.mov", "48", "")
			assert.False(t, ok)
			assert.Equal(t, http.StatusInternalServerError, status)

			entries, err := os.ReadDir(h.tempDir)
			require.NoError(t, err)
			assert.Empty(t, entries, "temporary frame must be removed")
			assert.NoFileExists(t, filepath.Join(h.root, "48", "v1"))
		})
	}
}

func TestCachedPath(t *testing.T) {
	h := newHarness(t, nil)
	h.store.add("/a.jpg", "f1", jpegBytes(t, 10, 10))

	p, status := h.gen.CachedPath(context.Background(), Request{RepoID: testRepoID, Path: "/a.jpg", Size: "48", Watermark: "bob@example.com"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, filepath.Join(h.root, "48", "f1_bob@example.com"), p)

	_, status = h.gen.CachedPath(context.Background(), Request{RepoID: testRepoID, Path: "/nope.jpg", Size: "48"})
	assert.Equal(t, http.StatusBadRequest, status)

	_, status = h.gen.CachedPath(context.Background(), Request{RepoID: testRepoID, Path: "/a.jpg", Size: "x"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGenerateWithHTTPFetcher(t *testing.T) {
	data := jpegBytes(t, 300, 300)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	store := &urlStore{fakeStore: newFakeStore(), base: srv.URL}
	store.add("/a.png", "f1", data)

	root := filepath.Join(t.TempDir(), "thumbs")
	gen, err := New(Options{Root: root, ImageSizeLimitMB: 30, OriginalSizeLimitMB: 256},
		Deps{Store: store, Fetcher: seafile.NewHTTPFetcher(srv.Client())})
	require.NoError(t, err)

	ok, status := gen.Generate(context.Background(), Request{RepoID: testRepoID, Path: "/a.png", Size: "96"})
	require.True(t, ok)
	require.Equal(t, http.StatusOK, status)

	w, hgt := dimensions(t, filepath.Join(root, "96", "f1"))
	assert.Equal(t, 96, w)
	assert.Equal(t, 96, hgt)
}

// urlStore points file URLs at an HTTP server.
type urlStore struct {
	*fakeStore
	base string
}

func (s *urlStore) FileURL(_ context.Context, token, filename string) (string, error) {
	return s.base + "/files/" + token + "/" + filename, nil
}
