// Package thumbnail decides whether and how a thumbnail is produced for a
// file in a library and where it is cached on disk.
package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"seafile-thumbnail/internal/filesystem"
	"seafile-thumbnail/internal/logging"
	"seafile-thumbnail/internal/media"
	"seafile-thumbnail/internal/mediatypes"
	"seafile-thumbnail/internal/metrics"
	"seafile-thumbnail/internal/seafile"
)

// Options is the immutable configuration of a Generator.
type Options struct {
	// Root is the cache directory; thumbnails live in Root/<size>/.
	Root string
	// Extension selects the output encoding.
	Extension string
	// ImageSizeLimitMB bounds the raw size of an image file before fetch.
	ImageSizeLimitMB int64
	// OriginalSizeLimitMB bounds width*height*4 of the decoded image.
	OriginalSizeLimitMB int64
	VideoEnabled        bool
	VideoFrameTime      time.Duration
	// AllowedSizes restricts the accepted sizes when non-empty.
	AllowedSizes []int
	// TempDir holds extracted video frames; empty means os.TempDir().
	TempDir string
}

// Deps are the collaborators of a Generator.
type Deps struct {
	Store       seafile.Store
	Fetcher     seafile.Fetcher
	Nicknames   media.NicknameResolver
	Watermarker *media.Watermarker
	Extractor   media.FrameExtractor
}

// Request identifies one thumbnail.
type Request struct {
	RepoID string
	Path   string
	Size   string
	// Watermark is the viewer email burned into the thumbnail, if any.
	Watermark string
}

// Generator produces thumbnails into the cache directory.
type Generator struct {
	opts     Options
	store    seafile.Store
	fetcher  seafile.Fetcher
	renderer *media.Renderer
	video    *media.VideoThumbnailer
	retry    filesystem.RetryConfig
}

// New returns a Generator. A nil Watermarker is replaced with one using the
// embedded font, and a nil Extractor with ffmpeg from PATH.
func New(opts Options, deps Deps) (*Generator, error) {
	if deps.Store == nil {
		return nil, errors.New("thumbnail: store is required")
	}
	if deps.Fetcher == nil {
		return nil, errors.New("thumbnail: fetcher is required")
	}
	if opts.Root == "" {
		return nil, errors.New("thumbnail: root directory is required")
	}

	wm := deps.Watermarker
	if wm == nil {
		var err error
		wm, err = media.NewWatermarker("")
		if err != nil {
			return nil, err
		}
	}

	extractor := deps.Extractor
	if extractor == nil {
		extractor = &media.FFmpegExtractor{}
	}

	renderer := &media.Renderer{
		Decoder:     &media.Decoder{MaxMemoryMB: opts.OriginalSizeLimitMB},
		Watermarker: wm,
		Nicknames:   deps.Nicknames,
		Extension:   opts.Extension,
	}

	return &Generator{
		opts:     opts,
		store:    deps.Store,
		fetcher:  deps.Fetcher,
		renderer: renderer,
		video: &media.VideoThumbnailer{
			Extractor: extractor,
			Renderer:  renderer,
			FrameTime: opts.VideoFrameTime,
			TempDir:   opts.TempDir,
		},
		retry: filesystem.DefaultRetryConfig(),
	}, nil
}

// Options returns the configuration the Generator was built with.
func (g *Generator) Options() Options {
	return g.opts
}

// Generate makes sure the thumbnail for req exists on disk. It reports
// success and one of 200, 400, 403 or 500. A cache hit is a success.
func (g *Generator) Generate(ctx context.Context, req Request) (ok bool, status int) {
	start := time.Now()
	kind := "unknown"

	defer func() {
		if r := recover(); r != nil {
			logging.Error("Thumbnail generation panicked for %s:%s: %v", req.RepoID, req.Path, r)
			ok, status = false, StatusCode(fmt.Errorf("%w: panic", media.ErrDecode))
		}
		metrics.ThumbnailGenerationsTotal.WithLabelValues(kind, strconv.Itoa(status)).Inc()
		metrics.ThumbnailGenerationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	err := g.generate(ctx, req, &kind)
	status = StatusCode(err)
	if err != nil {
		if status >= 500 {
			logging.Error("Failed to generate thumbnail for %s:%s: %v", req.RepoID, req.Path, err)
		} else {
			logging.Debug("Thumbnail refused for %s:%s: %v", req.RepoID, req.Path, err)
		}
		return false, status
	}
	return true, status
}

// CachedPath resolves where the thumbnail for req lives, without
// generating it.
func (g *Generator) CachedPath(ctx context.Context, req Request) (string, int) {
	size, fileID, err := g.resolve(ctx, req)
	if err != nil {
		return "", StatusCode(err)
	}
	return CachePath(g.opts.Root, fileID, size, req.Watermark), StatusCode(nil)
}

// parse validates the parts of req that need no store round trip.
func (g *Generator) parse(req Request) (int, error) {
	size, err := ParseSize(req.Size, g.opts.AllowedSizes)
	if err != nil {
		return 0, err
	}
	if err := ValidateWatermark(req.Watermark); err != nil {
		return 0, err
	}
	return size, nil
}

func (g *Generator) resolve(ctx context.Context, req Request) (int, string, error) {
	size, err := g.parse(req)
	if err != nil {
		return 0, "", err
	}

	fileID, err := g.fileID(ctx, req.RepoID, req.Path)
	if err != nil {
		return 0, "", err
	}
	return size, fileID, nil
}

func (g *Generator) generate(ctx context.Context, req Request, kind *string) error {
	size, err := g.parse(req)
	if err != nil {
		return err
	}

	sizeDir := filepath.Join(g.opts.Root, strconv.Itoa(size))
	if err := os.MkdirAll(sizeDir, 0755); err != nil {
		return fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	fileID, err := g.fileID(ctx, req.RepoID, req.Path)
	if err != nil {
		return err
	}

	dst := CachePath(g.opts.Root, fileID, size, req.Watermark)
	exists, err := filesystem.Exists(dst, g.retry)
	if err != nil {
		logging.Warn("Failed to check thumbnail cache %s: %v", dst, err)
	}
	if exists {
		metrics.ThumbnailCacheHits.Inc()
		logging.Debug("Thumbnail cache hit: %s", dst)
		return nil
	}
	metrics.ThumbnailCacheMisses.Inc()

	repo, err := g.repo(ctx, req.RepoID)
	if err != nil {
		return err
	}
	if repo.Encrypted {
		return fmt.Errorf("%w: %s", ErrEncryptedRepo, req.RepoID)
	}

	fileSize, err := g.fileSize(ctx, repo, fileID)
	if err != nil {
		return err
	}

	fileType := mediatypes.Classify(req.Path)
	*kind = string(fileType)

	switch fileType {
	case mediatypes.Video:
		if !g.opts.VideoEnabled {
			return ErrVideoDisabled
		}
		return g.generateVideo(ctx, req, fileID, dst, size)
	case mediatypes.Image:
		return g.generateImage(ctx, req, fileID, fileSize, dst, size)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedType, path.Base(req.Path))
	}
}

func (g *Generator) imageSizeLimit() int64 {
	return g.opts.ImageSizeLimitMB * 1024 * 1024
}

func (g *Generator) generateImage(ctx context.Context, req Request, fileID string, fileSize int64, dst string, size int) error {
	limit := g.imageSizeLimit()
	if fileSize > limit {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, fileSize, limit)
	}

	url, err := g.fileURL(ctx, req, fileID, true)
	if err != nil {
		return err
	}

	body, err := g.fetcher.Fetch(ctx, url)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer func() {
		if err := body.Close(); err != nil {
			logging.Warn("failed to close file body: %v", err)
		}
	}()

	data, err := seafile.ReadAllLimited(body, limit)
	if err != nil {
		if errors.Is(err, seafile.ErrTooLarge) {
			return fmt.Errorf("%w: %v", ErrFileTooLarge, err)
		}
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}

	return g.renderer.Render(ctx, media.BytesSource(data), dst, size, req.Watermark)
}

func (g *Generator) generateVideo(ctx context.Context, req Request, fileID, dst string, size int) error {
	// ffmpeg may reopen the URL while seeking, so the token must survive
	// more than one read.
	url, err := g.fileURL(ctx, req, fileID, false)
	if err != nil {
		return err
	}
	return g.video.Render(ctx, url, fileID, dst, size)
}

func (g *Generator) fileURL(ctx context.Context, req Request, fileID string, oneTime bool) (string, error) {
	token, err := g.accessToken(ctx, req.RepoID, fileID, oneTime)
	if err != nil {
		return "", err
	}

	var url string
	err = observeStore("file_url", func() error {
		var err error
		url, err = g.store.FileURL(ctx, token, path.Base(req.Path))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: file url: %v", ErrBackend, err)
	}
	return url, nil
}

func (g *Generator) fileID(ctx context.Context, repoID, filePath string) (string, error) {
	var fileID string
	err := observeStore("file_id", func() error {
		var err error
		fileID, err = g.store.FileID(ctx, repoID, filePath)
		return err
	})
	switch {
	case errors.Is(err, seafile.ErrNotFound):
		return "", fmt.Errorf("%w: %s:%s", ErrFileNotFound, repoID, filePath)
	case err != nil:
		return "", fmt.Errorf("%w: file id: %v", ErrBackend, err)
	case fileID == "":
		return "", fmt.Errorf("%w: %s:%s", ErrFileNotFound, repoID, filePath)
	}
	return fileID, nil
}

func (g *Generator) repo(ctx context.Context, repoID string) (*seafile.Repo, error) {
	var repo *seafile.Repo
	err := observeStore("repo", func() error {
		var err error
		repo, err = g.store.Repo(ctx, repoID)
		return err
	})
	switch {
	case errors.Is(err, seafile.ErrNotFound):
		return nil, fmt.Errorf("%w: library %s", ErrFileNotFound, repoID)
	case err != nil:
		return nil, fmt.Errorf("%w: repo: %v", ErrBackend, err)
	case repo == nil:
		return nil, fmt.Errorf("%w: library %s", ErrFileNotFound, repoID)
	}
	return repo, nil
}

func (g *Generator) fileSize(ctx context.Context, repo *seafile.Repo, fileID string) (int64, error) {
	var size int64
	err := observeStore("file_size", func() error {
		var err error
		size, err = g.store.FileSize(ctx, repo, fileID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: file size: %v", ErrBackend, err)
	}
	return size, nil
}

func (g *Generator) accessToken(ctx context.Context, repoID, fileID string, oneTime bool) (string, error) {
	var token string
	err := observeStore("access_token", func() error {
		var err error
		token, err = g.store.AccessToken(ctx, repoID, fileID, seafile.OpView, oneTime)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoAccessToken, err)
	}
	if token == "" {
		return "", ErrNoAccessToken
	}
	return token, nil
}

// observeStore runs fn and records it under operation.
func observeStore(operation string, fn func() error) error {
	start := time.Now()
	err := fn()

	status := "success"
	switch {
	case errors.Is(err, seafile.ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	metrics.StoreOperationsTotal.WithLabelValues(operation, status).Inc()
	metrics.StoreOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	return err
}
