// Package app assembles the thumbnail generator and its collaborators from
// the loaded configuration. The server and the command line tool share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"seafile-thumbnail/internal/database"
	"seafile-thumbnail/internal/logging"
	"seafile-thumbnail/internal/media"
	"seafile-thumbnail/internal/seafile"
	"seafile-thumbnail/internal/startup"
	"seafile-thumbnail/internal/store/s3store"
	"seafile-thumbnail/internal/thumbnail"
)

// fetchTimeout bounds a single download of an original file.
const fetchTimeout = 2 * time.Minute

// App is a fully wired generator plus the resources it holds open.
type App struct {
	Config    *startup.Config
	DB        *database.Database
	Store     *s3store.Store
	Generator *thumbnail.Generator
	// VideoReady is false when video thumbnails are enabled but FFmpeg
	// could not be found.
	VideoReady bool
}

// Build opens the seahub database, connects to the object store and
// creates the generator. Close releases what Build opened.
func Build(ctx context.Context, cfg *startup.Config) (*App, error) {
	dbStart := time.Now()
	db, err := database.New(ctx, cfg.DatabasePath, database.Options{
		NicknameCacheSize: cfg.NicknameCacheSize,
		NicknameCacheTTL:  cfg.NicknameCacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	startup.LogDatabaseInit(cfg.DatabasePath, time.Since(dbStart))

	a := &App{Config: cfg, DB: db}
	fail := func(err error) (*App, error) {
		if closeErr := a.Close(); closeErr != nil {
			logging.Error("failed to release resources after startup error: %v", closeErr)
		}
		return nil, err
	}

	st, err := s3store.New(s3store.Config{
		Endpoint:       cfg.S3.Endpoint,
		AccessKey:      cfg.S3.AccessKey,
		AccessSecret:   cfg.S3.AccessSecret,
		Region:         cfg.S3.Region,
		Bucket:         cfg.S3.Bucket,
		Prefix:         cfg.S3.Prefix,
		ForcePathStyle: cfg.S3.ForcePathStyle,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to initialize object store: %w", err))
	}
	a.Store = st
	startup.LogStoreInit(cfg.S3)

	startup.LogDecoderInit(media.InitVips())
	a.VideoReady = startup.LogVideoInit(cfg.VideoEnabled, cfg.FFmpegPath)

	wm, err := media.NewWatermarker(cfg.WatermarkFont)
	if err != nil {
		return fail(fmt.Errorf("failed to load watermark font: %w", err))
	}

	gen, err := thumbnail.New(thumbnail.Options{
		Root:                cfg.ThumbnailRoot,
		Extension:           cfg.Extension,
		ImageSizeLimitMB:    cfg.ImageSizeLimitMB,
		OriginalSizeLimitMB: cfg.OriginalSizeLimitMB,
		VideoEnabled:        cfg.VideoEnabled,
		VideoFrameTime:      cfg.VideoFrameTime(),
		AllowedSizes:        cfg.Sizes,
		TempDir:             cfg.TempDir,
	}, thumbnail.Deps{
		Store:       st,
		Fetcher:     seafile.NewHTTPFetcher(&http.Client{Timeout: fetchTimeout}),
		Nicknames:   db,
		Watermarker: wm,
		Extractor:   &media.FFmpegExtractor{Binary: cfg.FFmpegPath},
	})
	if err != nil {
		return fail(fmt.Errorf("failed to create thumbnail generator: %w", err))
	}
	a.Generator = gen

	return a, nil
}

// Close releases the database. libvips is shut down separately because it
// can only be started once per process.
func (a *App) Close() error {
	var errs []error
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		a.DB = nil
	}
	return errors.Join(errs...)
}
