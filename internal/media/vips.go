package media

import (
	"bytes"
	"fmt"
	"image/png"
	"sync"

	"seafile-thumbnail/internal/logging"
	"seafile-thumbnail/internal/metrics"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// vipsLogLevel maps our log level to the most verbose libvips level we
// want forwarded.
func vipsLogLevel(level logging.LogLevel) vips.LogLevel {
	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo
	case logging.LevelInfo:
		return vips.LogLevelWarning
	case logging.LevelWarn:
		return vips.LogLevelError
	case logging.LevelError:
		return vips.LogLevelCritical
	default:
		return vips.LogLevelWarning
	}
}

func vipsLogHandler(domain string, level vips.LogLevel, msg string) {
	switch level {
	case vips.LogLevelError, vips.LogLevelCritical:
		logging.Error("[%s] %s", domain, msg)
	case vips.LogLevelWarning:
		logging.Warn("[%s] %s", domain, msg)
	default:
		logging.Debug("[%s] %s", domain, msg)
	}
}

// InitVips initializes the libvips library. It is used as a fallback
// decoder for formats the Go decoders do not understand (HEIC, AVIF, PSD).
// This should be called once at startup
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// Configure vips logging BEFORE Startup() to respect LOG_LEVEL
	vips.LoggingSettings(vipsLogHandler, vipsLogLevel(logging.GetLevel()))

	// Requests are served one at a time per goroutine; keep libvips' own
	// pools small so the decoded-size ceiling stays meaningful.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// ShutdownVips cleans up libvips resources
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// decodeWithVips loads data through libvips. The dimension check runs on
// the vips reference before the raster is exported into Go memory.
func (d *Decoder) decodeWithVips(data []byte) (DecodedImage, error) {
	ref, err := vips.NewImageFromBuffer(data)
	if err != nil {
		metrics.ThumbnailImageDecodeByFormat.WithLabelValues("unknown").Inc()
		return DecodedImage{}, fmt.Errorf("%w: vips: %v", ErrDecode, err)
	}
	defer ref.Close()

	if err := d.checkDimensions(ref.Width(), ref.Height()); err != nil {
		return DecodedImage{}, err
	}

	orientation := Orientation(ref.Orientation())

	buf, _, err := ref.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return DecodedImage{}, fmt.Errorf("%w: vips export: %v", ErrDecode, err)
	}

	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		return DecodedImage{}, fmt.Errorf("%w: decode vips output: %v", ErrDecode, err)
	}

	metrics.ThumbnailImageDecodeByFormat.WithLabelValues("vips").Inc()
	logging.Debug("Vips decoded image %dx%d (orientation %d)", ref.Width(), ref.Height(), orientation)

	return DecodedImage{
		Image:       img,
		Format:      "vips",
		Mode:        ColorModeOf(img),
		Orientation: orientation,
	}, nil
}
