package handlers

import (
	"context"
	"net/http"
	"time"

	"seafile-thumbnail/internal/database"
	"seafile-thumbnail/internal/filesystem"
	"seafile-thumbnail/internal/thumbnail"

	"github.com/gorilla/mux"
)

// Headers set by the trusted front proxy.
const (
	// HeaderUser carries the email of the signed-in viewer.
	HeaderUser = "X-Seafile-User"
	// HeaderWatermark carries the identity to burn into library thumbnails.
	HeaderWatermark = "X-Seafile-Watermark"
)

// Thumbnailer produces thumbnails and locates them in the cache.
type Thumbnailer interface {
	Generate(ctx context.Context, req thumbnail.Request) (bool, int)
	CachedPath(ctx context.Context, req thumbnail.Request) (string, int)
}

// ShareLinkResolver looks up share links by token.
type ShareLinkResolver interface {
	ShareLink(ctx context.Context, token string) (*database.ShareLink, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Gate holds requests back while the process is under memory pressure.
type Gate interface {
	Wait(ctx context.Context) error
	Paused() bool
}

// Options configures the handlers.
type Options struct {
	// Extension of the cached thumbnails, used for Content-Type.
	Extension string
	// ShareLinkWatermark burns the viewer identity into share link thumbnails.
	ShareLinkWatermark bool
	// CacheMaxAge is sent in Cache-Control for served thumbnails.
	CacheMaxAge  time.Duration
	VideoEnabled bool
	// GateTimeout bounds how long a request waits for memory to recover.
	GateTimeout time.Duration
}

type Handlers struct {
	thumbs  Thumbnailer
	links   ShareLinkResolver
	db      Pinger
	gate    Gate
	opts    Options
	retry   filesystem.RetryConfig
	started time.Time
}

// New returns the HTTP handlers. links, db and gate may be nil.
func New(thumbs Thumbnailer, links ShareLinkResolver, db Pinger, gate Gate, opts Options) *Handlers {
	if opts.CacheMaxAge == 0 {
		opts.CacheMaxAge = 24 * time.Hour
	}
	if opts.GateTimeout == 0 {
		opts.GateTimeout = 30 * time.Second
	}
	return &Handlers{
		thumbs:  thumbs,
		links:   links,
		db:      db,
		gate:    gate,
		opts:    opts,
		retry:   filesystem.DefaultRetryConfig(),
		started: time.Now(),
	}
}

// repoIDPattern matches library ids, which are UUIDs. Share link tokens
// never contain dashes, so the two thumbnail routes do not overlap.
const repoIDPattern = "[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}"

// NewRouter registers every route. mws run inside the router so they can
// see the matched route.
func NewRouter(h *Handlers, mws ...mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()
	for _, mw := range mws {
		r.Use(mw)
	}

	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet, http.MethodHead).Name("health")
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead).Name("liveness")
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet).Name("version")

	r.HandleFunc("/thumbnail/{repo_id:"+repoIDPattern+"}/{size}/{path:.*}", h.GetThumbnail).
		Methods(http.MethodGet, http.MethodHead).Name("thumbnail")
	r.HandleFunc("/thumbnail/{token:[0-9a-zA-Z]+}/{size}/{path:.*}", h.GetShareLinkThumbnail).
		Methods(http.MethodGet, http.MethodHead).Name("share-link-thumbnail")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, "not found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
	})

	return r
}
