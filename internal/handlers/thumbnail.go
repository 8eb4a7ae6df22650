package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"seafile-thumbnail/internal/database"
	"seafile-thumbnail/internal/filesystem"
	"seafile-thumbnail/internal/logging"
	"seafile-thumbnail/internal/mediatypes"
	"seafile-thumbnail/internal/thumbnail"

	"github.com/gorilla/mux"
)

// GetThumbnail serves the thumbnail of a file inside a library, generating
// it on first request.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	req := thumbnail.Request{
		RepoID:    vars["repo_id"],
		Path:      "/" + vars["path"],
		Size:      vars["size"],
		Watermark: strings.TrimSpace(r.Header.Get(HeaderWatermark)),
	}
	h.serveThumbnail(w, r, req)
}

// GetShareLinkThumbnail serves a thumbnail reached through a share link.
// For a directory link the path is relative to the shared directory.
func (h *Handlers) GetShareLinkThumbnail(w http.ResponseWriter, r *http.Request) {
	if h.links == nil {
		writeJSONError(w, "share links are not available", http.StatusNotFound)
		return
	}

	vars := mux.Vars(r)
	link, err := h.links.ShareLink(r.Context(), vars["token"])
	if errors.Is(err, database.ErrShareLinkNotFound) {
		writeJSONError(w, "share link not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("Failed to look up share link: %v", err)
		writeJSONError(w, "failed to look up share link", http.StatusInternalServerError)
		return
	}

	filePath, err := link.ResolvePath(vars["path"])
	if err != nil {
		writeJSONError(w, "file not found", http.StatusNotFound)
		return
	}

	req := thumbnail.Request{
		RepoID: link.RepoID,
		Path:   filePath,
		Size:   vars["size"],
	}
	if h.opts.ShareLinkWatermark {
		req.Watermark = shareLinkViewer(r, link)
	}
	h.serveThumbnail(w, r, req)
}

// shareLinkViewer is the identity watermarked into a share link thumbnail:
// the signed-in viewer, or the link owner for anonymous visitors.
func shareLinkViewer(r *http.Request, link *database.ShareLink) string {
	if user := strings.TrimSpace(r.Header.Get(HeaderUser)); user != "" {
		return user
	}
	return link.Username
}

func (h *Handlers) serveThumbnail(w http.ResponseWriter, r *http.Request, req thumbnail.Request) {
	ctx := r.Context()

	if h.gate != nil {
		waitCtx, cancel := context.WithTimeout(ctx, h.opts.GateTimeout)
		err := h.gate.Wait(waitCtx)
		cancel()
		if err != nil {
			logging.Warn("Thumbnail request for %s:%s held back by memory pressure: %v", req.RepoID, req.Path, err)
			w.Header().Set("Retry-After", "5")
			writeJSONError(w, "server is busy, retry later", http.StatusServiceUnavailable)
			return
		}
	}

	if ok, status := h.thumbs.Generate(ctx, req); !ok {
		writeJSONError(w, statusMessage(status), status)
		return
	}

	cachePath, status := h.thumbs.CachedPath(ctx, req)
	if status != http.StatusOK {
		writeJSONError(w, statusMessage(status), status)
		return
	}

	f, err := filesystem.OpenWithRetry(cachePath, h.retry)
	if err != nil {
		logging.Error("Failed to open generated thumbnail %s: %v", cachePath, err)
		writeJSONError(w, statusMessage(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close thumbnail %s: %v", cachePath, err)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		logging.Error("Failed to stat thumbnail %s: %v", cachePath, err)
		writeJSONError(w, statusMessage(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", h.contentType())
	w.Header().Set("Cache-Control", fmt.Sprintf("private, max-age=%d", int(h.opts.CacheMaxAge.Seconds())))
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (h *Handlers) contentType() string {
	if h.opts.Extension == "" {
		return mediatypes.ContentType("png")
	}
	return mediatypes.ContentType(h.opts.Extension)
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid thumbnail request"
	case http.StatusForbidden:
		return "image is too large to thumbnail"
	default:
		return "failed to generate thumbnail"
	}
}
