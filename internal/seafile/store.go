// Package seafile defines the content-store contracts the thumbnail
// service consumes, plus an HTTP fetcher for token URLs.
package seafile

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is returned when a repo, file or token does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTooLarge is returned when fetched content exceeds the read limit.
	ErrTooLarge = errors.New("content too large")
)

// Operation names accepted by Store.AccessToken.
const (
	OpView = "view"
)

// Repo is the subset of library metadata the thumbnail service needs.
type Repo struct {
	ID        string
	Name      string
	StoreID   string
	Version   int
	Encrypted bool
}

// Store resolves files in the content-addressed store and issues access
// tokens for reading them.
type Store interface {
	// FileID returns the content identity of the file at path in the
	// repo's current revision, or ErrNotFound.
	FileID(ctx context.Context, repoID, path string) (string, error)
	Repo(ctx context.Context, repoID string) (*Repo, error)
	// FileSize returns the raw size in bytes of the file object.
	FileSize(ctx context.Context, repo *Repo, fileID string) (int64, error)
	// AccessToken issues a token for op on fileID. Single-use tokens are
	// invalidated by the first FileURL call that redeems them.
	AccessToken(ctx context.Context, repoID, fileID, op string, oneTime bool) (string, error)
	// FileURL returns the URL the fetcher reads the bytes from.
	FileURL(ctx context.Context, token, filename string) (string, error)
}

// Fetcher streams the bytes behind a file URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}
