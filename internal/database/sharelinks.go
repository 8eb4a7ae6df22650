package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// ErrShareLinkNotFound is returned for unknown or expired share tokens.
var ErrShareLinkNotFound = errors.New("share link not found")

// Share link types.
const (
	ShareTypeFile = "f"
	ShareTypeDir  = "d"
)

// ShareLink is a public link to a file or directory.
type ShareLink struct {
	Token      string
	Username   string
	RepoID     string
	Path       string
	Type       string
	Permission string
	ExpireDate *time.Time
}

// IsExpired reports whether the link has an expiry in the past.
func (s *ShareLink) IsExpired(now time.Time) bool {
	return s.ExpireDate != nil && now.After(*s.ExpireDate)
}

// ResolvePath returns the library path a request under this link refers
// to. File links always resolve to the shared file; directory links join
// reqPath below the shared directory and refuse to leave it.
func (s *ShareLink) ResolvePath(reqPath string) (string, error) {
	if s.Type != ShareTypeDir {
		return s.Path, nil
	}
	rel := strings.TrimLeft(reqPath, "/")
	full := path.Join("/", s.Path, rel)
	root := path.Join("/", s.Path)
	if full != root && !strings.HasPrefix(full, strings.TrimSuffix(root, "/")+"/") {
		return "", fmt.Errorf("%w: path %q escapes shared directory", ErrShareLinkNotFound, reqPath)
	}
	return full, nil
}

// ShareLink returns the unexpired share link for token.
func (d *Database) ShareLink(ctx context.Context, token string) (link *ShareLink, err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, ErrShareLinkNotFound) {
			recordQuery("get_share_link", start, nil)
			return
		}
		recordQuery("get_share_link", start, err)
	}()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		l      ShareLink
		expire sql.NullInt64
	)
	err = d.db.QueryRowContext(ctx, `
		SELECT token, username, repo_id, path, s_type, permission, expire_date
		FROM share_fileshare WHERE token = ?
	`, token).Scan(&l.Token, &l.Username, &l.RepoID, &l.Path, &l.Type, &l.Permission, &expire)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShareLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query share link: %w", err)
	}

	if expire.Valid {
		t := time.Unix(expire.Int64, 0)
		l.ExpireDate = &t
	}
	if l.IsExpired(time.Now()) {
		return nil, ErrShareLinkNotFound
	}
	return &l, nil
}

// CreateShareLink stores link. A zero Permission defaults to view_download.
func (d *Database) CreateShareLink(ctx context.Context, link ShareLink) (err error) {
	start := time.Now()
	defer func() { recordQuery("create_share_link", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if link.Permission == "" {
		link.Permission = "view_download"
	}
	if link.Type == "" {
		link.Type = ShareTypeFile
	}
	var expire sql.NullInt64
	if link.ExpireDate != nil {
		expire = sql.NullInt64{Int64: link.ExpireDate.Unix(), Valid: true}
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO share_fileshare (username, repo_id, path, token, s_type, permission, expire_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, link.Username, link.RepoID, link.Path, link.Token, link.Type, link.Permission, expire)
	return err
}
