package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"seafile-thumbnail/internal/logging"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultNicknameCacheSize = 1024
	defaultNicknameCacheTTL  = 10 * time.Minute
)

type nicknameCache = expirable.LRU[string, string]

func newNicknameCache(size int, ttl time.Duration) *nicknameCache {
	if size <= 0 {
		size = defaultNicknameCacheSize
	}
	if ttl <= 0 {
		ttl = defaultNicknameCacheTTL
	}
	return expirable.NewLRU[string, string](size, nil, ttl)
}

// Nickname returns the display name for email. Without a profile nickname
// it falls back to the part of the address before "@". Lookup errors are
// logged and also fall back, since the watermark must still render.
func (d *Database) Nickname(ctx context.Context, email string) string {
	if nick, ok := d.nicknames.Get(email); ok {
		return nick
	}

	nick, err := d.profileNickname(ctx, email)
	if err != nil {
		logging.Warn("Failed to look up nickname for %s: %v", email, err)
		return emailLocalPart(email)
	}
	if nick == "" {
		nick = emailLocalPart(email)
	}

	d.nicknames.Add(email, nick)
	return nick
}

func (d *Database) profileNickname(ctx context.Context, email string) (nick string, err error) {
	start := time.Now()
	defer func() { recordQuery("get_nickname", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.db.QueryRowContext(ctx,
		"SELECT nickname FROM profile_profile WHERE user = ?", email,
	).Scan(&nick)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return strings.TrimSpace(nick), err
}

// SetNickname creates or updates the profile nickname for email.
func (d *Database) SetNickname(ctx context.Context, email, nickname string) (err error) {
	start := time.Now()
	defer func() { recordQuery("set_nickname", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO profile_profile (user, nickname) VALUES (?, ?)
		ON CONFLICT(user) DO UPDATE SET nickname = excluded.nickname
	`, email, nickname)
	if err == nil {
		d.nicknames.Remove(email)
	}
	return err
}

func emailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
