// Package s3store implements the content store on top of an S3 bucket.
// Each library is a key prefix, file identities are derived from the
// object ETag, and access tokens redeem to presigned GET URLs.
package s3store

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"seafile-thumbnail/internal/logging"
	"seafile-thumbnail/internal/seafile"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultOneTimeTokenTTL = time.Minute
	defaultTokenTTL        = time.Hour
	defaultIndexSize       = 4096
	defaultTokenCacheSize  = 4096
)

// Config configures the bucket connection.
type Config struct {
	Endpoint     string
	AccessKey    string
	AccessSecret string
	Region       string
	Bucket       string
	// Prefix is prepended to every key, e.g. "seafile".
	Prefix string
	// ForcePathStyle is needed for MinIO and most non-AWS endpoints.
	ForcePathStyle bool

	OneTimeTokenTTL time.Duration
	TokenTTL        time.Duration
}

type object struct {
	key  string
	size int64
}

type token struct {
	key      string
	filename string
}

// Store is a seafile.Store backed by S3.
type Store struct {
	svc    s3iface.S3API
	bucket string
	prefix string

	tokenTTL        time.Duration
	oneTimeTokenTTL time.Duration

	// objects maps file identities resolved by FileID back to their keys.
	objects  *expirable.LRU[string, object]
	oneTime  *expirable.LRU[string, token]
	multiUse *expirable.LRU[string, token]
}

var _ seafile.Store = (*Store)(nil)

// New connects to the bucket described by c.
func New(c Config) (*Store, error) {
	if c.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	cfg := aws.NewConfig().
		WithRegion(c.Region).
		WithS3ForcePathStyle(c.ForcePathStyle)
	if c.Endpoint != "" {
		cfg = cfg.WithEndpoint(c.Endpoint)
	}
	if c.AccessKey != "" {
		cfg = cfg.WithCredentials(credentials.NewStaticCredentials(c.AccessKey, c.AccessSecret, ""))
	}

	s, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("s3 session: %w", err)
	}

	return NewWithClient(s3.New(s), c), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(svc s3iface.S3API, c Config) *Store {
	oneTimeTTL := c.OneTimeTokenTTL
	if oneTimeTTL <= 0 {
		oneTimeTTL = defaultOneTimeTokenTTL
	}
	tokenTTL := c.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}

	return &Store{
		svc:             svc,
		bucket:          c.Bucket,
		prefix:          strings.Trim(c.Prefix, "/"),
		tokenTTL:        tokenTTL,
		oneTimeTokenTTL: oneTimeTTL,
		objects:         expirable.NewLRU[string, object](defaultIndexSize, nil, tokenTTL),
		oneTime:         expirable.NewLRU[string, token](defaultTokenCacheSize, nil, oneTimeTTL),
		multiUse:        expirable.NewLRU[string, token](defaultTokenCacheSize, nil, tokenTTL),
	}
}

func (s *Store) key(repoID, filePath string) string {
	return path.Join(s.prefix, repoID, strings.TrimLeft(filePath, "/"))
}

func (s *Store) repoPrefix(repoID string) string {
	return path.Join(s.prefix, repoID) + "/"
}

// fileID derives a content identity that changes whenever the object does.
func (s *Store) fileID(key, etag string) string {
	sum := sha1.Sum([]byte(s.bucket + "\x00" + key + "\x00" + strings.Trim(etag, `"`)))
	return hex.EncodeToString(sum[:])
}

func isNotFound(err error) bool {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
			return true
		}
	}
	return false
}

// FileID returns the identity of the object behind repoID/filePath.
func (s *Store) FileID(ctx context.Context, repoID, filePath string) (string, error) {
	if strings.Trim(filePath, "/") == "" || strings.HasSuffix(filePath, "/") {
		return "", fmt.Errorf("%q is a directory: %w", filePath, seafile.ErrNotFound)
	}
	key := s.key(repoID, filePath)

	out, err := s.svc.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("head object %s: %w", key, seafile.ErrNotFound)
		}
		return "", fmt.Errorf("head object %s: %w", key, err)
	}

	id := s.fileID(key, aws.StringValue(out.ETag))
	s.objects.Add(id, object{key: key, size: aws.Int64Value(out.ContentLength)})
	logging.Debug("Resolved %s to file id %s", key, id)
	return id, nil
}

// Repo reports a library as present when at least one object lives under
// its prefix.
func (s *Store) Repo(ctx context.Context, repoID string) (*seafile.Repo, error) {
	out, err := s.svc.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.repoPrefix(repoID)),
		MaxKeys: aws.Int64(1),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("list %s: %w", repoID, seafile.ErrNotFound)
		}
		return nil, fmt.Errorf("list %s: %w", repoID, err)
	}
	if len(out.Contents) == 0 {
		return nil, fmt.Errorf("library %s: %w", repoID, seafile.ErrNotFound)
	}

	return &seafile.Repo{
		ID:      repoID,
		Name:    repoID,
		StoreID: s.bucket,
		Version: 1,
	}, nil
}

// FileSize returns the size recorded when fileID was resolved.
func (s *Store) FileSize(_ context.Context, _ *seafile.Repo, fileID string) (int64, error) {
	obj, ok := s.objects.Get(fileID)
	if !ok {
		return 0, fmt.Errorf("file %s: %w", fileID, seafile.ErrNotFound)
	}
	return obj.size, nil
}

// AccessToken issues an opaque token for fileID. Only the view operation
// is supported.
func (s *Store) AccessToken(_ context.Context, repoID, fileID, op string, oneTime bool) (string, error) {
	if op != seafile.OpView {
		return "", fmt.Errorf("unsupported operation %q", op)
	}
	obj, ok := s.objects.Get(fileID)
	if !ok {
		return "", fmt.Errorf("file %s: %w", fileID, seafile.ErrNotFound)
	}
	if !strings.HasPrefix(obj.key, s.repoPrefix(repoID)) {
		return "", fmt.Errorf("file %s is not in library %s: %w", fileID, repoID, seafile.ErrNotFound)
	}

	id := uuid.NewString()
	t := token{key: obj.key, filename: path.Base(obj.key)}
	if oneTime {
		s.oneTime.Add(id, t)
	} else {
		s.multiUse.Add(id, t)
	}
	return id, nil
}

// redeem looks tok up. Remove reports true to exactly one caller, so a
// single-use token cannot be redeemed twice.
func (s *Store) redeem(tok string) (token, time.Duration, bool) {
	if t, ok := s.oneTime.Peek(tok); ok && s.oneTime.Remove(tok) {
		return t, s.oneTimeTokenTTL, true
	}
	if t, ok := s.multiUse.Get(tok); ok {
		return t, s.tokenTTL, true
	}
	return token{}, 0, false
}

// FileURL redeems tok for a presigned GET URL. Single-use tokens are
// consumed.
func (s *Store) FileURL(_ context.Context, tok, filename string) (string, error) {
	t, ttl, ok := s.redeem(tok)
	if !ok {
		return "", fmt.Errorf("token: %w", seafile.ErrNotFound)
	}

	if filename != "" && filename != t.filename {
		return "", fmt.Errorf("token is not valid for %q: %w", filename, seafile.ErrNotFound)
	}

	req, _ := s.svc.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(t.key),
	})
	url, err := req.Presign(ttl)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", t.key, err)
	}
	return url, nil
}
