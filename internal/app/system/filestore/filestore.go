// Package filestore keeps uploaded member documents and banners in Google
// Cloud Storage, or on local disk for development.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// DefaultSignedURLTTL is the lifetime of a signed read URL.
const DefaultSignedURLTTL = 60 * time.Minute

// Object is an opened stored file. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// Store is an object store. Refs are what gets persisted on documents:
// the object name for GCS, "uploads/<name>" for local disk.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader, contentType string) (ref string, err error)
	Open(ctx context.Context, ref string) (*Object, error)
	Delete(ctx context.Context, ref string) error
	Exists(ctx context.Context, ref string) (bool, error)
	SignedURL(ctx context.Context, ref string) (string, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// IsPassthrough reports whether ref is served as-is rather than signed:
// legacy local uploads, static profile images and foreign URLs.
func IsPassthrough(ref, bucket string) bool {
	switch {
	case strings.HasPrefix(ref, "uploads/"), strings.HasPrefix(ref, `uploads\`):
		return true
	case strings.HasPrefix(ref, "/profiles"):
		return true
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return !IsBucketURL(ref, bucket)
	}
	return false
}

// IsBucketURL reports whether ref is a public storage.googleapis.com URL
// into bucket.
func IsBucketURL(ref, bucket string) bool {
	return bucket != "" && strings.Contains(ref, "storage.googleapis.com/"+bucket+"/")
}

// ObjectName extracts the object name from a bucket URL. Other refs are
// returned unchanged.
func ObjectName(ref, bucket string) string {
	if IsBucketURL(ref, bucket) {
		_, after, _ := strings.Cut(ref, "storage.googleapis.com/"+bucket+"/")
		if i := strings.IndexAny(after, "?#"); i >= 0 {
			after = after[:i]
		}
		return after
	}
	return ref
}

// Signer turns stored refs into URLs a browser can fetch.
type Signer struct {
	Store  Store
	Bucket string
	Log    *zap.Logger
}

// SignRef returns a readable URL for ref. Passthrough refs are returned
// untouched, and signing failures fall back to the original ref.
func (s *Signer) SignRef(ctx context.Context, ref string) string {
	if ref == "" || s == nil || s.Store == nil || IsPassthrough(ref, s.Bucket) {
		return ref
	}
	url, err := s.Store.SignedURL(ctx, ObjectName(ref, s.Bucket))
	if err != nil {
		if s.Log != nil {
			s.Log.Warn("sign url failed", zap.String("ref", ref), zap.Error(err))
		}
		return ref
	}
	return url
}

// SignAll signs every non-empty ref in place.
func (s *Signer) SignAll(ctx context.Context, refs ...*string) {
	for _, r := range refs {
		if r != nil && *r != "" {
			*r = s.SignRef(ctx, *r)
		}
	}
}

// NewUploadName returns a unique object name for an uploaded file:
// yyyy/mm/dd/<uuid>-<sanitized original name>.
func NewUploadName(original string, now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf("%04d/%02d/%02d/%s-%s",
		now.Year(), now.Month(), now.Day(), uuid.NewString(), SanitizeFilename(original))
}

// SanitizeFilename keeps the base name, replacing anything outside
// [A-Za-z0-9._-] with '_' and capping the length at 100 bytes.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" {
		name = ""
	}
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '-', c == '_':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "file"
	}
	if len(out) > 100 {
		ext := path.Ext(string(out))
		if ext != "" && len(ext) < 10 {
			out = append(out[:100-len(ext)], ext...)
		} else {
			out = out[:100]
		}
	}
	return string(out)
}
