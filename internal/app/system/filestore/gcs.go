package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCS stores objects in a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	ttl    time.Duration
}

// GCSConfig configures NewGCS. An empty CredentialsFile uses application
// default credentials.
type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
	SignedURLTTL    time.Duration
}

// NewGCS opens a client for cfg.Bucket.
func NewGCS(ctx context.Context, cfg GCSConfig) (*GCS, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	ttl := cfg.SignedURLTTL
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}
	return &GCS{client: client, bucket: client.Bucket(cfg.Bucket), name: cfg.Bucket, ttl: ttl}, nil
}

// BucketName returns the bucket this store writes to.
func (g *GCS) BucketName() string { return g.name }

// Close releases the client.
func (g *GCS) Close() error { return g.client.Close() }

func (g *GCS) Put(ctx context.Context, name string, r io.Reader, contentType string) (string, error) {
	w := g.bucket.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", name, err)
	}
	return name, nil
}

func (g *GCS) Open(ctx context.Context, ref string) (*Object, error) {
	rd, err := g.bucket.Object(ObjectName(ref, g.name)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &Object{Body: rd, ContentType: rd.Attrs.ContentType, Size: rd.Attrs.Size}, nil
}

func (g *GCS) Delete(ctx context.Context, ref string) error {
	err := g.bucket.Object(ObjectName(ref, g.name)).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrNotFound
	}
	return err
}

func (g *GCS) Exists(ctx context.Context, ref string) (bool, error) {
	_, err := g.bucket.Object(ObjectName(ref, g.name)).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return err == nil, err
}

// SignedURL returns a v4 signed GET URL valid for the configured TTL.
func (g *GCS) SignedURL(ctx context.Context, ref string) (string, error) {
	return g.bucket.SignedURL(ObjectName(ref, g.name), &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(g.ttl),
	})
}

func (g *GCS) List(ctx context.Context, prefix string) ([]string, error) {
	it := g.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}
