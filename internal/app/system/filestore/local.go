package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalPrefix starts every ref produced by Local.
const LocalPrefix = "uploads/"

// Local stores objects under a directory and serves them from URLBase.
type Local struct {
	root    string
	urlBase string
}

// NewLocal creates the root directory if needed. urlBase is where the
// router serves root, usually "/uploads".
func NewLocal(root, urlBase string) (*Local, error) {
	if root == "" {
		return nil, errors.New("local storage path is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", root, err)
	}
	if urlBase == "" {
		urlBase = "/uploads"
	}
	return &Local{root: root, urlBase: strings.TrimRight(urlBase, "/")}, nil
}

// Root returns the directory objects live in.
func (l *Local) Root() string { return l.root }

func (l *Local) path(ref string) (string, error) {
	name := strings.TrimPrefix(strings.ReplaceAll(ref, `\`, "/"), "/")
	name = strings.TrimPrefix(name, LocalPrefix)
	clean := path.Clean("/" + name)
	if clean == "/" {
		return "", ErrNotFound
	}
	return filepath.Join(l.root, filepath.FromSlash(clean[1:])), nil
}

func (l *Local) Put(ctx context.Context, name string, r io.Reader, contentType string) (string, error) {
	p, err := l.path(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(p)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return LocalPrefix + strings.TrimPrefix(name, LocalPrefix), nil
}

func (l *Local) Open(ctx context.Context, ref string) (*Object, error) {
	p, err := l.path(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	ct := mime.TypeByExtension(filepath.Ext(p))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &Object{Body: f, ContentType: ct, Size: info.Size()}, nil
}

func (l *Local) Delete(ctx context.Context, ref string) error {
	p, err := l.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (l *Local) Exists(ctx context.Context, ref string) (bool, error) {
	p, err := l.path(ref)
	if err != nil {
		return false, nil
	}
	_, err = os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// SignedURL returns the public path; local files need no signature.
func (l *Local) SignedURL(ctx context.Context, ref string) (string, error) {
	name := strings.TrimPrefix(strings.TrimPrefix(ref, "/"), LocalPrefix)
	return l.urlBase + "/" + name, nil
}

func (l *Local) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			names = append(names, rel)
		}
		return nil
	})
	return names, err
}
