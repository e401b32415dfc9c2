package blob

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStore keeps objects as files under Root. URLs are BaseURL + "/" + key,
// served by the HTTP layer from the same directory.
type LocalStore struct {
	Root       string
	BaseURL    string
	NewDirPerm os.FileMode
}

// NewLocalStore creates root if needed and returns a store over it.
func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{Root: abs, BaseURL: strings.TrimRight(baseURL, "/"), NewDirPerm: 0o755}, nil
}

// resolve maps key to a path under Root, rejecting traversal.
func (l *LocalStore) resolve(key string) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	fname := filepath.Clean(filepath.Join(l.Root, filepath.FromSlash(key)))
	if !strings.HasPrefix(fname, l.Root+string(os.PathSeparator)) {
		return "", ErrInvalidKey
	}
	return fname, nil
}

// Put writes the object through a temporary file and renames it into place,
// so a failed upload never leaves a partial object behind.
func (l *LocalStore) Put(ctx context.Context, key string, r io.Reader, size int64, _ string, progress ProgressFunc) (Object, error) {
	fname, err := l.resolve(key)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(fname), l.NewDirPerm); err != nil {
		return Object{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(fname), ".upload-*")
	if err != nil {
		return Object{}, err
	}
	defer os.Remove(tmp.Name())

	src := io.TeeReader(ctxReader{ctx: ctx, r: r}, newProgressSink(size, progress))
	n, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Object{}, err
	}
	if err := os.Rename(tmp.Name(), fname); err != nil {
		return Object{}, err
	}
	st, err := os.Stat(fname)
	if err != nil {
		return Object{}, err
	}
	return Object{Key: key, Size: n, CreatedAt: st.ModTime().UTC()}, nil
}

// URL returns the public address of key; it does not check existence.
func (l *LocalStore) URL(_ context.Context, key string) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return l.BaseURL + "/" + key, nil
}

// Delete removes key.
func (l *LocalStore) Delete(_ context.Context, key string) error {
	fname, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fname); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// List walks the directory for prefix. Results are sorted by key.
func (l *LocalStore) List(ctx context.Context, prefix string) ([]Object, error) {
	dir := l.Root
	if p := strings.Trim(prefix, "/"); p != "" {
		var err error
		if dir, err = l.resolve(p); err != nil {
			return nil, err
		}
	}
	out := []Object{}
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(l.Root, p)
		if err != nil {
			return err
		}
		out = append(out, Object{Key: filepath.ToSlash(rel), Size: info.Size(), CreatedAt: info.ModTime().UTC()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
