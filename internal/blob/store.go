// Package blob stores finished recordings. A Store accepts a streamed upload
// with byte progress, resolves a fetchable URL for an object, deletes by key
// and lists by prefix with per-object creation time.
//
// Two backends exist: MinIO (any S3-compatible service) for deployments and a
// local directory for development and tests.
package blob

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// Backend kinds accepted by config.BlobConfig.Backend.
const (
	KindLocal = "local"
	KindMinio = "minio"
)

var (
	// ErrInvalidKey is returned for empty keys or keys escaping their prefix.
	ErrInvalidKey = errors.New("invalid object key")
	// ErrNotFound is returned when the object does not exist.
	ErrNotFound = errors.New("object not found")
)

// Object is the listing metadata of a stored blob.
type Object struct {
	Key       string
	Size      int64
	CreatedAt time.Time
}

// ProgressFunc receives the cumulative number of bytes sent and the total.
// Calls are made from the uploading goroutine, in increasing order of sent.
type ProgressFunc func(sent, total int64)

// Store is the blob storage contract used by the upload and recordings services.
type Store interface {
	// Put streams size bytes from r to key. progress may be nil.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, progress ProgressFunc) (Object, error)
	// URL resolves an address a client can fetch the object from.
	URL(ctx context.Context, key string) (string, error)
	// Delete removes key. Deleting a missing key returns ErrNotFound.
	Delete(ctx context.Context, key string) error
	// List returns every object under prefix.
	List(ctx context.Context, prefix string) ([]Object, error)
}

// CleanKey validates an object key: non-empty, slash-separated, with no "."
// or ".." segments and no leading slash.
func CleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", ErrInvalidKey
		}
	}
	return path.Clean(key), nil
}

// ContentTypeFor maps a recording extension to its MIME type.
func ContentTypeFor(ext string) string {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "m4a", "aac":
		return "audio/mp4"
	case "ogg", "opus":
		return "audio/ogg"
	case "3gp":
		return "audio/3gpp"
	default:
		return "application/octet-stream"
	}
}

// progressSink counts bytes reported to it through Read and forwards the
// running total to fn. minio-go drives it with buffers sized to the bytes
// just transferred; the local store feeds it from a TeeReader.
type progressSink struct {
	sent  int64
	total int64
	fn    ProgressFunc
}

func newProgressSink(total int64, fn ProgressFunc) *progressSink {
	return &progressSink{total: total, fn: fn}
}

// Read implements io.Reader for minio.PutObjectOptions.Progress.
func (p *progressSink) Read(b []byte) (int, error) {
	p.add(len(b))
	return len(b), nil
}

// Write implements io.Writer for io.TeeReader.
func (p *progressSink) Write(b []byte) (int, error) {
	p.add(len(b))
	return len(b), nil
}

func (p *progressSink) add(n int) {
	if n <= 0 {
		return
	}
	p.sent += int64(n)
	if p.total > 0 && p.sent > p.total {
		p.sent = p.total
	}
	if p.fn != nil {
		p.fn(p.sent, p.total)
	}
}
