package blob

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore keeps objects in one bucket of an S3-compatible service. URLs
// are presigned GETs valid for URLTTL.
type MinioStore struct {
	Client *minio.Client
	Bucket string
	URLTTL time.Duration
}

// MinioOptions configures NewMinioStore.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string // optional; skips bucket-location lookups when set
	URLTTL    time.Duration
}

// NewMinioStore connects to the endpoint and makes sure the bucket exists.
func NewMinioStore(ctx context.Context, o MinioOptions) (*MinioStore, error) {
	s, err := newMinioStore(o)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func newMinioStore(o MinioOptions) (*MinioStore, error) {
	cli, err := minio.New(o.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(o.AccessKey, o.SecretKey, ""),
		Secure: o.UseSSL,
		Region: o.Region,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStore{Client: cli, Bucket: o.Bucket, URLTTL: o.URLTTL}, nil
}

// EnsureBucket creates the bucket when it is missing.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	ok, err := s.Client.BucketExists(ctx, s.Bucket)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return s.Client.MakeBucket(ctx, s.Bucket, minio.MakeBucketOptions{})
}

// Put streams r into the bucket. Progress is reported by minio-go as parts
// are transferred.
func (s *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, progress ProgressFunc) (Object, error) {
	key, err := CleanKey(key)
	if err != nil {
		return Object{}, err
	}
	opts := minio.PutObjectOptions{ContentType: contentType}
	if progress != nil {
		opts.Progress = newProgressSink(size, progress)
	}
	info, err := s.Client.PutObject(ctx, s.Bucket, key, r, size, opts)
	if err != nil {
		return Object{}, err
	}
	created := info.LastModified
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return Object{Key: info.Key, Size: info.Size, CreatedAt: created}, nil
}

// URL presigns a GET for key.
func (s *MinioStore) URL(ctx context.Context, key string) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	u, err := s.Client.PresignedGetObject(ctx, s.Bucket, key, s.URLTTL, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// Delete removes key. S3 deletes are idempotent, so existence is checked first.
func (s *MinioStore) Delete(ctx context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	if _, err := s.Client.StatObject(ctx, s.Bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return ErrNotFound
		}
		return err
	}
	return s.Client.RemoveObject(ctx, s.Bucket, key, minio.RemoveObjectOptions{})
}

// List returns the objects under prefix. S3 keeps no creation time; objects
// are never rewritten, so LastModified stands in for it.
func (s *MinioStore) List(ctx context.Context, prefix string) ([]Object, error) {
	out := []Object{}
	for info := range s.Client.ListObjects(ctx, s.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, info.Err
		}
		out = append(out, Object{Key: info.Key, Size: info.Size, CreatedAt: info.LastModified})
	}
	return out, nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
