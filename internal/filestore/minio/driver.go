// Package minio provides a MinIO implementation of filestore.Store, so
// finished exports can land in object storage instead of a local disk.
//
// Usage:
//
//	cfg := &filestore.Config{Provider: filestore.ProviderMinIO,
//		Endpoint: "localhost:9000", AccessKey: "minioadmin",
//		SecretKey: "minioadmin", Bucket: "exports"}
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
package minio

import (
	"context"
	"io"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jwkim/schemadoc/internal/errs"
	"github.com/jwkim/schemadoc/internal/filestore"
)

// Driver is a MinIO implementation of filestore.Store.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client *miniogo.Client
	bucket string
}

// New connects to MinIO using the provided Config and returns a Driver.
// It calls Ping to validate the connection and bucket before returning.
func New(ctx context.Context, cfg *filestore.Config) (*Driver, error) {
	if cfg.Bucket == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "bucket is required")
	}

	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create minio client", err)
	}

	d := &Driver{client: client, bucket: cfg.Bucket}

	if err := d.Ping(ctx); err != nil {
		return nil, err
	}

	return d, nil
}

// --- filestore.Store implementation ---

// Ping verifies the server is reachable and the bucket exists.
func (d *Driver) Ping(ctx context.Context) error {
	ok, err := d.client.BucketExists(ctx, d.bucket)
	if err != nil {
		return mapError(err, "ping failed")
	}
	if !ok {
		return errs.New(errs.ErrKindNotFound, "bucket does not exist: "+d.bucket)
	}
	return nil
}

// Close is a no-op for MinIO — the SDK client holds no persistent connections.
func (d *Driver) Close() error {
	return nil
}

// Put uploads the content of r to key in the configured bucket. S3-side
// uploads are already all-or-nothing: an interrupted upload never
// replaces an existing object.
func (d *Driver) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := d.client.PutObject(ctx, d.bucket, key, r, size, miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		if ctx.Err() != nil {
			return errs.Wrap(errs.ErrKindCancelled, "upload cancelled", err)
		}
		return mapError(err, "failed to put object")
	}
	return nil
}
