// Package storage provides the file store behind member downloads.
//
// Two implementations are available:
//   - LocalStorage: filesystem-backed store for development
//   - R2Storage: Cloudflare R2 (S3-compatible) for production
//
// Product files are private objects. Delivery happens through short-lived
// signed URLs handed out only after a download has been authorized.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Storage is the interface for object storage operations.
// All methods are context-aware for timeout and cancellation support.
type Storage interface {
	// Put stores data at the specified key with the given options.
	// Returns ErrKeyExists if the key is taken and Overwrite is false.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get retrieves the data at the specified key. The caller must close
	// the returned reader. Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at the specified key. Idempotent.
	Delete(ctx context.Context, key string) error

	// URL returns a URL for accessing the object at the specified key.
	// For private objects this is a presigned URL valid for the given
	// duration; expiry is what keeps authorized links from being shared.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists reports whether an object exists at the specified key.
	Exists(ctx context.Context, key string) (bool, error)
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType is the MIME type of the object. If empty, it is
	// guessed from the key's file extension.
	ContentType string

	// MaxSize is the maximum allowed size in bytes. 0 means no limit.
	MaxSize int64

	// Overwrite allows replacing an existing object at the same key.
	Overwrite bool

	// Public marks the object publicly readable. Product files are
	// never public; this exists for ancillary assets.
	Public bool
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory where files are stored.
	BasePath string

	// BaseURL is the URL prefix for accessing files.
	// Example: "http://localhost:8080/files"
	BaseURL string
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// Region defaults to "auto", which is what R2 expects.
	Region string

	// PublicURL is an optional custom domain for public objects.
	PublicURL string
}

// ProductFileKey builds the storage key for a product file:
// products/{downloadID}/{uuid}{ext}. The random component keeps keys
// unguessable even when filenames collide across uploads.
func ProductFileKey(downloadID uuid.UUID, filename string) string {
	return fmt.Sprintf("products/%s/%s%s", downloadID, uuid.NewString(), filepath.Ext(filename))
}

// contentTypeFor guesses a MIME type from the key's extension,
// falling back to application/octet-stream.
func contentTypeFor(key string) string {
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
