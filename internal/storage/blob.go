// Package storage provides the blob store abstraction used to persist raw
// payloads and to fetch schema documents, together with the intake archiver.
package storage

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned when a bucket/key pair has no stored object.
var ErrObjectNotFound = errors.New("storage: object not found")

// BlobStore is the durable object storage collaborator: store bytes under a
// bucket and key, read them back later.
type BlobStore interface {
	Put(ctx context.Context, bucket, key string, body []byte) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}
