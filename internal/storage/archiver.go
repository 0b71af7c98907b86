package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/example/message-intake/internal/models"
)

// Direction tags whether an archived payload entered or left the platform.
type Direction string

// Archive directions.
const (
	DirectionIncoming Direction = "in"
	DirectionOutgoing Direction = "out"
)

// Archiver persists raw message payloads to durable storage and hands back
// the storage locator recorded on the transaction.
type Archiver struct {
	store  BlobStore
	bucket string
	logger zerolog.Logger
}

// NewArchiver constructs an Archiver writing into the supplied bucket.
func NewArchiver(store BlobStore, bucket string, logger zerolog.Logger) (*Archiver, error) {
	if store == nil {
		return nil, errors.New("storage: blob store is required")
	}
	if bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}
	return &Archiver{store: store, bucket: bucket, logger: logger}, nil
}

// Archive writes the raw payload and returns its storage locator. The locator
// is deterministic per (direction, transaction, request) so retransmissions of
// the same request overwrite rather than accumulate.
func (a *Archiver) Archive(ctx context.Context, reqCtx models.RequestContext, payload []byte, direction Direction) (string, error) {
	locator := fmt.Sprintf("%s/%s/%s", direction, reqCtx.TransactionID, reqCtx.RequestID)

	if err := a.store.Put(ctx, a.bucket, locator, payload); err != nil {
		return "", fmt.Errorf("archive payload: %w", err)
	}

	a.logger.Debug().
		Str("request_id", reqCtx.RequestID).
		Str("transaction_id", reqCtx.TransactionID).
		Str("locator", locator).
		Int("bytes", len(payload)).
		Msg("payload archived")

	return locator, nil
}
