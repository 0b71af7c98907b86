// Package transaction implements the transaction state gate: lookup of the
// correlation record and the atomic INITIATED -> RECEIVED / REJECTED
// transitions. The compare-and-set discipline here is the pipeline's only
// concurrency-control mechanism.
package transaction

import (
	"context"
	"errors"

	"github.com/example/message-intake/internal/models"
)

// ErrTransactionNotFound is returned by Lookup when no record exists for the
// supplied transaction id.
var ErrTransactionNotFound = errors.New("transaction: not found")

// Store is the transaction persistence collaborator. Receive and Reject must
// be atomic compare-and-set transitions: of any set of concurrent calls
// against the same id, at most one succeeds and all others observe a
// precondition failure.
type Store interface {
	// Lookup returns the record for the transaction id, or
	// ErrTransactionNotFound.
	Lookup(ctx context.Context, transactionID string) (*models.TransactionRecord, error)

	// CheckInitiated reports whether a record exists and its state is exactly
	// INITIATED. Absent, received and rejected records all report false.
	CheckInitiated(ctx context.Context, transactionID string) (bool, error)

	// Receive transitions INITIATED -> RECEIVED, recording the storage
	// locator and message type. The boolean is false when the precondition
	// did not hold.
	Receive(ctx context.Context, transactionID, storagePath, messageType string) (bool, error)

	// Reject transitions INITIATED -> REJECTED under the same compare-and-set
	// discipline.
	Reject(ctx context.Context, transactionID, storagePath, messageType string) (bool, error)
}
