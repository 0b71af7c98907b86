package transaction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/message-intake/internal/models"
)

// MemoryStore is an in-memory transaction store for tests and local
// development. All transitions happen under one mutex, which gives the same
// at-most-one-winner semantics the Redis store provides via Lua.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*models.TransactionRecord
	now     func() time.Time
}

// NewMemoryStore constructs an empty in-memory transaction store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*models.TransactionRecord),
		now:     time.Now,
	}
}

// Initiate creates a record in the INITIATED state. The initiation step
// belongs to an upstream service; this helper exists for development and
// tests.
func (s *MemoryStore) Initiate(_ context.Context, transactionID string) (*models.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[transactionID]; ok {
		return nil, fmt.Errorf("transaction: %s already exists", transactionID)
	}
	record := &models.TransactionRecord{
		TransactionID: transactionID,
		State:         models.TransactionInitiated,
		CreatedAt:     s.now().UTC(),
	}
	s.records[transactionID] = record
	clone := *record
	return &clone, nil
}

// Lookup returns a copy of the stored record.
func (s *MemoryStore) Lookup(_ context.Context, transactionID string) (*models.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[transactionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, transactionID)
	}
	clone := *record
	return &clone, nil
}

// CheckInitiated reports whether the record exists in state INITIATED.
func (s *MemoryStore) CheckInitiated(_ context.Context, transactionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[transactionID]
	return ok && record.State == models.TransactionInitiated, nil
}

// Receive atomically transitions INITIATED -> RECEIVED.
func (s *MemoryStore) Receive(_ context.Context, transactionID, storagePath, messageType string) (bool, error) {
	return s.transition(transactionID, models.TransactionReceived, storagePath, messageType), nil
}

// Reject atomically transitions INITIATED -> REJECTED.
func (s *MemoryStore) Reject(_ context.Context, transactionID, storagePath, messageType string) (bool, error) {
	return s.transition(transactionID, models.TransactionRejected, storagePath, messageType), nil
}

func (s *MemoryStore) transition(transactionID string, next models.TransactionState, storagePath, messageType string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[transactionID]
	if !ok || record.State != models.TransactionInitiated {
		return false
	}
	record.State = next
	record.StoragePath = storagePath
	record.MessageType = messageType
	return true
}
