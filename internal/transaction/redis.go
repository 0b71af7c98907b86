package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/example/message-intake/internal/models"
)

// casScript performs the INITIATED -> next transition atomically on the
// server so two concurrent transitions cannot both win.
var casScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if state ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'state', ARGV[2], 'storage_path', ARGV[3], 'message_type', ARGV[4])
return 1
`)

// RedisStore persists transaction records as Redis hashes, one per
// transaction id, with compare-and-set transitions implemented in Lua.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

// NewRedisStore constructs a Redis-backed transaction store.
func NewRedisStore(client *redis.Client, prefix string, logger zerolog.Logger) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("transaction: redis client is required")
	}
	if prefix == "" {
		prefix = "txn"
	}
	return &RedisStore{client: client, prefix: prefix, logger: logger}, nil
}

// Lookup fetches the record hash for the transaction id.
func (s *RedisStore) Lookup(ctx context.Context, transactionID string) (*models.TransactionRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.key(transactionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("transaction: lookup %s: %w", transactionID, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, transactionID)
	}

	record := &models.TransactionRecord{
		TransactionID: transactionID,
		State:         models.TransactionState(fields["state"]),
		StoragePath:   fields["storage_path"],
		MessageType:   fields["message_type"],
	}
	if raw := fields["created_at"]; raw != "" {
		if ts, parseErr := time.Parse(time.RFC3339Nano, raw); parseErr == nil {
			record.CreatedAt = ts
		}
	}
	return record, nil
}

// CheckInitiated reports whether the stored state is exactly INITIATED.
func (s *RedisStore) CheckInitiated(ctx context.Context, transactionID string) (bool, error) {
	state, err := s.client.HGet(ctx, s.key(transactionID), "state").Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("transaction: check %s: %w", transactionID, err)
	}
	return models.TransactionState(state) == models.TransactionInitiated, nil
}

// Receive runs the CAS script transitioning INITIATED -> RECEIVED.
func (s *RedisStore) Receive(ctx context.Context, transactionID, storagePath, messageType string) (bool, error) {
	return s.transition(ctx, transactionID, models.TransactionReceived, storagePath, messageType)
}

// Reject runs the CAS script transitioning INITIATED -> REJECTED.
func (s *RedisStore) Reject(ctx context.Context, transactionID, storagePath, messageType string) (bool, error) {
	return s.transition(ctx, transactionID, models.TransactionRejected, storagePath, messageType)
}

func (s *RedisStore) transition(ctx context.Context, transactionID string, next models.TransactionState, storagePath, messageType string) (bool, error) {
	res, err := casScript.Run(ctx, s.client,
		[]string{s.key(transactionID)},
		string(models.TransactionInitiated), string(next), storagePath, messageType,
	).Int()
	if err != nil {
		return false, fmt.Errorf("transaction: transition %s to %s: %w", transactionID, next, err)
	}
	won := res == 1
	if !won {
		s.logger.Debug().
			Str("transaction_id", transactionID).
			Str("next_state", string(next)).
			Msg("compare-and-set precondition failed")
	}
	return won, nil
}

func (s *RedisStore) key(transactionID string) string {
	return s.prefix + ":" + transactionID
}
