package models

import "time"

// TransactionState enumerates the lifecycle states of a transaction record.
type TransactionState string

// Transaction states. Absence of a record is expressed by the store's
// not-found error rather than a state value.
const (
	TransactionInitiated TransactionState = "INITIATED"
	TransactionReceived  TransactionState = "RECEIVED"
	TransactionRejected  TransactionState = "REJECTED"
)

// TransactionRecord is the correlation record for one inbound business
// message, keyed by the externally supplied transaction id.
type TransactionRecord struct {
	TransactionID string           `json:"transaction_id"`
	State         TransactionState `json:"state"`
	StoragePath   string           `json:"storage_path,omitempty"`
	MessageType   string           `json:"message_type,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}
