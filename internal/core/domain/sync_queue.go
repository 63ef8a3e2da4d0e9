package domain

import (
	"fmt"
	"strings"
	"time"
)

// Operation is the kind of mutation recorded in the sync queue
type Operation string

const (
	OperationInsert Operation = "INSERT"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
)

// ParseOperation accepts any letter case
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToUpper(strings.TrimSpace(s)))
	if !op.Valid() {
		return "", fmt.Errorf("%w: unknown operation %q", ErrInvalidInput, s)
	}
	return op, nil
}

// Valid reports whether op is one of the known operations
func (op Operation) Valid() bool {
	switch op {
	case OperationInsert, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// QueueStatus represents the state of a sync queue entry
type QueueStatus string

const (
	QueueStatusPending   QueueStatus = "pending"
	QueueStatusCompleted QueueStatus = "completed"
	QueueStatusFailed    QueueStatus = "failed"
)

// ParseQueueStatus accepts any letter case
func ParseQueueStatus(s string) (QueueStatus, error) {
	st := QueueStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case QueueStatusPending, QueueStatusCompleted, QueueStatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown queue status %q", ErrInvalidInput, s)
}

// QueueEntry is one mutation waiting to be replayed against the remote store
type QueueEntry struct {
	ID        int64       `json:"id"`
	TableName string      `json:"table_name"`
	Operation Operation   `json:"operation"`
	Payload   Row         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
	Attempts  int         `json:"attempts"`
	Status    QueueStatus `json:"status"`

	// RowID is the payload's primary key rendered as text, empty if absent
	RowID string `json:"row_id,omitempty"`

	// LastError is the most recent replay failure reason
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`

	// RawPayload holds the stored payload when it could not be decoded
	RawPayload string `json:"raw_payload,omitempty"`
}

// Eligible reports whether the entry may be replayed
func (e *QueueEntry) Eligible(maxAttempts int) bool {
	return e.Status == QueueStatusPending && e.Attempts < maxAttempts
}

// Exhausted reports whether a pending entry has used all its attempts
func (e *QueueEntry) Exhausted(maxAttempts int) bool {
	return e.Status == QueueStatusPending && e.Attempts >= maxAttempts
}

// QueueFilter selects entries for inspection
type QueueFilter struct {
	Status    QueueStatus `json:"status,omitempty"`
	TableName string      `json:"table_name,omitempty"`

	// ExhaustedOnly selects pending entries at or over MaxAttempts
	ExhaustedOnly bool `json:"exhausted_only,omitempty"`
	MaxAttempts   int  `json:"max_attempts,omitempty"`

	// Newest lists newest first instead of replay order
	Newest bool `json:"newest,omitempty"`
	Limit  int  `json:"limit,omitempty"`
	Offset int  `json:"offset,omitempty"`
}

// ResetFilter selects entries to revive
type ResetFilter struct {
	// IDs restricts the reset to specific entries; empty means all
	// Failed and exhausted entries
	IDs         []int64 `json:"ids,omitempty"`
	MaxAttempts int     `json:"max_attempts"`
}

// QueueStats summarizes the queue
type QueueStats struct {
	Pending   int `json:"pending"`
	Exhausted int `json:"exhausted"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`

	// PendingByTable counts eligible pending entries per table
	PendingByTable map[string]int `json:"pending_by_table"`

	OldestPending  *time.Time `json:"oldest_pending,omitempty"`
	LastCompleted  *time.Time `json:"last_completed,omitempty"`
	StalePending   int        `json:"stale_pending"`
	StaleThreshold string     `json:"stale_threshold"`
}

// SyncMeta describes the logical mutation behind a facade write, so that a
// write landing on the local store can be queued for replay.
type SyncMeta struct {
	Table     string    `json:"table"`
	Operation Operation `json:"operation"`
	Payload   Row       `json:"payload"`
}

// Mutation is a single-row change replayed against the remote store
type Mutation struct {
	Table     string    `json:"table"`
	Operation Operation `json:"operation"`
	Row       Row       `json:"row"`
}
