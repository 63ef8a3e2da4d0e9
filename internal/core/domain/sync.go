package domain

import "time"

// EngineState is the phase of the sync engine's current cycle
type EngineState string

const (
	EngineStateIdle     EngineState = "idle"
	EngineStateProbing  EngineState = "probing"
	EngineStateDraining EngineState = "draining"
	EngineStatePulling  EngineState = "pulling"
)

// Direction selects which half of a sync runs
type Direction string

const (
	DirectionBoth Direction = "both"
	DirectionPush Direction = "push" // local to remote only
	DirectionPull Direction = "pull" // remote to local only
)

// Valid reports whether d is a known direction
func (d Direction) Valid() bool {
	switch d {
	case DirectionBoth, DirectionPush, DirectionPull:
		return true
	}
	return false
}

// Pushes reports whether d includes queue draining
func (d Direction) Pushes() bool { return d == DirectionBoth || d == DirectionPush }

// Pulls reports whether d includes the remote to local refresh
func (d Direction) Pulls() bool { return d == DirectionBoth || d == DirectionPull }

// StoreKind identifies which store served an operation
type StoreKind string

const (
	StoreLocal  StoreKind = "local"
	StoreRemote StoreKind = "remote"
)

// ExecResult is the outcome of a write
type ExecResult struct {
	Store        StoreKind `json:"store"`
	LastInsertID int64     `json:"last_insert_id,omitempty"`
	RowsAffected int64     `json:"rows_affected"`

	// QueueEntryID is set when the write was queued for replay
	QueueEntryID int64 `json:"queue_entry_id,omitempty"`
}

// DrainResult summarizes one drain of the queue
type DrainResult struct {
	Attempted int `json:"attempted"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Repaired  int `json:"repaired"`
	// Renumbered counts inserts moved to a fresh id because their id was
	// taken on the remote store by another row.
	Renumbered int     `json:"renumbered"`
	Duration   float64 `json:"duration_seconds"`
}

// Add accumulates another drain into r
func (r *DrainResult) Add(o *DrainResult) {
	if o == nil {
		return
	}
	r.Attempted += o.Attempted
	r.Completed += o.Completed
	r.Failed += o.Failed
	r.Repaired += o.Repaired
	r.Renumbered += o.Renumbered
	r.Duration += o.Duration
}

// PullResult summarizes a remote to local refresh
type PullResult struct {
	Tables   map[string]int    `json:"tables"`
	Skipped  int               `json:"skipped"`
	Errors   map[string]string `json:"errors,omitempty"`
	Duration float64           `json:"duration_seconds"`
}

// SyncReport is the outcome of a forced or one-directional sync
type SyncReport struct {
	ID          string      `json:"id"`
	Direction   Direction   `json:"direction"`
	Online      bool        `json:"online"`
	Rounds      int         `json:"rounds"`
	Drain       DrainResult `json:"drain"`
	Pull        *PullResult `json:"pull,omitempty"`
	Remaining   int         `json:"remaining"`
	Success     bool        `json:"success"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt time.Time   `json:"completed_at"`
	Error       string      `json:"error,omitempty"`
}

// SyncStatus is the snapshot shown to the application and operators
type SyncStatus struct {
	Pending         int            `json:"pending"`
	Exhausted       int            `json:"exhausted"`
	Completed       int            `json:"completed"`
	Failed          int            `json:"failed"`
	RemoteAvailable bool           `json:"remote_available"`
	EngineState     EngineState    `json:"engine_state"`
	LastSyncAt      *time.Time     `json:"last_sync_at,omitempty"`
	LastError       string         `json:"last_error,omitempty"`
	PendingByTable  map[string]int `json:"pending_by_table,omitempty"`
	RecentPending   []*QueueEntry  `json:"recent_pending,omitempty"`
}

// NeedsAttention counts entries an operator has to look at
func (s *SyncStatus) NeedsAttention() int {
	return s.Failed + s.Exhausted
}

// HealthLevel grades the sync subsystem
type HealthLevel string

const (
	HealthExcellent HealthLevel = "excellent"
	HealthGood      HealthLevel = "good"
	HealthFair      HealthLevel = "fair"
	HealthPoor      HealthLevel = "poor"
	HealthUnknown   HealthLevel = "unknown"
)

// HealthReport is the operator-facing health evaluation
type HealthReport struct {
	Overall         HealthLevel `json:"overall"`
	Score           int         `json:"score"`
	Issues          []string    `json:"issues"`
	Warnings        []string    `json:"warnings"`
	Recommendations []string    `json:"recommendations"`
}

// LevelForScore maps a 0-100 score to a HealthLevel
func LevelForScore(score int) HealthLevel {
	switch {
	case score >= 90:
		return HealthExcellent
	case score >= 75:
		return HealthGood
	case score >= 50:
		return HealthFair
	default:
		return HealthPoor
	}
}
