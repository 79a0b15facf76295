package sync

import "time"

// Action is what happened to a symbol's universe membership.
type Action string

const (
	ActionAdded   Action = "added"
	ActionRemoved Action = "removed"
	ActionUpdated Action = "updated"
)

// Change records a single universe-membership mutation made during a
// synchronization run (§4.5). Grounded on
// original_source/src/data/cache_entries_synchronizer.py's
// SynchronizationChange dataclass.
type Change struct {
	Type      string // e.g. "market_cap_update", "ipo_assignment", "delisting_cleanup", "etf_maintenance"
	Universe  string
	Symbol    string // empty for universe-level changes with no single symbol
	Action    Action
	Reason    string
	Timestamp time.Time
	Metadata  map[string]any
}

// TaskResult summarizes one reconciliation task's outcome.
type TaskResult struct {
	Name     string
	Status   string // "completed" or "failed"
	Changes  []Change
	Err      error
	Duration time.Duration
}

// Result is the outcome of one full synchronization run, returned to
// callers and used to build the sync_complete bus message.
type Result struct {
	StartedAt         time.Time
	Duration          time.Duration
	WithinWindow      bool
	TaskResults       []TaskResult
	TotalChanges      int
	AffectedUniverses []string
}
