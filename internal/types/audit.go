package types

import "time"

// AuditStatus is the recorded status of one acquisition attempt.
type AuditStatus string

const (
	// AuditOK means the attempt stored at least one bar (or verified that
	// coverage was already sufficient).
	AuditOK AuditStatus = "ok"
	// AuditEmpty means no source yielded any data.
	AuditEmpty AuditStatus = "empty"
	// AuditError means the attempt failed outright.
	AuditError AuditStatus = "error"
)

// AuditEntry is one append-only record of an acquisition attempt.
// Entries are never updated or deleted.
type AuditEntry struct {
	ID         int64
	RunID      string
	Symbol     string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     AuditStatus
	BarsFound  int
	BarsStored int
	ErrorMsg   string
	Source     string
}

// Outcome classifies the final state of one instrument's cascade run.
type Outcome string

const (
	// OutcomeSufficient means coverage reached the configured minimum.
	OutcomeSufficient Outcome = "sufficient"
	// OutcomePartial means some data was stored but coverage stayed below
	// the minimum.
	OutcomePartial Outcome = "partial"
	// OutcomeEmpty means no source contributed any bars.
	OutcomeEmpty Outcome = "empty"
	// OutcomeError means the run aborted with a non-source-local error.
	OutcomeError Outcome = "error"
)
