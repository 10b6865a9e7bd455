package models

import "time"

// SyncStatus is the outcome of one seeding run.
type SyncStatus string

const (
	SyncCompleted SyncStatus = "completed"
	// SyncPartial means some documents were indexed and some failed.
	SyncPartial SyncStatus = "partial"
	SyncFailed  SyncStatus = "failed"
)

// SyncRun records one seeding pass over the entities of a single item type.
type SyncRun struct {
	ID         string     `json:"id"`
	ItemType   ItemType   `json:"itemType"`
	Status     SyncStatus `json:"status"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt time.Time  `json:"finishedAt"`
	// Candidates is the number of entities offered, Skipped those already indexed.
	Candidates      int    `json:"candidates"`
	Skipped         int    `json:"skipped"`
	Indexed         int    `json:"indexed"`
	MappingFailures int    `json:"mappingFailures"`
	ItemFailures    int    `json:"itemFailures"`
	FailedBatches   []int  `json:"failedBatches,omitempty"`
	Error           string `json:"error,omitempty"`
}
