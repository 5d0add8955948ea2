package data

import "time"

// Trigger identifies what started a sync pass.
type Trigger string

const (
	TriggerPeriodic Trigger = "periodic"
	TriggerOnDemand Trigger = "on-demand"
	TriggerManual   Trigger = "manual" // explicit restore of a deleted item
)

// CycleRecord is one finished sync pass. Error is the catalog-level
// failure that aborted the pass, empty on success; per-item failures
// only bump Failed.
type CycleRecord struct {
	StartedAt      time.Time
	FinishedAt     time.Time
	Trigger        Trigger
	Fetched        int
	SkippedExists  int
	SkippedDeleted int
	Failed         int
	Error          string
}
