package model

import "time"

// ActivityStatus is the lifecycle state of a single pipeline stage.
type ActivityStatus string

const (
	ActivityPending   ActivityStatus = "pending"
	ActivityRunning   ActivityStatus = "running"
	ActivityCompleted ActivityStatus = "completed"
	ActivityFailed    ActivityStatus = "failed"
)

func (s ActivityStatus) Terminal() bool {
	return s == ActivityCompleted || s == ActivityFailed
}

// ActivityRecord is one stage of a session's pipeline: one expert call or the
// synthesis step. StepOrder is assigned at stage start and is strictly
// increasing within a session. Input and Output hold bounded digests, never
// full payloads.
type ActivityRecord struct {
	ID         string
	SessionID  string
	ExpertName string
	ExpertType string
	StepName   string
	StepOrder  int
	Status     ActivityStatus

	Input   map[string]any
	Output  map[string]any
	Sources []string

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	ErrorMessage string
	RetryCount   int
}
