package model

import "time"

// WorkflowSummary aggregates a session's pipeline run.
type WorkflowSummary struct {
	SessionID      string    `json:"session_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	ExpertsUsed    []string  `json:"experts_used"`
	TotalSteps     int       `json:"total_steps"`
	CompletedSteps int       `json:"completed_steps"`
	FailedSteps    int       `json:"failed_steps"`
}

// ExpertContribution summarizes what one expert contributed across its steps.
type ExpertContribution struct {
	ExpertType     string        `json:"expert_type"`
	StepsCompleted int           `json:"steps_completed"`
	TotalDuration  time.Duration `json:"total_duration"`
	Sources        []string      `json:"sources"`
	Failed         bool          `json:"failed"`
}

// TimelineStep is one entry of the ordered generation timeline.
type TimelineStep struct {
	StepOrder int            `json:"step_order"`
	Expert    string         `json:"expert"`
	Action    string         `json:"action"`
	Status    ActivityStatus `json:"status"`
	Duration  time.Duration  `json:"duration"`
	StartedAt time.Time      `json:"started_at"`
}

// WorkflowMetadata is the read-only projection of a session's activity
// ledger: attached to the session when it terminates, queryable on its own,
// never mixed into the artifact content.
type WorkflowMetadata struct {
	Summary       WorkflowSummary               `json:"summary"`
	Activities    []ActivityRecord              `json:"activities"`
	Contributions map[string]ExpertContribution `json:"contributions"`
	Timeline      []TimelineStep                `json:"timeline"`
}
