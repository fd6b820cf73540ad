package model

import (
	"time"

	"github.com/google/uuid"

	"cyber-research-service/internal/domain"
)

// Status is the lifecycle state of a research session.
type Status string

const (
	StatusPending      Status = "pending"
	StatusInitializing Status = "initializing"
	StatusResearching  Status = "researching"
	StatusAnalyzing    Status = "analyzing"
	StatusGenerating   Status = "generating"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// statusRank orders the non-terminal path. Transitions may skip forward but
// never move backward; Failed is reachable from any non-terminal state.
var statusRank = map[Status]int{
	StatusPending:      0,
	StatusInitializing: 1,
	StatusResearching:  2,
	StatusAnalyzing:    3,
	StatusGenerating:   4,
	StatusCompleted:    5,
}

func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok || s == StatusFailed
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to next is a legal step in the
// session state machine.
func (s Status) CanTransition(next Status) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to >= from
}

// OutputFormat selects the shape of the generated artifact.
type OutputFormat string

const (
	FormatShortForm        OutputFormat = "short_form"
	FormatLongForm         OutputFormat = "long_form"
	FormatStructuredReport OutputFormat = "structured_report"
	FormatInteractive      OutputFormat = "interactive"
)

type Audience string

const (
	AudienceGeneralPublic  Audience = "general_public"
	AudienceProfessionals  Audience = "cybersecurity_professionals"
	AudienceStudents       Audience = "students"
	AudienceExecutives     Audience = "executives"
	AudienceTechnicalTeams Audience = "technical_teams"
)

type Depth string

const (
	DepthBeginner     Depth = "beginner"
	DepthIntermediate Depth = "intermediate"
	DepthAdvanced     Depth = "advanced"
	DepthExpert       Depth = "expert"
)

// ResearchRequest is the submission payload. Validation tags are enforced by
// the use case before a session row is ever created.
type ResearchRequest struct {
	Topic             string       `json:"topic" yaml:"topic" validate:"required,min=3,max=500"`
	ContentDirections string       `json:"content_directions" yaml:"content_directions" validate:"required,max=2000"`
	OutputFormat      OutputFormat `json:"output_format" yaml:"output_format" validate:"required,oneof=short_form long_form structured_report interactive"`
	Audience          Audience     `json:"target_audience" yaml:"target_audience" validate:"required,oneof=general_public cybersecurity_professionals students executives technical_teams"`
	Depth             Depth        `json:"technical_depth" yaml:"technical_depth" validate:"required,oneof=beginner intermediate advanced expert"`
	IncludeHistorical bool         `json:"include_historical_context" yaml:"include_historical_context"`
	Style             string       `json:"style,omitempty" yaml:"style" validate:"omitempty,oneof=educational technical narrative formal"`

	// Long-form (chapter) fields.
	ChapterNumber      int      `json:"chapter_number,omitempty" yaml:"chapter_number" validate:"omitempty,min=1,max=99"`
	LearningObjectives []string `json:"learning_objectives,omitempty" yaml:"learning_objectives" validate:"omitempty,max=10,dive,max=300"`

	// Structured-report fields.
	ReportType      string `json:"report_type,omitempty" yaml:"report_type" validate:"omitempty,oneof=threat_assessment risk_analysis incident_analysis security_analysis"`
	Confidentiality string `json:"confidentiality,omitempty" yaml:"confidentiality" validate:"omitempty,oneof=public internal confidential restricted"`
}

// ResearchSession is one end-to-end generation request and its tracked
// lifecycle. Status and Progress are always updated together under a single
// store mutation; the use case is the only writer.
type ResearchSession struct {
	ID           string
	Request      ResearchRequest
	Status       Status
	Progress     int // 0..100, non-decreasing while non-terminal
	CurrentStep  string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Result is set exactly once, when Status becomes Completed.
	Result *ResearchResult
	// Workflow is the ledger projection, set together with Result (or on
	// failure). Never merged into Result.Content.
	Workflow *WorkflowMetadata
}

func NewResearchSession(req ResearchRequest) *ResearchSession {
	now := time.Now()
	return &ResearchSession{
		ID:          uuid.NewString(),
		Request:     req,
		Status:      StatusPending,
		Progress:    0,
		CurrentStep: "queued",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ApplyProgress mutates status, progress and step as one transition,
// enforcing the state machine and progress monotonicity. Completed forces
// progress to 100; Failed freezes progress at its last reported value.
func (s *ResearchSession) ApplyProgress(next Status, progress int, step string) error {
	if s.Status.Terminal() {
		return domain.ErrSessionTerminal
	}
	if !s.Status.CanTransition(next) {
		return domain.ErrInvalidArgument
	}
	switch {
	case next == StatusCompleted:
		progress = 100
	case next == StatusFailed:
		progress = s.Progress
	case progress < s.Progress:
		progress = s.Progress
	case progress > 100:
		progress = 100
	}
	s.Status = next
	s.Progress = progress
	if step != "" {
		s.CurrentStep = step
	}
	s.UpdatedAt = time.Now()
	return nil
}

// ProgressUpdate is the event pushed to live observers on every change.
type ProgressUpdate struct {
	SessionID    string `json:"session_id"`
	Status       Status `json:"status"`
	Progress     int    `json:"progress"`
	CurrentStep  string `json:"current_step"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func (s *ResearchSession) Update() ProgressUpdate {
	return ProgressUpdate{
		SessionID:    s.ID,
		Status:       s.Status,
		Progress:     s.Progress,
		CurrentStep:  s.CurrentStep,
		ErrorMessage: s.ErrorMessage,
	}
}
