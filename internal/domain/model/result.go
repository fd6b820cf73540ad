package model

import "time"

// TechnicalMetadata records the generation parameters used for an artifact.
// It is deliberately separate from WorkflowMetadata: technical parameters are
// part of the result, process history is not.
type TechnicalMetadata struct {
	Style        string       `json:"style"`
	Depth        Depth        `json:"technical_depth"`
	Audience     Audience     `json:"target_audience"`
	OutputFormat OutputFormat `json:"output_format"`
}

// ResearchResult is the artifact of a completed session. Content is the only
// externally visible text and must never contain ledger or process data.
type ResearchResult struct {
	SessionID string   `json:"session_id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Summary   string   `json:"summary,omitempty"`
	Tags      []string `json:"tags,omitempty"`

	// Long-form extras.
	KeyConcepts        []string `json:"key_concepts,omitempty"`
	Exercises          []string `json:"exercises,omitempty"`
	LearningObjectives []string `json:"learning_objectives,omitempty"`

	Sources   []string          `json:"sources"`
	Metadata  TechnicalMetadata `json:"technical_metadata"`
	CreatedAt time.Time         `json:"created_at"`
}
