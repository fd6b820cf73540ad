package adapter

import (
	"context"

	"cyber-research-service/internal/domain/model"
)

// AnalysisContext carries everything an expert needs to analyze a topic.
type AnalysisContext struct {
	Topic             string
	Directions        string
	OutputFormat      model.OutputFormat
	Audience          model.Audience
	Depth             model.Depth
	Style             string
	IncludeHistorical bool
}

// Analysis is one expert's contribution.
type Analysis struct {
	Content     string
	Sources     []string
	Confidence  float64
	Suggestions []string
}

// ExpertAdapter is the port for one opaque analysis unit. Analyze is the only
// long-running call in the pipeline and must honor ctx cancellation.
type ExpertAdapter interface {
	Name() string
	Type() string
	Analyze(ctx context.Context, ac AnalysisContext) (*Analysis, error)
}
