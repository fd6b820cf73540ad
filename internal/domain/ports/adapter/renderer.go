package adapter

import "cyber-research-service/internal/domain/model"

// ExpertSection is one expert's rendered block.
type ExpertSection struct {
	Heading string
	Body    string
}

// RenderParams is the input to one synthesis pass. The same params rendered
// twice with different titles must produce identical bodies.
type RenderParams struct {
	Title       string
	Topic       string
	Sections    []ExpertSection
	Suggestions []string
	Sources     []string
	Request     model.ResearchRequest
}

// ContentRenderer is the port for template rendering and the small derived
// views of the final content (summary, tags, key concepts, exercises).
type ContentRenderer interface {
	Render(p RenderParams) (string, error)
	Summary(content string) string
	Tags(topic, content string) []string
	KeyConcepts(content string) []string
	Exercises(topic string, objectives []string) []string
}
