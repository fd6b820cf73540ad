package expert

import (
	"context"
	"fmt"
	"strings"

	"cyber-research-service/internal/domain/ports/adapter"
)

var _ adapter.ExpertAdapter = (*chatExpert)(nil)

// chatExpert is one role-prompted analysis unit backed by a ChatClient.
type chatExpert struct {
	name   string
	typ    string
	role   string
	client ChatClient
}

func (e *chatExpert) Name() string { return e.name }
func (e *chatExpert) Type() string { return e.typ }

func (e *chatExpert) Analyze(ctx context.Context, acx adapter.AnalysisContext) (*adapter.Analysis, error) {
	reply, err := e.client.Chat(ctx, e.role, buildPrompt(acx))
	if err != nil {
		return nil, err
	}
	content, sources, suggestions := parseReply(reply)
	if content == "" {
		return nil, fmt.Errorf("%s returned no analysis content", e.name)
	}
	return &adapter.Analysis{
		Content:     content,
		Sources:     sources,
		Suggestions: suggestions,
		Confidence:  0.8,
	}, nil
}

// NewExperts builds the fixed analysis sequence: security analyst, threat
// researcher, historian. The order matters; downstream stages assume it.
func NewExperts(client ChatClient) []adapter.ExpertAdapter {
	return []adapter.ExpertAdapter{
		&chatExpert{
			name: "security_analyst",
			typ:  "SecurityAnalyst",
			role: "You are a senior security analyst. Assess the current threat landscape, " +
				"defensive posture, and practical mitigations for the given topic. " +
				"Be concrete about controls, detection opportunities and common misconfigurations.",
			client: client,
		},
		&chatExpert{
			name: "threat_researcher",
			typ:  "ThreatResearcher",
			role: "You are a threat researcher. Cover emerging attack techniques, active campaigns, " +
				"threat actor tradecraft and indicators relevant to the given topic. " +
				"Prefer recent, verifiable developments over speculation.",
			client: client,
		},
		&chatExpert{
			name: "historian",
			typ:  "CyberSecurityHistorian",
			role: "You are a cybersecurity historian. Trace how the given topic evolved: " +
				"landmark incidents, turning points, and lessons the industry drew from them.",
			client: client,
		},
	}
}

func buildPrompt(acx adapter.AnalysisContext) string {
	var b strings.Builder
	b.WriteString("Topic: " + acx.Topic + "\n")
	if acx.Directions != "" {
		b.WriteString("Directions: " + acx.Directions + "\n")
	}
	b.WriteString("Audience: " + string(acx.Audience) + "\n")
	b.WriteString("Technical depth: " + string(acx.Depth) + "\n")
	if acx.Style != "" {
		b.WriteString("Style: " + acx.Style + "\n")
	}
	if acx.IncludeHistorical {
		b.WriteString("Include historical context where relevant.\n")
	}
	b.WriteString("\nWrite your analysis as plain prose. ")
	b.WriteString("End with an optional 'Sources:' list of references (one per line) ")
	b.WriteString("and an optional 'Suggestions:' list of angles the final article should cover.\n")
	return b.String()
}

// parseReply splits the model reply into prose and the trailing Sources: /
// Suggestions: lists. Lists may appear in either order; anything before the
// first marker is content.
func parseReply(reply string) (content string, sources, suggestions []string) {
	lines := strings.Split(reply, "\n")
	section := ""
	var prose []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.EqualFold(trimmed, "sources:"):
			section = "sources"
			continue
		case strings.EqualFold(trimmed, "suggestions:"):
			section = "suggestions"
			continue
		}
		if section == "" {
			prose = append(prose, line)
			continue
		}
		item := strings.TrimSpace(strings.TrimLeft(trimmed, "-*0123456789. "))
		if item == "" {
			continue
		}
		if section == "sources" {
			sources = append(sources, item)
		} else {
			suggestions = append(suggestions, item)
		}
	}
	return strings.TrimSpace(strings.Join(prose, "\n")), sources, suggestions
}
