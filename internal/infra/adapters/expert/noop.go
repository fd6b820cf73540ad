package expert

import (
	"context"
	"strings"
)

var _ ChatClient = (*NoopClient)(nil)

// NoopClient fabricates deterministic replies without any network call. It
// backs the "noop" provider used in development and CI.
type NoopClient struct{}

func NewNoopClient() *NoopClient { return &NoopClient{} }

func (NoopClient) Chat(_ context.Context, system, user string) (string, error) {
	topic := "the requested topic"
	for _, line := range strings.Split(user, "\n") {
		if after, ok := strings.CutPrefix(line, "Topic: "); ok {
			topic = after
			break
		}
	}
	role := "analyst"
	if i := strings.Index(system, "."); i > 0 {
		role = strings.TrimPrefix(system[:i], "You are a ")
	}

	var b strings.Builder
	b.WriteString("As a " + role + ", here is an offline analysis of " + topic + ". ")
	b.WriteString("This content is generated locally for development and carries no real findings.\n\n")
	b.WriteString("Key observations cover the fundamentals of " + topic + " and typical defensive measures.\n\n")
	b.WriteString("Sources:\n")
	b.WriteString("- https://attack.mitre.org\n")
	b.WriteString("- https://www.cisa.gov/news-events\n")
	b.WriteString("Suggestions:\n")
	b.WriteString("- Include a practical checklist for " + topic + "\n")
	return b.String(), nil
}
