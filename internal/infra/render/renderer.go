// Package render produces the final artifact content from expert sections,
// plus the small derived views (summary, tags, key concepts, exercises).
package render

import (
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"cyber-research-service/internal/domain/model"
	"cyber-research-service/internal/domain/ports/adapter"
)

var _ adapter.ContentRenderer = (*Renderer)(nil)

type Renderer struct {
	templates *template.Template
}

func NewRenderer() *Renderer {
	return &Renderer{templates: template.Must(template.New("artifact").Parse(artifactTemplates))}
}

// templateInput is what the artifact templates see. Only presentation data;
// tracking fields never reach this struct.
type templateInput struct {
	Title       string
	Topic       string
	Sections    []adapter.ExpertSection
	Suggestions []string
	Sources     []string
	Date        string

	ChapterNumber   int
	ReportType      string
	Confidentiality string
	Audience        string
	Depth           string
}

func (r *Renderer) Render(p adapter.RenderParams) (string, error) {
	in := templateInput{
		Title:           p.Title,
		Topic:           p.Topic,
		Sections:        p.Sections,
		Suggestions:     p.Suggestions,
		Sources:         p.Sources,
		Date:            time.Now().Format("2006-01-02"),
		ChapterNumber:   p.Request.ChapterNumber,
		ReportType:      strings.ReplaceAll(p.Request.ReportType, "_", " "),
		Confidentiality: strings.ToUpper(p.Request.Confidentiality),
		Audience:        strings.ReplaceAll(string(p.Request.Audience), "_", " "),
		Depth:           string(p.Request.Depth),
	}

	name := templateFor(p.Request.OutputFormat)
	var b strings.Builder
	if err := r.templates.ExecuteTemplate(&b, name, in); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return b.String(), nil
}

func templateFor(format model.OutputFormat) string {
	switch format {
	case model.FormatLongForm:
		return "chapter"
	case model.FormatStructuredReport:
		return "report"
	case model.FormatInteractive:
		return "interactive"
	default:
		return "blog"
	}
}

// Summary returns the first prose paragraph, clipped at a word boundary.
func (r *Renderer) Summary(content string) string {
	const maxLen = 300
	for _, para := range strings.Split(content, "\n\n") {
		p := strings.TrimSpace(para)
		if p == "" || strings.HasPrefix(p, "#") || strings.HasPrefix(p, "-") || strings.HasPrefix(p, "|") {
			continue
		}
		p = strings.ReplaceAll(p, "\n", " ")
		if len(p) <= maxLen {
			return p
		}
		cut := strings.LastIndex(p[:maxLen], " ")
		if cut <= 0 {
			cut = maxLen
		}
		return strings.TrimRight(p[:cut], ",:;. ") + "..."
	}
	return ""
}

// Tags picks the most frequent non-trivial words of the content, seeded with
// the topic words.
func (r *Renderer) Tags(topic, content string) []string {
	const maxTags = 6

	seen := make(map[string]bool)
	var tags []string
	add := func(tag string) {
		if tag == "" || seen[tag] || len(tags) >= maxTags {
			return
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	for _, w := range strings.Fields(strings.ToLower(topic)) {
		add(cleanWord(w))
	}

	counts := make(map[string]int)
	for _, w := range strings.Fields(strings.ToLower(content)) {
		w = cleanWord(w)
		if len(w) < 5 || tagStopWords[w] {
			continue
		}
		counts[w]++
	}
	type wc struct {
		word  string
		count int
	}
	ranked := make([]wc, 0, len(counts))
	for w, c := range counts {
		if c >= 3 {
			ranked = append(ranked, wc{w, c})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].word < ranked[j].word
	})
	for _, e := range ranked {
		add(e.word)
	}
	return tags
}

// KeyConcepts lists the section headings of the content.
func (r *Renderer) KeyConcepts(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if after, ok := strings.CutPrefix(line, "## "); ok {
			out = append(out, strings.TrimSpace(after))
		}
	}
	return out
}

// Exercises derives one practice task per learning objective, plus a closing
// scenario task.
func (r *Renderer) Exercises(topic string, objectives []string) []string {
	out := make([]string, 0, len(objectives)+1)
	for i, obj := range objectives {
		out = append(out, fmt.Sprintf("Exercise %d: %s. Write a short assessment demonstrating this.", i+1, strings.TrimRight(obj, ".")))
	}
	out = append(out, fmt.Sprintf("Scenario exercise: you are responding to an incident involving %s. Outline your first three actions and justify each.", topic))
	return out
}

func cleanWord(w string) string {
	return strings.Trim(w, ".,;:!?()[]{}\"'`*#")
}

var tagStopWords = map[string]bool{
	"about": true, "after": true, "against": true, "because": true,
	"being": true, "between": true, "could": true, "every": true,
	"first": true, "their": true, "there": true, "these": true,
	"those": true, "through": true, "under": true, "where": true,
	"which": true, "while": true, "would": true, "should": true,
	"other": true, "often": true, "including": true, "during": true,
	"within": true, "across": true, "organizations": true,
}
