// Package title derives an artifact headline under a hard length budget.
// Everything here is pure and deterministic: the same topic, content and
// configuration always produce the same title.
package title

import (
	"regexp"
	"strconv"
	"strings"

	"cyber-research-service/internal/domain/model"
)

// Config bounds generated titles. MaxLength is a hard cap, MinLength a soft
// floor used when stripping phrases.
type Config struct {
	MaxLength int
	MinLength int
	Style     string // engaging | technical | formal
}

// Options carries format-specific title parameters.
type Options struct {
	ChapterNumber int
	ReportType    string
}

type Generator struct {
	cfg Config
}

func NewGenerator(cfg Config) *Generator {
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 80
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = 20
	}
	if cfg.Style == "" {
		cfg.Style = "engaging"
	}
	return &Generator{cfg: cfg}
}

// contentSample bounds how much draft content keyword extraction looks at.
const contentSample = 500

var wordRe = regexp.MustCompile(`[a-zA-Z]+`)

// securityTerms are preferred over generic words during keyword extraction.
var securityTerms = map[string]bool{
	"threat": true, "security": true, "attack": true, "defense": true,
	"vulnerability": true, "breach": true, "malware": true, "ransomware": true,
	"phishing": true, "encryption": true, "firewall": true, "intrusion": true,
	"detection": true, "prevention": true, "incident": true, "response": true,
	"forensics": true, "compliance": true, "risk": true, "assessment": true,
	"audit": true, "penetration": true, "testing": true, "authentication": true,
	"authorization": true, "identity": true, "access": true, "management": true,
	"cloud": true, "network": true, "endpoint": true, "infrastructure": true,
	"data": true, "privacy": true, "governance": true, "framework": true,
	"cyber": true, "digital": true, "resilience": true, "zero": true,
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "about": true,
	"into": true, "through": true, "during": true, "before": true,
	"after": true, "above": true, "below": true, "over": true, "under": true,
	"again": true, "further": true, "then": true, "once": true, "very": true,
	"also": true, "just": true, "now": true, "how": true, "what": true,
	"where": true, "when": true, "why": true, "which": true, "who": true,
	"but": true, "not": true, "are": true, "was": true, "were": true,
	"this": true, "that": true, "these": true, "those": true, "you": true,
	"your": true, "their": true, "its": true, "from": true, "has": true,
	"have": true, "can": true, "will": true, "modern": true,
}

// redundantPhrases are stripped, longest first, when a candidate overflows.
var redundantPhrases = []string{
	"The Ultimate Guide to",
	"A Comprehensive Guide to",
	"A Complete Guide to",
	"Advanced Techniques for",
	"Professional Guide to",
	"Complete Analysis of",
	"An Introduction to",
	"Best Practices for",
	"Understanding the",
	": A Complete Guide",
}

// abbreviations substitute long security terms when phrase stripping is not
// enough. Order matters: longer forms first.
var abbreviations = [][2]string{
	{"Information Security", "InfoSec"},
	{"Application Security", "AppSec"},
	{"Network Security", "NetSec"},
	{"Cloud Security", "CloudSec"},
	{"Cybersecurity", "CyberSec"},
	{"Infrastructure", "Infra"},
	{"Implementation", "Impl"},
	{"Management", "Mgmt"},
}

// Generate produces a title for the given topic and draft content, bounded by
// the configured maximum length. It never returns an empty string.
func (g *Generator) Generate(topic, content string, format model.OutputFormat, opts Options) string {
	keywords := g.extractKeywords(topic, content)
	if len(keywords) == 0 {
		// Degenerate input (pure stop words, symbols): plain truncation of
		// the topic, with the format prefix where one applies.
		return g.fallback(topic, format, opts)
	}

	var base string
	switch format {
	case model.FormatLongForm:
		base = g.chapterTitle(keywords, opts)
	case model.FormatStructuredReport:
		base = g.reportTitle(keywords, opts)
	default:
		base = g.blogTitle(topic, keywords)
	}
	return Shorten(base, g.cfg.MaxLength)
}

func (g *Generator) extractKeywords(topic, content string) []string {
	var words []string
	words = append(words, tokenize(topic)...)
	if content != "" {
		sample := content
		if len(sample) > contentSample {
			sample = sample[:contentSample]
		}
		for _, w := range tokenize(sample) {
			if securityTerms[w] {
				words = append(words, w)
			}
		}
	}

	seen := make(map[string]bool)
	var keywords []string
	// Security vocabulary first, then whatever else the topic carried.
	for _, w := range words {
		if !seen[w] && !stopWords[w] && securityTerms[w] {
			seen[w] = true
			keywords = append(keywords, w)
		}
	}
	for _, w := range words {
		if len(keywords) >= 6 {
			break
		}
		if !seen[w] && !stopWords[w] {
			seen[w] = true
			keywords = append(keywords, w)
		}
	}
	if len(keywords) > 6 {
		keywords = keywords[:6]
	}
	return keywords
}

func tokenize(text string) []string {
	var out []string
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if len(w) > 2 {
			out = append(out, w)
		}
	}
	return out
}

func (g *Generator) blogTitle(topic string, kw []string) string {
	if len(kw) == 1 {
		return titleCase(kw[0]) + " Essentials"
	}
	var patterns []string
	k0, k1 := titleCase(kw[0]), titleCase(kw[1])
	switch g.cfg.Style {
	case "technical":
		patterns = []string{
			k0 + " " + k1 + ": Technical Analysis",
			"Implementing " + k0 + " in Enterprise Environments",
			k0 + " Architecture and " + k1,
		}
	case "formal":
		patterns = []string{
			k0 + " " + k1 + ": Professional Overview",
			"Security Analysis: " + k0 + " and " + k1,
			"Enterprise " + k0 + " " + k1,
		}
	default: // engaging
		patterns = []string{
			k0 + " " + k1 + ": A Complete Guide",
			"Understanding " + k0 + " in " + k1,
			k0 + " Best Practices",
		}
	}
	for _, p := range patterns {
		if len(p) <= g.cfg.MaxLength {
			return p
		}
	}
	// No pattern fits: join the strongest keywords.
	parts := kw
	if len(parts) > 3 {
		parts = parts[:3]
	}
	joined := make([]string, len(parts))
	for i, w := range parts {
		joined[i] = titleCase(w)
	}
	return strings.Join(joined, " ")
}

func (g *Generator) chapterTitle(kw []string, opts Options) string {
	num := opts.ChapterNumber
	if num <= 0 {
		num = 1
	}
	prefix := "Chapter " + strconv.Itoa(num) + ": "
	body := titleCase(kw[0])
	if len(kw) >= 2 {
		body = titleCase(kw[0]) + " and " + titleCase(kw[1])
	}
	t := prefix + body
	if len(kw) > 2 && len(t) < g.cfg.MaxLength-20 {
		t += " - " + titleCase(kw[2])
	}
	return t
}

func (g *Generator) reportTitle(kw []string, opts Options) string {
	prefix := reportPrefix(kw, opts.ReportType)
	body := titleCase(kw[0])
	if len(kw) >= 2 {
		body = titleCase(kw[0]) + " " + titleCase(kw[1])
	}
	return prefix + ": " + body
}

func reportPrefix(kw []string, reportType string) string {
	has := func(w string) bool {
		for _, k := range kw {
			if k == w {
				return true
			}
		}
		return false
	}
	switch {
	case has("threat") || has("attack"):
		return "Threat Assessment"
	case has("risk") || has("vulnerability"):
		return "Risk Analysis"
	case has("incident") || has("response"):
		return "Incident Analysis"
	case reportType == "risk_analysis":
		return "Risk Analysis"
	case reportType == "incident_analysis":
		return "Incident Analysis"
	default:
		return "Security Analysis"
	}
}

func (g *Generator) fallback(topic string, format model.OutputFormat, opts Options) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = "Untitled"
	}
	switch format {
	case model.FormatLongForm:
		num := opts.ChapterNumber
		if num <= 0 {
			num = 1
		}
		prefix := "Chapter " + strconv.Itoa(num) + ": "
		return prefix + Shorten(topic, max(g.cfg.MaxLength-len(prefix), 8))
	case model.FormatStructuredReport:
		return "Security Analysis: " + Shorten(topic, max(g.cfg.MaxLength-20, 8))
	default:
		return Shorten(topic, g.cfg.MaxLength)
	}
}

// Shorten returns a non-empty string of at most maxLen characters preserving
// as much of text as possible: redundant phrases are stripped first, then
// known abbreviations are substituted, then the text is cut at the last word
// boundary past 70% of the budget (with an ellipsis otherwise). Shorten is
// idempotent: applying it to its own output is a no-op.
func Shorten(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return truncate("Untitled", maxLen)
	}
	if len([]rune(text)) <= maxLen {
		return text
	}

	candidate := text
	for _, phrase := range redundantPhrases {
		stripped := strings.TrimSpace(strings.ReplaceAll(candidate, phrase, ""))
		if stripped == "" {
			continue
		}
		candidate = stripped
		if len([]rune(candidate)) <= maxLen {
			return candidate
		}
	}
	for _, sub := range abbreviations {
		candidate = strings.ReplaceAll(candidate, sub[0], sub[1])
		if len([]rune(candidate)) <= maxLen {
			return candidate
		}
	}
	return truncate(candidate, maxLen)
}

func truncate(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen <= 4 {
		return string(runes[:maxLen])
	}

	cut := string(runes[:maxLen])
	if i := strings.LastIndex(cut, " "); i >= (maxLen*7)/10 {
		// A word boundary keeps most of the budget: cut there, no ellipsis.
		if trimmed := strings.TrimRight(cut[:i], ",:;- "); trimmed != "" {
			return trimmed
		}
	}
	trimmed := strings.TrimRight(string(runes[:maxLen-3]), ",:;- ")
	if trimmed == "" {
		return string(runes[:maxLen])
	}
	return trimmed + "..."
}

func titleCase(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + w[1:]
}
