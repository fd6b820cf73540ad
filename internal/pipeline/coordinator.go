// Package pipeline runs one research session's stage sequence end to end and
// produces its artifact.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"cyber-research-service/internal/domain"
	"cyber-research-service/internal/domain/model"
	"cyber-research-service/internal/domain/ports/adapter"
	"cyber-research-service/internal/infra/metrics"
	"cyber-research-service/internal/title"
	"cyber-research-service/internal/workflow"
)

// draftSample bounds how much of the draft the title generator analyzes.
const draftSample = 1000

// Config tunes the coordinator. ExpertRetries is the number of retry attempts
// after the first failure of an expert call; 0 disables retries entirely.
type Config struct {
	ExpertRetries int
	RetryBackoff  time.Duration
}

// ProgressFn receives every status change of the run. The coordinator never
// touches session state directly; all mutation flows through this sink.
type ProgressFn func(status model.Status, progress int, step string)

// Artifact bundles the result with the workflow projection taken once at the
// end of the run. Result.Content never contains ledger data.
type Artifact struct {
	Result   *model.ResearchResult
	Workflow *model.WorkflowMetadata
}

type Coordinator struct {
	experts  []adapter.ExpertAdapter
	renderer adapter.ContentRenderer
	titles   *title.Generator
	cfg      Config
	log      *zerolog.Logger
}

func New(experts []adapter.ExpertAdapter, renderer adapter.ContentRenderer, titles *title.Generator, cfg Config, log *zerolog.Logger) *Coordinator {
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	return &Coordinator{experts: experts, renderer: renderer, titles: titles, cfg: cfg, log: log}
}

// Run executes the fixed stage sequence: every expert in order, then the
// two-pass synthesis. Any expert or synthesis failure aborts the whole
// session; no partial artifact is ever produced.
func (c *Coordinator) Run(ctx context.Context, sess *model.ResearchSession, led *workflow.Ledger, report ProgressFn) (*Artifact, error) {
	req := sess.Request
	report(model.StatusInitializing, 10, "Preparing analysis units")

	acx := adapter.AnalysisContext{
		Topic:             req.Topic,
		Directions:        req.ContentDirections,
		OutputFormat:      req.OutputFormat,
		Audience:          req.Audience,
		Depth:             req.Depth,
		Style:             req.Style,
		IncludeHistorical: req.IncludeHistorical,
	}

	analyses := make([]*adapter.Analysis, 0, len(c.experts))
	for i, ex := range c.experts {
		status, progress, step := stageProgress(req.OutputFormat, i)
		report(status, progress, step)

		aid := led.Start(ex.Name(), ex.Type(), "topic_analysis", map[string]any{
			"topic":  req.Topic,
			"format": string(req.OutputFormat),
		})
		start := time.Now()
		an, attempts, err := c.callExpert(ctx, ex, acx)
		metrics.ObserveStage(ex.Name(), time.Since(start).Seconds(), err == nil)
		if err != nil {
			led.Fail(aid, err.Error(), attempts)
			c.log.Error().Err(err).Str("session_id", sess.ID).Str("unit", ex.Name()).Msg("analysis stage failed")
			return nil, fmt.Errorf("%w: %s: %s", domain.ErrExpertFailure, ex.Name(), err.Error())
		}
		led.Complete(aid, analysisDigest(an), an.Sources)
		analyses = append(analyses, an)
	}

	report(model.StatusGenerating, 80, "Synthesizing content")
	sid := led.Start("synthesizer", "ContentSynthesizer", "synthesize_content", map[string]any{
		"format": string(req.OutputFormat),
	})

	params := adapter.RenderParams{
		Topic:       req.Topic,
		Sections:    c.sections(analyses),
		Suggestions: collectSuggestions(analyses),
		Sources:     collectSources(analyses),
		Request:     req,
	}

	// Pass 1: draft with the raw topic as a placeholder title. The title
	// generator needs draft content to pick keywords, but the chosen title
	// must appear inside the final content, hence the second pass.
	params.Title = req.Topic
	draft, err := c.renderer.Render(params)
	if err != nil {
		led.Fail(sid, err.Error(), 0)
		return nil, fmt.Errorf("%w: %s", domain.ErrSynthesisFailure, err.Error())
	}

	sample := draft
	if len(sample) > draftSample {
		sample = sample[:draftSample]
	}
	artifactTitle := c.titles.Generate(req.Topic, sample, req.OutputFormat, title.Options{
		ChapterNumber: req.ChapterNumber,
		ReportType:    req.ReportType,
	})

	// Pass 2: identical params, final title.
	params.Title = artifactTitle
	content, err := c.renderer.Render(params)
	if err != nil {
		led.Fail(sid, err.Error(), 0)
		return nil, fmt.Errorf("%w: %s", domain.ErrSynthesisFailure, err.Error())
	}
	led.Complete(sid, map[string]any{
		"final_content_length": len(content),
		"title":                artifactTitle,
	}, nil)

	result := &model.ResearchResult{
		SessionID: sess.ID,
		Title:     artifactTitle,
		Content:   content,
		Summary:   c.renderer.Summary(content),
		Tags:      c.renderer.Tags(req.Topic, content),
		Sources:   params.Sources,
		Metadata: model.TechnicalMetadata{
			Style:        req.Style,
			Depth:        req.Depth,
			Audience:     req.Audience,
			OutputFormat: req.OutputFormat,
		},
		CreatedAt: time.Now(),
	}
	if req.OutputFormat == model.FormatLongForm {
		result.KeyConcepts = c.renderer.KeyConcepts(content)
		result.LearningObjectives = objectives(req)
		result.Exercises = c.renderer.Exercises(req.Topic, result.LearningObjectives)
	}

	return &Artifact{Result: result, Workflow: led.Snapshot()}, nil
}

// callExpert invokes one expert with the configured retry policy. Returns the
// number of retry attempts made alongside any final error.
func (c *Coordinator) callExpert(ctx context.Context, ex adapter.ExpertAdapter, acx adapter.AnalysisContext) (*adapter.Analysis, int, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.ExpertRetries; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.RetryBackoff * (1 << (attempt - 1))
			select {
			case <-ctx.Done():
				return nil, attempt - 1, ctx.Err()
			case <-time.After(backoff):
			}
			c.log.Warn().Str("unit", ex.Name()).Int("attempt", attempt).Msg("retrying analysis call")
		}
		an, err := ex.Analyze(ctx, acx)
		if err == nil {
			return an, attempt, nil
		}
		lastErr = err
	}
	return nil, c.cfg.ExpertRetries, lastErr
}

// stageProgress maps an expert stage to the status and progress reported
// before it runs. Long-form and report pipelines surface the later stages as
// Analyzing; the short formats stay in Researching until synthesis.
func stageProgress(format model.OutputFormat, stage int) (model.Status, int, string) {
	steps := []string{
		"Security analysis in progress",
		"Threat intelligence analysis in progress",
		"Historical context analysis in progress",
	}
	step := "Analysis in progress"
	if stage < len(steps) {
		step = steps[stage]
	}

	deep := format == model.FormatLongForm || format == model.FormatStructuredReport
	switch {
	case stage == 0:
		return model.StatusResearching, 30, step
	case deep && stage == 1:
		return model.StatusAnalyzing, 50, step
	case deep:
		return model.StatusAnalyzing, 65, step
	case stage == 1:
		return model.StatusResearching, 45, step
	default:
		return model.StatusResearching, 60, step
	}
}

func (c *Coordinator) sections(analyses []*adapter.Analysis) []adapter.ExpertSection {
	headings := []string{"Security Landscape", "Threat Intelligence", "Historical Perspective"}
	out := make([]adapter.ExpertSection, 0, len(analyses))
	for i, an := range analyses {
		heading := "Analysis"
		if i < len(headings) {
			heading = headings[i]
		}
		out = append(out, adapter.ExpertSection{Heading: heading, Body: an.Content})
	}
	return out
}

// analysisDigest is what goes into the ledger instead of the full payload,
// to bound ledger size.
func analysisDigest(an *adapter.Analysis) map[string]any {
	return map[string]any{
		"content_length":    len(an.Content),
		"suggestions_count": len(an.Suggestions),
		"confidence":        an.Confidence,
	}
}

func collectSuggestions(analyses []*adapter.Analysis) []string {
	var out []string
	for _, an := range analyses {
		out = append(out, an.Suggestions...)
	}
	return out
}

// collectSources returns the deduplicated, sorted union of all expert
// sources.
func collectSources(analyses []*adapter.Analysis) []string {
	seen := make(map[string]bool)
	var out []string
	for _, an := range analyses {
		for _, s := range an.Sources {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func objectives(req model.ResearchRequest) []string {
	if len(req.LearningObjectives) > 0 {
		return req.LearningObjectives
	}
	return []string{
		"Understand the key concepts of " + req.Topic,
		"Analyze the historical context of " + req.Topic,
		"Apply security principles related to " + req.Topic,
	}
}
