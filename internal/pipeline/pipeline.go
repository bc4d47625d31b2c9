package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ppiankov/hazardlog/internal/collect"
	"github.com/ppiankov/hazardlog/internal/llm"
	"github.com/ppiankov/hazardlog/internal/metrics"
	"github.com/ppiankov/hazardlog/internal/model"
	"github.com/ppiankov/hazardlog/internal/reconcile"
	"github.com/ppiankov/hazardlog/internal/store"
	"github.com/ppiankov/hazardlog/internal/worker"
)

// Options tune one pipeline invocation.
type Options struct {
	RunID  string
	DryRun bool
	Logger *slog.Logger
}

// Pipeline orchestrates one collection and reconciliation run: collectors
// run concurrently, their batches are combined in configuration order and
// handed to the engine as one incoming batch.
type Pipeline struct {
	collectors []collect.Collector
	engine     *reconcile.Engine
	summarizer *llm.Summarizer // Optional LLM summarizer (nil if disabled)
	renderer   *Renderer
	config     *model.Config
	logger     *slog.Logger
}

// NewPipeline creates a pipeline over collectors.
func NewPipeline(cfg *model.Config, collectors []collect.Collector, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engineOpts := reconcile.OptionsFromConfig(cfg, opts.RunID)
	engineOpts.DryRun = opts.DryRun

	var summarizer *llm.Summarizer
	if cfg.LLM.Provider != "" {
		s, err := llm.NewSummarizer(llm.ConfigFromModel(cfg.LLM))
		if err != nil {
			logger.Warn("LLM provider disabled", "error", err)
		} else {
			summarizer = s
		}
	}

	return &Pipeline{
		collectors: collectors,
		engine:     reconcile.NewEngine(engineOpts, logger),
		summarizer: summarizer,
		renderer:   NewRenderer(),
		config:     cfg,
		logger:     logger,
	}
}

// Engine exposes the reconciliation engine.
func (p *Pipeline) Engine() *reconcile.Engine {
	return p.engine
}

type collectJob struct {
	collector collect.Collector
}

type collectResult struct {
	events []model.Event
	stat   model.SourceStat
	err    error
}

func (r collectResult) GetError() error { return r.err }

func (j collectJob) Execute(ctx context.Context) worker.Result {
	start := time.Now()
	events, err := j.collector.Collect(ctx)
	stat := model.SourceStat{
		Name:     j.collector.Name(),
		Records:  len(events),
		Duration: time.Since(start),
	}
	if err != nil {
		stat.Error = err.Error()
	}
	return collectResult{events: events, stat: stat, err: err}
}

// Collect runs every collector and returns their combined batch in collector
// order. A failing collector contributes no records; the others proceed.
func (p *Pipeline) Collect(ctx context.Context) ([]model.Event, []model.SourceStat) {
	jobs := make([]worker.Job, len(p.collectors))
	for i, c := range p.collectors {
		jobs[i] = collectJob{collector: c}
	}

	var incoming []model.Event
	stats := make([]model.SourceStat, 0, len(jobs))
	for _, r := range worker.Run(ctx, p.config.Concurrency.Workers, jobs) {
		res := r.(collectResult)
		stats = append(stats, res.stat)
		if res.err != nil {
			p.logger.Warn("collector failed", "source", res.stat.Name, "error", res.err)
			continue
		}
		p.logger.Info("collected", "source", res.stat.Name, "records", res.stat.Records,
			"duration", res.stat.Duration.Round(time.Millisecond))
		incoming = append(incoming, res.events...)
	}
	return incoming, stats
}

// Run collects, reconciles and, when enabled, writes the LLM digest into the
// report. A degraded run returns the report with an error wrapping
// reconcile.ErrDegraded.
func (p *Pipeline) Run(ctx context.Context) (*model.Report, error) {
	incoming, stats := p.Collect(ctx)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}
	return p.Reconcile(ctx, incoming, stats)
}

// Reconcile hands one incoming batch to the engine.
func (p *Pipeline) Reconcile(ctx context.Context, incoming []model.Event, stats []model.SourceStat) (*model.Report, error) {
	report, err := p.engine.Run(ctx, incoming)
	if report != nil {
		report.Sources = stats
	}
	if err != nil && !errors.Is(err, reconcile.ErrDegraded) {
		return report, err
	}

	// The digest runs after the datasets are written and never changes them
	if p.summarizer != nil && p.summarizer.IsEnabled() {
		summary, sErr := p.summarizer.GenerateSummary(ctx, *report, p.publishedEvents())
		if sErr != nil {
			p.logger.Warn("LLM digest failed", "error", sErr)
		} else if summary != nil {
			report.LLM = summary
		}
	}
	return report, err
}

// publishedEvents reads back the Active store for the digest.
func (p *Pipeline) publishedEvents() []model.Event {
	res, err := store.NewJSONStore(p.config.Store.ActivePath, p.logger).Load()
	if err != nil {
		p.logger.Warn("reading active store for digest", "error", err)
		return nil
	}
	return res.Events
}

// RenderReport renders the report to the configured outputs and prints the
// summary.
func (p *Pipeline) RenderReport(report *model.Report, verbose bool) error {
	out := p.config.Output

	if out.ReportPath != "" {
		if err := p.renderer.RenderJSON(report, out.ReportPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			p.renderer.Printf("✓ Wrote JSON: %s\n", out.ReportPath)
		}
	}

	if out.MarkdownPath != "" {
		if err := p.renderer.RenderMarkdown(report, out.MarkdownPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			p.renderer.Printf("✓ Wrote Markdown: %s\n", out.MarkdownPath)
		}
	}

	// LLM digest goes to a separate file next to the Markdown report
	if report.LLM != nil && report.LLM.Enabled && out.MarkdownPath != "" {
		llmMdPath := strings.TrimSuffix(out.MarkdownPath, ".md") + ".llm.md"
		if err := p.renderer.RenderLLMMarkdown(llm.RenderSeparateMarkdown(report.LLM), llmMdPath); err != nil {
			p.logger.Warn("writing LLM digest failed", "error", err)
		} else if verbose {
			p.renderer.Printf("✓ Wrote LLM Summary: %s\n", llmMdPath)
		}
	}

	if out.MetricsPath != "" {
		if err := metrics.WriteTextfile(out.MetricsPath, report); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		if verbose {
			p.renderer.Printf("✓ Wrote metrics: %s\n", out.MetricsPath)
		}
	}

	p.renderer.RenderSummary(report)
	return nil
}
