package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/hazardlog/internal/collect"
	"github.com/ppiankov/hazardlog/internal/model"
	"github.com/ppiankov/hazardlog/internal/store"
)

type stubCollector struct {
	name   string
	events []model.Event
	err    error
	delay  time.Duration
}

func (s stubCollector) Name() string { return s.name }

func (s stubCollector) Collect(ctx context.Context) ([]model.Event, error) {
	time.Sleep(s.delay)
	return s.events, s.err
}

var runAt = time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) *model.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := model.DefaultConfig()
	cfg.Store.ActivePath = filepath.Join(dir, "events.json")
	cfg.Store.ArchivePath = filepath.Join(dir, "past_events.json")
	cfg.Store.BackupDir = filepath.Join(dir, "backups")
	cfg.Output.ReportPath = filepath.Join(dir, "out", "report.json")
	cfg.Output.MarkdownPath = filepath.Join(dir, "out", "report.md")
	cfg.Output.MetricsPath = filepath.Join(dir, "out", "hazardlog.prom")
	cfg.Cache.Enabled = false
	return cfg
}

func event(id, title, category, collected string) model.Event {
	return model.Event{ID: id, Title: title, Category: category, CollectedAt: collected}
}

func newTestPipeline(cfg *model.Config, collectors ...collect.Collector) *Pipeline {
	p := NewPipeline(cfg, collectors, Options{RunID: "7"})
	p.Engine().SetClock(func() time.Time { return runAt })
	p.renderer.out = &bytes.Buffer{}
	return p
}

func TestCollect_OrderAndFailures(t *testing.T) {
	cfg := testConfig(t)
	p := newTestPipeline(cfg,
		stubCollector{name: "slow", delay: 20 * time.Millisecond, events: []model.Event{event("A", "a", "Flood", "")}},
		stubCollector{name: "broken", err: errors.New("unexpected status: 503")},
		stubCollector{name: "fast", events: []model.Event{event("B", "b", "Fire", ""), event("C", "c", "Fire", "")}},
	)

	incoming, stats := p.Collect(context.Background())
	if len(incoming) != 3 || incoming[0].ID != "A" || incoming[1].ID != "B" {
		t.Fatalf("expected batches combined in collector order, got %v", incoming)
	}
	if len(stats) != 3 {
		t.Fatalf("expected 3 source stats, got %d", len(stats))
	}
	if stats[1].Name != "broken" || stats[1].Error == "" || stats[1].Records != 0 {
		t.Errorf("expected failed collector to be recorded, got %+v", stats[1])
	}
	if stats[2].Records != 2 {
		t.Errorf("expected 2 records from fast, got %d", stats[2].Records)
	}
}

func TestRun_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	batchDir := t.TempDir()
	batch := `[
	  {"event_id": "RW_1", "event_title": "Flood in Kenya", "event_category": "Flood", "crawled_at": "2024-04-30T00:00:00Z"},
	  {"event_id": "EMSC_2", "event_title": "M4.9 Crete", "event_category": "Earthquake", "crawled_at": "2024-03-01T00:00:00Z"},
	  {"event_id": "", "event_title": "", "event_category": "Fire"}
	]`
	if err := os.WriteFile(filepath.Join(batchDir, "batch.json"), []byte(batch), 0644); err != nil {
		t.Fatal(err)
	}

	p := newTestPipeline(cfg, collect.NewFileCollector("scrapers", filepath.Join(batchDir, "*.json"), ""))
	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	c := report.Counts
	if c.NewProvided != 3 || c.ActiveTotal != 1 || c.ArchiveTotal != 1 || c.ValidationErrors != 1 {
		t.Errorf("unexpected counts: %+v", c)
	}
	if len(report.Sources) != 1 || report.Sources[0].Records != 3 {
		t.Errorf("expected collection stats in report, got %+v", report.Sources)
	}

	active, err := store.NewJSONStore(cfg.Store.ActivePath, nil).Load()
	if err != nil || len(active.Events) != 1 || active.Events[0].ID != "RW_1" {
		t.Fatalf("unexpected active store: %+v %v", active.Events, err)
	}

	if err := p.RenderReport(report, false); err != nil {
		t.Fatalf("render: %v", err)
	}
	data, err := os.ReadFile(cfg.Output.ReportPath)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	var decoded model.Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	if decoded.Counts != report.Counts {
		t.Errorf("report counts changed in rendering: %+v", decoded.Counts)
	}
	for _, path := range []string{cfg.Output.MarkdownPath, cfg.Output.MetricsPath} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s to be written: %v", path, err)
		}
	}
	if _, err := os.Stat(strings.TrimSuffix(cfg.Output.MarkdownPath, ".md") + ".llm.md"); err == nil {
		t.Error("no digest file expected without an LLM provider")
	}
}

func TestRun_AllCollectorsFailedStillAges(t *testing.T) {
	cfg := testConfig(t)
	old := []model.Event{event("OLD", "old flood", "Flood", "2024-01-01T00:00:00Z")}
	if err := store.NewJSONStore(cfg.Store.ActivePath, nil).Save(old); err != nil {
		t.Fatal(err)
	}

	p := newTestPipeline(cfg, stubCollector{name: "down", err: errors.New("timeout")})
	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Counts.AgedToArchive != 1 || report.Counts.ArchiveTotal != 1 {
		t.Errorf("expected stale record to age out, got %+v", report.Counts)
	}
}

func TestRun_CancelledDuringCollection(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(cfg, stubCollector{name: "x", events: []model.Event{event("A", "a", "Flood", "")}})
	if _, err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := os.Stat(cfg.Store.ActivePath); err == nil {
		t.Error("cancelled run must not write the active store")
	}
}

func TestMarkdownReport(t *testing.T) {
	report := model.NewReport(runAt)
	report.Counts = model.Counts{NewAdded: 2, ActiveTotal: 5}
	report.Categories["Flood"] = 3
	report.Categories["Fire"] = 2
	report.Rejections = []model.Rejection{{ID: "X", Title: "a|b", Stage: model.StageValidation, Reason: "missing category"}}
	report.Degraded = true
	report.DegradedReason = "merge panicked: boom"

	md := MarkdownReport(report)
	for _, want := range []string{
		"# Hazard dataset update 2024-05-01T06:00:00Z",
		"Degraded run",
		"merge panicked: boom",
		"| new added | 2 |",
		"- Flood: 3\n- Fire: 2",
		`a\|b`,
	} {
		if !strings.Contains(md, want) {
			t.Errorf("expected %q in markdown:\n%s", want, md)
		}
	}
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	r := &Renderer{out: &buf}
	report := model.NewReport(runAt)
	report.Counts.ActiveTotal = 4
	report.Sources = []model.SourceStat{{Name: "ok", Records: 4}, {Name: "bad", Error: "boom"}}
	r.RenderSummary(report)

	out := buf.String()
	for _, want := range []string{"Reconciliation Complete", "Active total:  4", "✓ ok: 4 records", "✗ bad: boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in summary:\n%s", want, out)
		}
	}
}
