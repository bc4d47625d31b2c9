package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/hazardlog/internal/model"
	"github.com/ppiankov/hazardlog/internal/store"
)

const rule = "═══════════════════════════════════════════════════════════"

// Renderer writes run reports.
type Renderer struct {
	out io.Writer // summary output
}

// NewRenderer creates a renderer printing summaries to stderr.
func NewRenderer() *Renderer {
	return &Renderer{out: os.Stderr}
}

// Printf writes a progress line to the summary output.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// RenderJSON writes the report as indented JSON.
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return writeOutput(path, buf.Bytes())
}

// RenderMarkdown writes a human-readable run report.
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeOutput(path, []byte(MarkdownReport(report)))
}

// RenderLLMMarkdown writes the separate LLM digest file.
func (r *Renderer) RenderLLMMarkdown(content, path string) error {
	if content == "" {
		return nil
	}
	return writeOutput(path, []byte(content))
}

func writeOutput(path string, data []byte) error {
	return store.WriteFileAtomic(path, data, 0644)
}

// MarkdownReport renders report as Markdown.
func MarkdownReport(report *model.Report) string {
	var b strings.Builder
	c := report.Counts

	fmt.Fprintf(&b, "# Hazard dataset update %s\n\n", model.FormatTime(report.RunAt))
	if report.Degraded {
		fmt.Fprintf(&b, "> **Degraded run.** The merge failed (%s); the incoming batch was published as the active set and the archive was left unchanged.\n\n", report.DegradedReason)
	}
	fmt.Fprintf(&b, "Records collected before %s are archived.\n\n", model.FormatTime(report.Cutoff))

	b.WriteString("## Counts\n\n")
	b.WriteString("| phase | records |\n|---|---:|\n")
	rows := []struct {
		name  string
		value int
	}{
		{"loaded from archive", c.LoadedFromArchive},
		{"loaded from active", c.LoadedFromActive},
		{"new provided", c.NewProvided},
		{"new added", c.NewAdded},
		{"updated", c.Updated},
		{"superseded", c.Superseded},
		{"content duplicates removed", c.ContentDuplicates},
		{"aged to archive", c.AgedToArchive},
		{"validation errors", c.ValidationErrors},
		{"active total", c.ActiveTotal},
		{"archive total", c.ArchiveTotal},
		{"corrupt stores recovered", c.CorruptStores},
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "| %s | %d |\n", row.name, row.value)
	}

	writeTally(&b, "Active events by category", report.Categories)
	writeTally(&b, "Active events by provider", report.Providers)

	if len(report.Sources) > 0 {
		b.WriteString("\n## Sources\n\n| source | records | duration | error |\n|---|---:|---:|---|\n")
		for _, s := range report.Sources {
			fmt.Fprintf(&b, "| %s | %d | %s | %s |\n", s.Name, s.Records, s.Duration.Round(time.Millisecond), s.Error)
		}
	}

	if report.Backup != nil {
		b.WriteString("\n## Backup\n\n")
		if report.Backup.Snapshot != "" {
			fmt.Fprintf(&b, "- snapshot: `%s`\n", report.Backup.Snapshot)
		}
		if report.Backup.RunSnapshot != "" {
			fmt.Fprintf(&b, "- run snapshot: `%s`\n", report.Backup.RunSnapshot)
		}
		for _, p := range report.Backup.Pruned {
			fmt.Fprintf(&b, "- pruned: `%s`\n", p)
		}
		if report.Backup.Error != "" {
			fmt.Fprintf(&b, "- error: %s\n", report.Backup.Error)
		}
	}

	if len(report.Rejections) > 0 {
		b.WriteString("\n## Rejected records\n\n| id | title | stage | reason |\n|---|---|---|---|\n")
		for _, rej := range report.Rejections {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				escapeCell(rej.ID), escapeCell(rej.Title), rej.Stage, escapeCell(rej.Reason))
		}
	}
	return b.String()
}

func writeTally(b *strings.Builder, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n", title)
	for _, name := range sortedByCount(counts) {
		fmt.Fprintf(b, "- %s: %d\n", name, counts[name])
	}
}

func sortedByCount(counts map[string]int) []string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// RenderSummary prints the run summary block.
func (r *Renderer) RenderSummary(report *model.Report) {
	c := report.Counts
	title := "Reconciliation Complete"
	if report.Degraded {
		title = "Reconciliation DEGRADED"
	}

	r.Printf("\n%s\n  %s\n%s\n\n", rule, title, rule)
	r.Printf("  Loaded:        %d archive, %d active, %d incoming\n",
		c.LoadedFromArchive, c.LoadedFromActive, c.NewProvided)
	r.Printf("  New:           %d\n", c.NewAdded)
	r.Printf("  Updated:       %d\n", c.Updated)
	r.Printf("  Superseded:    %d\n", c.Superseded)
	r.Printf("  Duplicates:    %d\n", c.ContentDuplicates)
	r.Printf("  Aged out:      %d\n", c.AgedToArchive)
	r.Printf("  Invalid:       %d\n", c.ValidationErrors)
	r.Printf("  Active total:  %d\n", c.ActiveTotal)
	r.Printf("  Archive total: %d\n", c.ArchiveTotal)
	if c.CorruptStores > 0 {
		r.Printf("  Recovered:     %d corrupt store(s)\n", c.CorruptStores)
	}
	for _, s := range report.Sources {
		if s.Error != "" {
			r.Printf("  ✗ %s: %s\n", s.Name, s.Error)
		} else {
			r.Printf("  ✓ %s: %d records\n", s.Name, s.Records)
		}
	}
	if report.Degraded {
		r.Printf("\n  Reason: %s\n", report.DegradedReason)
	}
	r.Printf("\n")
}
