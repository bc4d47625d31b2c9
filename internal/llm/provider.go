package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/hazardlog/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Summarize generates a run digest restricted to the allowed URLs
	Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// SummarizeRequest contains the input for a run digest
type SummarizeRequest struct {
	// Report is the reconciliation run report
	Report model.Report

	// Events are the records the digest may mention, newest first
	Events []model.Event

	// EventURLs is the STRICT allowlist of URLs the LLM can cite
	EventURLs []string

	// Prompt is an optional custom prompt (if empty, use default)
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// SummarizeResponse contains the LLM's summary output
type SummarizeResponse struct {
	Summary    string
	CitedURLs  []string // URLs the LLM actually cited (for verification)
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai" or "" (disabled)
	Provider string

	Model   string
	APIKey  string
	BaseURL string // OpenAI-compatible endpoint, e.g. a local gateway

	Timeout time.Duration

	// StrictEvidence enforces the URL allowlist (should always be true)
	StrictEvidence bool

	MaxTokens int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:       "", // Disabled by default
		Timeout:        30 * time.Second,
		StrictEvidence: true,
		MaxTokens:      800,
	}
}

// maxPromptEvents caps how many records are listed in the prompt
const maxPromptEvents = 20

// BuildPrompt constructs the default digest prompt with strict evidence mode
func BuildPrompt(report model.Report, events []model.Event, eventURLs []string) string {
	c := report.Counts
	var b strings.Builder
	fmt.Fprintf(&b, `You are writing a short digest of a hazard event dataset update. The dataset
aggregates reports from public providers; you describe what changed, never
assess severity or give safety advice.

CRITICAL RULES:
1. You MUST ONLY cite URLs from this allowed list:
%s

2. DO NOT infer, speculate, or cite external sources beyond this list.
3. Only mention events listed below. If nothing notable changed, say so.
4. Never give instructions to the public or predict how events develop.

Run Summary:
- Run time: %s
- Active events: %d
- Archived events: %d
- New events added: %d
- Events updated: %d
- Moved to archive: %d
- Duplicates removed: %d
- Validation errors: %d
`, joinURLs(eventURLs), model.FormatTime(report.RunAt), c.ActiveTotal, c.ArchiveTotal,
		c.NewAdded, c.Updated, c.AgedToArchive, c.ContentDuplicates, c.ValidationErrors)

	if report.Degraded {
		b.WriteString("- WARNING: the merge failed and only the incoming batch was published\n")
	}

	if cats := topCounts(report.Categories, 5); len(cats) > 0 {
		b.WriteString("\nActive events by category:\n")
		for _, line := range cats {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}

	if len(events) > 0 {
		b.WriteString("\nRecent events:\n")
		for i, ev := range events {
			if i >= maxPromptEvents {
				fmt.Fprintf(&b, "... and %d more events\n", len(events)-maxPromptEvents)
				break
			}
			fmt.Fprintf(&b, "- [%s] %s (%s)", ev.Category, ev.Title, ev.Provider())
			if ev.Address != "" {
				fmt.Fprintf(&b, ", %s", ev.Address)
			}
			if u := eventURL(ev); u != "" {
				fmt.Fprintf(&b, " %s", u)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\nProvide a 3-5 sentence digest of what changed in this run.")
	return b.String()
}

// EventURLs returns the citable URLs of events, deduplicated in order.
func EventURLs(events []model.Event) []string {
	seen := make(map[string]bool)
	var urls []string
	for _, ev := range events {
		u := eventURL(ev)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}

func eventURL(ev model.Event) string {
	if ev.SourceURL != "" {
		return ev.SourceURL
	}
	return ev.EventURL
}

func joinURLs(urls []string) string {
	if len(urls) == 0 {
		return "(No event URLs available)"
	}
	var b strings.Builder
	for i, url := range urls {
		if i >= maxPromptEvents { // Limit to avoid token bloat
			fmt.Fprintf(&b, "\n... and %d more URLs", len(urls)-maxPromptEvents)
			break
		}
		fmt.Fprintf(&b, "\n- %s", url)
	}
	return b.String()
}

// topCounts renders the n largest entries as "name: count", largest first.
func topCounts(counts map[string]int, n int) []string {
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
	if len(names) > n {
		names = names[:n]
	}
	lines := make([]string, len(names))
	for i, name := range names {
		lines[i] = fmt.Sprintf("%s: %d", name, counts[name])
	}
	return lines
}
