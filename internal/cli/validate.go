package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hazardlog/internal/model"
	"github.com/ppiankov/hazardlog/internal/store"
	"github.com/ppiankov/hazardlog/internal/validate"
)

var (
	checkLinks   bool
	lenient      bool
	auditJSON    bool
	linkTimeout  time.Duration
	linkWorkers  int
	errUnhealthy = errors.New("store failed audit")
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate [store.json]",
	Short: "Audit a store file without changing it",
	Long: `Validate reads a store file (default: the Active store) and checks every
record and the dataset invariants: unique ids, no content duplicates and
collectedAt descending order. Nothing is written; a corrupt file is reported,
not moved aside.

Archive stores keep records without a title or category; audit them with
--lenient.

Example:
  hazardlog validate
  hazardlog validate docs/data/past_events.json --lenient
  hazardlog validate --check-links`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&checkLinks, "check-links", false, "check that record source links are reachable")
	validateCmd.Flags().BoolVar(&lenient, "lenient", false, "only require an id (archive rules)")
	validateCmd.Flags().BoolVar(&auditJSON, "json", false, "print the audit as JSON")
	validateCmd.Flags().DurationVar(&linkTimeout, "link-timeout", 5*time.Minute, "overall timeout for link checks")
	validateCmd.Flags().IntVar(&linkWorkers, "link-workers", 20, "concurrent link checks")
}

// validateOutput is the JSON form of the audit.
type validateOutput struct {
	Path  string                `json:"path"`
	Audit validate.Audit        `json:"audit"`
	Links []validate.LinkResult `json:"links,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := cfg.Store.ActivePath
	if len(args) == 1 {
		path = args[0]
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read store: %w", err)
	}
	var events []model.Event
	if len(bytes.TrimSpace(data)) > 0 {
		if events, err = store.Decode(data); err != nil {
			return err
		}
	}

	v := validate.Default()
	if lenient {
		v = validate.New(validate.RequireID)
	}
	out := validateOutput{Path: path, Audit: v.AuditEvents(events)}

	if checkLinks {
		ctx, cancel := context.WithTimeout(context.Background(), linkTimeout)
		defer cancel()
		out.Links = validate.NewLinkChecker(cfg.HTTP, linkWorkers).Check(ctx, events)
	}

	if auditJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encode audit: %w", err)
		}
	} else {
		printAudit(out)
	}

	if !out.Audit.Healthy() {
		return fmt.Errorf("%w: %s", errUnhealthy, path)
	}
	return nil
}

func printAudit(out validateOutput) {
	a := out.Audit
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Audit: %s\n", out.Path)
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Records:          %d\n", a.Total)
	fmt.Fprintf(os.Stderr, "  Valid:            %d\n", a.Valid)
	fmt.Fprintf(os.Stderr, "  Invalid:          %d\n", a.Invalid)
	for _, rule := range sortedKeys(a.ByRule) {
		fmt.Fprintf(os.Stderr, "    %-16s %d\n", rule+":", a.ByRule[rule])
	}
	fmt.Fprintf(os.Stderr, "  Duplicate ids:    %d\n", a.DuplicateIDs)
	fmt.Fprintf(os.Stderr, "  Content dups:     %d\n", a.Duplicates)
	fmt.Fprintf(os.Stderr, "  No coordinates:   %d\n", a.MissingCoords)
	fmt.Fprintf(os.Stderr, "  Sorted:           %t\n", !a.Unsorted)

	if len(out.Links) > 0 {
		dead := 0
		for _, l := range out.Links {
			if l.Dead {
				dead++
				fmt.Fprintf(os.Stderr, "  ✗ %s %s (%s)\n", l.EventID, l.URL, linkStatus(l))
			}
		}
		fmt.Fprintf(os.Stderr, "  Links:            %d checked, %d dead\n", len(out.Links), dead)
	}

	if a.Healthy() {
		fmt.Fprintf(os.Stderr, "\n  ✓ store is healthy\n\n")
	} else {
		fmt.Fprintf(os.Stderr, "\n  ✗ store violates dataset invariants\n\n")
	}
}

func linkStatus(l validate.LinkResult) string {
	if l.Error != "" {
		return l.Error
	}
	return fmt.Sprintf("HTTP %d", l.StatusCode)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
