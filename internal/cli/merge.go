package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hazardlog/internal/collect"
	"github.com/ppiankov/hazardlog/internal/model"
	"github.com/ppiankov/hazardlog/internal/pipeline"
)

var (
	mergeOpts     runFlags
	mergeProvider string
)

// mergeCmd represents the merge command
var mergeCmd = &cobra.Command{
	Use:   "merge <batch.json>...",
	Short: "Reconcile batch files written by external collectors",
	Long: `Merge reconciles one or more batch files with the stores, skipping the
configured sources. Each argument may be a glob. Batches are combined in
argument order before the merge.

Exit status is 0 on success, 2 on a degraded run, 1 on errors.
Concurrent merges against the same stores are unsafe.

Example:
  hazardlog merge data/rsoe.json data/reliefweb.json
  hazardlog merge 'incoming/*.json' --dry-run`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)
	mergeOpts.register(mergeCmd)
	mergeCmd.Flags().StringVar(&mergeProvider, "provider", "", "provider attributed to records without data_source")
}

func runMerge(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	runID, err := mergeOpts.apply(cfg)
	if err != nil {
		return err
	}

	collectors := make([]collect.Collector, len(args))
	for i, pattern := range args {
		name := strings.TrimSuffix(filepath.Base(pattern), filepath.Ext(pattern))
		collectors[i] = collect.NewFileCollector(name, pattern, mergeProvider)
	}

	printBanner("hazardlog Merge", cfg, runID, mergeOpts.dryRun)
	fmt.Fprintf(os.Stderr, "  Batches:      %s\n\n", strings.Join(args, ", "))

	p := pipeline.NewPipeline(cfg, collectors, pipeline.Options{RunID: runID, DryRun: mergeOpts.dryRun, Logger: logger})
	return execute(p, mergeOpts.timeout, func(ctx context.Context) (*model.Report, error) {
		incoming, stats := p.Collect(ctx)
		for _, s := range stats {
			if s.Error != "" {
				// an unreadable batch aborts the merge instead of publishing a partial set
				return nil, fmt.Errorf("batch %s: %s", s.Name, s.Error)
			}
		}
		return p.Reconcile(ctx, incoming, stats)
	})
}
