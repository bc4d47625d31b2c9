package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hazardlog/internal/collect"
	"github.com/ppiankov/hazardlog/internal/model"
	"github.com/ppiankov/hazardlog/internal/pipeline"
)

// runFlags are shared by run and merge.
type runFlags struct {
	runID      string
	dryRun     bool
	outJSON    string
	outMD      string
	outMetrics string
	timeout    time.Duration
	noCache    bool
	llm        bool
	llmModel   string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.runID, "run-id", "", "run number for run-indexed snapshots (default: $GITHUB_RUN_NUMBER, see retention.run_id_env)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "reconcile in memory and print the summary without writing anything")
	cmd.Flags().StringVar(&f.outJSON, "json", "", "output JSON report path (default from output.report_path)")
	cmd.Flags().StringVar(&f.outMD, "md", "", "output Markdown report path (optional)")
	cmd.Flags().StringVar(&f.outMetrics, "metrics", "", "write Prometheus textfile metrics to this path (optional)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 10*time.Minute, "overall run timeout")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable the collector response cache")
	cmd.Flags().BoolVar(&f.llm, "llm", false, "write an LLM digest of the run (OpenAI)")
	cmd.Flags().StringVar(&f.llmModel, "llm-model", "gpt-4o-mini", "LLM model name")
}

// apply overlays the flags onto cfg and resolves the run id.
func (f *runFlags) apply(cfg *model.Config) (runID string, err error) {
	if f.outJSON != "" {
		cfg.Output.ReportPath = f.outJSON
	}
	if f.outMD != "" {
		cfg.Output.MarkdownPath = f.outMD
	}
	if f.outMetrics != "" {
		cfg.Output.MetricsPath = f.outMetrics
	}
	if f.noCache {
		cfg.Cache.Enabled = false
	}
	if f.llm {
		cfg.LLM.Provider = "openai"
		cfg.LLM.Model = f.llmModel
	}
	if cfg.LLM.Provider != "" && cfg.LLM.APIKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	if f.dryRun {
		// nothing but the summary is written
		cfg.Output.ReportPath = ""
		cfg.Output.MarkdownPath = ""
		cfg.Output.MetricsPath = ""
	}

	runID = f.runID
	if runID == "" && cfg.Retention.RunIDEnv != "" {
		runID = os.Getenv(cfg.Retention.RunIDEnv)
	}
	return runID, nil
}

var runOpts runFlags

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect from all configured sources and reconcile the dataset",
	Long: `Run executes one scheduled update:
- Run every configured collector concurrently
- Merge the combined batch with the Active and Archive stores
- Snapshot the Active store, then write Archive and Active
- Render the run report

Exit status is 0 on success, 2 when the merge failed and the incoming batch
was published as the Active set (degraded), 1 on configuration or I/O errors.

Concurrent runs against the same stores are unsafe; schedule them serially.

Example:
  hazardlog run
  hazardlog run --run-id 118 --md docs/data/report.md
  hazardlog run --dry-run -v`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runOpts.register(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	runID, err := runOpts.apply(cfg)
	if err != nil {
		return err
	}
	if len(cfg.Sources) == 0 {
		return fmt.Errorf("no sources configured (see 'hazardlog config init')")
	}

	collectors, err := collect.FromConfig(cfg.Sources, collect.NewDeps(cfg, logger))
	if err != nil {
		return fmt.Errorf("configure sources: %w", err)
	}

	printBanner("hazardlog Run", cfg, runID, runOpts.dryRun)
	fmt.Fprintf(os.Stderr, "  Sources:      %d\n", len(collectors))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n\n", cfg.Concurrency.Workers)

	p := pipeline.NewPipeline(cfg, collectors, pipeline.Options{RunID: runID, DryRun: runOpts.dryRun, Logger: logger})
	return execute(p, runOpts.timeout, func(ctx context.Context) (*model.Report, error) {
		return p.Run(ctx)
	})
}

// execute runs fn under the run timeout and signal handling and renders
// whatever report it produced.
func execute(p *pipeline.Pipeline, timeout time.Duration, fn func(context.Context) (*model.Report, error)) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	report, runErr := fn(ctx)
	if report != nil {
		if err := p.RenderReport(report, verbose); err != nil {
			if runErr == nil {
				return fmt.Errorf("render failed: %w", err)
			}
			logger.Error("render failed", "error", err)
		}
	}
	return runErr
}

func printBanner(title string, cfg *model.Config, runID string, dryRun bool) {
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  %s\n", title)
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Active:       %s\n", cfg.Store.ActivePath)
	fmt.Fprintf(os.Stderr, "  Archive:      %s\n", cfg.Store.ArchivePath)
	fmt.Fprintf(os.Stderr, "  Window:       %v\n", cfg.Retention.ActiveWindow)
	if runID != "" {
		fmt.Fprintf(os.Stderr, "  Run:          %s\n", runID)
	}
	if dryRun {
		fmt.Fprintf(os.Stderr, "  Mode:         dry run (nothing is written)\n")
	}
	if cfg.LLM.Provider != "" {
		fmt.Fprintf(os.Stderr, "  LLM:          %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	}
}
