package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/hazardlog/internal/model"
	"github.com/ppiankov/hazardlog/internal/reconcile"
)

const version = "v0.3.2"

// Exit codes
const (
	ExitOK       = 0
	ExitError    = 1
	ExitDegraded = 2
)

var (
	cfgFile   string
	verbose   bool
	configErr error
	logger    = slog.Default()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "hazardlog",
	Short: "hazardlog - reconcile hazard event feeds into a published dataset",
	Long: `hazardlog maintains a two-tier dataset of natural-hazard events collected
from public providers: an Active set of recent events and an append-only
Archive of older ones.

Each run merges a freshly collected batch with both stores, resolves
records that share an id, removes content duplicates, moves aged records
to the Archive and validates what is published. The Active store is
snapshotted before it is overwritten.

hazardlog is a batch tool meant to be started by an external scheduler.
Concurrent invocations against the same stores are not coordinated: the
last writer wins.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, reconcile.ErrDegraded):
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		return ExitDegraded
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hazardlog %s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.hazardlog/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().String("active", "", "Active store path")
	rootCmd.PersistentFlags().String("archive", "", "Archive store path")
	rootCmd.PersistentFlags().String("backup-dir", "", "backup directory for Active snapshots")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("store.active_path", rootCmd.PersistentFlags().Lookup("active"))
	_ = viper.BindPFlag("store.archive_path", rootCmd.PersistentFlags().Lookup("archive"))
	_ = viper.BindPFlag("store.backup_dir", rootCmd.PersistentFlags().Lookup("backup-dir"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	logger = newLogger(os.Stderr, verbose)
	slog.SetDefault(logger)

	// An optional .env in the working directory carries API keys
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("reading .env failed", "error", err)
	}

	if err := setDefaults(viper.GetViper(), model.DefaultConfig()); err != nil {
		configErr = err
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			logger.Warn("finding home directory", "error", err)
		} else {
			viper.AddConfigPath(filepath.Join(home, ".hazardlog"))
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match HAZARDLOG_*; nested keys use
	// underscores (HAZARDLOG_STORE_ACTIVE_PATH)
	viper.SetEnvPrefix("HAZARDLOG")
	viper.SetEnvKeyReplacer(newEnvReplacer())
	viper.AutomaticEnv()
	_ = viper.BindEnv("llm.api_key", "HAZARDLOG_LLM_API_KEY", "OPENAI_API_KEY")

	err := viper.MergeInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		logger.Debug("using config file", "path", viper.ConfigFileUsed())
	case errors.As(err, &notFound) && cfgFile == "":
		logger.Debug("no config file, using defaults")
	default:
		configErr = fmt.Errorf("read config: %w", err)
	}
}

func newEnvReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// setDefaults registers every field of cfg as a viper default so that config
// files and environment variables overlay individual keys.
func setDefaults(v *viper.Viper, cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}
	flattenDefaults(v, "", tree)
	return nil
}

func flattenDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for key, value := range tree {
		if prefix != "" {
			key = prefix + "." + key
		}
		if sub, ok := value.(map[string]any); ok {
			flattenDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, value)
	}
}

// loadConfig returns the effective configuration: defaults, then the config
// file, then HAZARDLOG_* variables, then flags.
func loadConfig() (*model.Config, error) {
	if configErr != nil {
		return nil, configErr
	}
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
