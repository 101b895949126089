package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/toporag/internal/extract"
	"github.com/ppiankov/toporag/internal/model"
	"github.com/ppiankov/toporag/internal/pipeline"
	"github.com/ppiankov/toporag/internal/store"
	"github.com/ppiankov/toporag/internal/worker"
)

var (
	runOutDir        string
	runDBPath        string
	runListFile      string
	runProvider      string
	runModel         string
	runMinConfidence string
	runMaxCandidates int
	runStaticFile    string
	runNoCache       bool
	runNoFilter      bool
	runZeroExport    string
	runTimeout       time.Duration
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [document or directory ...]",
	Short: "Disambiguate the toponyms of one or more documents",
	Long: `Run processes annotated documents (.xml or .json) and writes one JSON
report per document plus a run summary to the output directory.

Examples:
  toporag run article.xml
  toporag run corpus/ --provider openai --model gpt-4o-mini
  toporag run --list documents.txt --db runs.db --zero-match-export zero.json
  toporag run corpus/ --gazetteer-file places.yaml --min-confidence high`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runOutDir, "out", "o", "", "report output directory")
	runCmd.Flags().StringVar(&runDBPath, "db", "", "also store results in this SQLite database")
	runCmd.Flags().StringVarP(&runListFile, "list", "f", "", "file with one document path per line (# comments allowed)")
	runCmd.Flags().StringVar(&runProvider, "provider", "", "LLM provider (openai, openrouter, anthropic, ollama)")
	runCmd.Flags().StringVar(&runModel, "model", "", "LLM model name")
	runCmd.Flags().StringVar(&runMinConfidence, "min-confidence", "", "minimum accepted confidence (high, medium, low)")
	runCmd.Flags().IntVar(&runMaxCandidates, "max-candidates", 0, "candidates retrieved per toponym")
	runCmd.Flags().StringVar(&runStaticFile, "gazetteer-file", "", "use a static YAML/JSON gazetteer instead of Neo4j")
	runCmd.Flags().BoolVar(&runNoCache, "no-cache", false, "disable the gazetteer cache")
	runCmd.Flags().BoolVar(&runNoFilter, "no-filter", false, "disable toponym filtering")
	runCmd.Flags().StringVar(&runZeroExport, "zero-match-export", "", "write toponyms without candidates to this JSON file")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "overall run timeout (0 means none)")
}

// applyRunFlags layers explicitly set flags over the loaded configuration
func applyRunFlags(cmd *cobra.Command, cfg *model.Config) {
	flags := cmd.Flags()
	if flags.Changed("out") {
		cfg.Output.Dir = runOutDir
	}
	if flags.Changed("db") {
		cfg.Output.DBPath = runDBPath
	}
	if flags.Changed("provider") {
		cfg.LLM.Provider = runProvider
		if env, ok := providerKeyEnv[runProvider]; ok && cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv(env)
		}
	}
	if flags.Changed("model") {
		cfg.LLM.Model = runModel
	}
	if flags.Changed("min-confidence") {
		cfg.Pipeline.MinConfidence = runMinConfidence
	}
	if flags.Changed("max-candidates") {
		cfg.Pipeline.MaxCandidates = runMaxCandidates
	}
	if flags.Changed("gazetteer-file") {
		cfg.Gazetteer.Backend = "static"
		cfg.Gazetteer.File = runStaticFile
	}
	if runNoCache {
		cfg.Cache.Enabled = false
	}
	if runNoFilter {
		cfg.Pipeline.EnableFiltering = false
	}
	if flags.Changed("zero-match-export") {
		cfg.Output.ZeroMatchExport = runZeroExport
	}
	cfg.Output.Verbose = verbose
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	paths, err := documentPaths(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no documents given (pass files, directories or --list)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	logger := slog.Default()

	gaz, closeGazetteer, err := openGazetteer(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("gazetteer: %w", err)
	}
	defer closeGazetteer()

	judge, err := newJudge(cfg, logger)
	if err != nil {
		return err
	}

	p, err := pipeline.New(pipeline.Options{
		Config:    cfg,
		Gazetteer: gaz,
		Judge:     judge,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Documents: %d\n", len(paths))
		fmt.Fprintf(os.Stderr, "Gazetteer: %s (cache: %v)\n", cfg.Gazetteer.Backend, cfg.Cache.Enabled)
		fmt.Fprintf(os.Stderr, "Judge: %s/%s (min confidence: %s)\n", judge.Name(), cfg.LLM.Model, cfg.Pipeline.MinConfidence)
		fmt.Fprintln(os.Stderr)
	}

	report := p.ProcessCorpus(ctx, paths)

	summaryPath, err := pipeline.NewRenderer(cfg.Output.Dir).RenderCorpus(report)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "✓ Reports written to %s (summary: %s)\n", cfg.Output.Dir, summaryPath)

	if cfg.Output.DBPath != "" {
		if err := saveRun(ctx, cfg.Output.DBPath, report); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Results stored in %s\n", cfg.Output.DBPath)
	}

	if cfg.Output.ZeroMatchExport != "" {
		if err := p.Tracker().WriteFile(cfg.Output.ZeroMatchExport, cfg.Output.ZeroMatchMinFrequency); err != nil {
			return fmt.Errorf("zero-match export: %w", err)
		}
		unique, total := p.Tracker().Totals()
		fmt.Fprintf(os.Stderr, "✓ Zero-match export: %s (%d toponyms, %d occurrences)\n", cfg.Output.ZeroMatchExport, unique, total)
	}

	fmt.Fprintln(os.Stderr)
	if err := pipeline.RenderSummary(os.Stdout, report); err != nil {
		return err
	}

	if ctx.Err() != nil {
		return fmt.Errorf("run interrupted: %w", ctx.Err())
	}
	if len(report.Errors) > 0 && len(report.Documents) == 0 {
		return fmt.Errorf("all %d documents failed", len(report.Errors))
	}
	return nil
}

// documentPaths expands arguments and the --list file into document files
func documentPaths(args []string) ([]string, error) {
	var paths []string
	if runListFile != "" {
		listed, err := worker.ReadPathsFromFile(runListFile)
		if err != nil {
			return nil, fmt.Errorf("read document list: %w", err)
		}
		paths = append(paths, listed...)
	}
	if len(args) > 0 {
		expanded, err := extract.ListDocuments(args)
		if err != nil {
			return nil, err
		}
		paths = append(paths, expanded...)
	}
	return paths, nil
}

func saveRun(ctx context.Context, dbPath string, report *pipeline.CorpusReport) error {
	db, err := store.NewSQLite(dbPath)
	if err != nil {
		return fmt.Errorf("open result store: %w", err)
	}
	defer func() { _ = db.Close() }()

	// Persist even when the run itself was interrupted
	if err := db.SaveRun(context.WithoutCancel(ctx), report); err != nil {
		return fmt.Errorf("store results: %w", err)
	}
	return nil
}
