package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/chriscorrea/cram/internal/app"
	"github.com/chriscorrea/cram/internal/config"

	"github.com/spf13/cobra"
)

// loadSettings reads the config file, if any, and applies the flags the
// user set explicitly on top of it.
func loadSettings(cmd *cobra.Command) (config.Config, error) {
	explicit, _ := cmd.Flags().GetString("config")
	path := config.ResolvePath(explicit)
	settings, err := config.Load(path)
	if err != nil {
		return settings, err
	}
	if path != "" {
		slog.Debug("Loaded config", "path", path)
	}

	flags := cmd.Flags()
	if flags.Changed("strategy") {
		settings.Strategy, _ = flags.GetString("strategy")
	}
	if flags.Changed("threshold") {
		t, _ := flags.GetFloat64("threshold")
		settings.Threshold = &t
	}
	if flags.Changed("samples") {
		settings.SampleSize, _ = flags.GetInt("samples")
	}
	if flags.Changed("seed") {
		settings.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("cluster") {
		settings.ClusterTopics, _ = flags.GetInt("cluster")
	}
	if flags.Changed("workers") {
		settings.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("stem") {
		settings.TFIDF.Stem, _ = flags.GetBool("stem")
	}
	if flags.Changed("provider") {
		settings.Embedding.Provider, _ = flags.GetString("provider")
	}
	if flags.Changed("model") {
		settings.Embedding.Model, _ = flags.GetString("model")
	}
	if flags.Changed("cache-topics") {
		settings.Embedding.CacheTopics, _ = flags.GetBool("cache-topics")
	}

	if err := settings.Validate(); err != nil {
		return settings, err
	}
	return settings, nil
}

// buildConfig constructs an app.Config from command flags and paper arguments
func buildConfig(cmd *cobra.Command, papers []string) (app.Config, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return app.Config{}, err
	}

	flags := cmd.Flags()
	syllabus, _ := flags.GetString("syllabus")
	topics, _ := flags.GetStringSlice("topic")
	subject, _ := flags.GetString("subject")
	selector, _ := flags.GetString("selector")
	includeAll, _ := flags.GetBool("include-all")
	textFlag, _ := flags.GetBool("text")
	jsonFlag, _ := flags.GetBool("json")
	strict, _ := flags.GetBool("strict")
	quiet, _ := flags.GetBool("quiet")
	debug, _ := flags.GetBool("debug")
	xlsx, _ := flags.GetString("xlsx") // plan only

	// determine output format
	outputFormat := app.Markdown
	switch {
	case textFlag:
		outputFormat = app.Text
	case jsonFlag:
		outputFormat = app.JSON
	}

	// no paper arguments: read a single paper from stdin
	if len(papers) == 0 {
		papers = []string{"-"}
	}

	return app.Config{
		Papers:       papers,
		Syllabus:     syllabus,
		Topics:       topics,
		Subject:      subject,
		Selector:     selector,
		IncludeAll:   includeAll,
		OutputFormat: outputFormat,
		XLSXPath:     xlsx,
		Strict:       strict,
		Quiet:        quiet,
		Debug:        debug,
		Settings:     settings,
	}, nil
}

// logLevel maps the verbosity flags to a slog level. --verbose shows the
// per-paper filtering counts logged at Info.
func logLevel(debug, verbose bool) slog.Level {
	switch {
	case debug:
		return slog.LevelDebug
	case verbose:
		return slog.LevelInfo
	default:
		return slog.LevelError
	}
}

// setupLogger configures the default slog logger based on debug mode
func setupLogger(debug, verbose bool) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(debug, verbose),
	})
	slog.SetDefault(slog.New(handler))
}

// run wraps an app entry point with logging, signal handling and output.
func run(fn func(ctx context.Context, cfg app.Config, args []string) (string, error), papersFrom int) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		verbose, _ := cmd.Flags().GetBool("verbose")
		setupLogger(debug, verbose)

		cfg, err := buildConfig(cmd, args[papersFrom:])
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		// create context with signal handling for graceful shutdown
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		result, err := fn(ctx, cfg, args)
		if err != nil {
			return fmt.Errorf("cram %s failed: %w", cmd.Name(), err)
		}
		fmt.Print(result)
		return nil
	}
}

var rootCmd = &cobra.Command{
	Use:   "cram",
	Short: "Turn past exam papers into a prioritized study plan",
	Long: `Cram reads past exam papers, splits them into questions, matches each question
to a syllabus topic and ranks the topics by how often they are examined.
Papers may be local files (text, HTML, PDF, images), URLs, or standard input.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var planCmd = &cobra.Command{
	Use:   "plan [papers...]",
	Short: "Rank syllabus topics by exam weightage",
	Long: `Rank syllabus topics by exam weightage and show example questions.

Examples:
  cram plan --syllabus syllabus.pdf 2021.pdf 2022.pdf 2023.pdf
  cram plan --syllabus https://example.edu/cs301.html --xlsx plan.xlsx papers/*.pdf
  cram plan --cluster 8 papers/*.txt`,
	RunE: run(func(ctx context.Context, cfg app.Config, _ []string) (string, error) {
		return app.Run(ctx, cfg)
	}, 0),
}

var questionsCmd = &cobra.Command{
	Use:   "questions [papers...]",
	Short: "List the questions found in each paper with their topics",
	RunE: run(func(ctx context.Context, cfg app.Config, _ []string) (string, error) {
		return app.Questions(ctx, cfg)
	}, 0),
}

var searchCmd = &cobra.Command{
	Use:   "search query [papers...]",
	Short: "Search past questions by keyword",
	Long: `Search the retained questions of the given papers by keyword, ranked by BM25.

Examples:
  cram search "LR parsing" --syllabus syllabus.txt papers/*.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: run(func(ctx context.Context, cfg app.Config, args []string) (string, error) {
		return app.Search(ctx, cfg, args[0], searchLimit)
	}, 1),
}

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "Show the topics extracted from a syllabus",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, cfg app.Config, _ []string) (string, error) {
		return app.ListTopics(ctx, cfg)
	}, 0),
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as TOML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		setupLogger(debug, false)

		settings, err := loadSettings(cmd)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		data, err := settings.Marshal()
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

var searchLimit int

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default: $"+config.EnvVar+" or ~/.cram/config.toml)")

	// topic sources
	flags.String("syllabus", "", "Syllabus file or URL to take topics from")
	flags.StringSlice("topic", nil, "Additional topic (repeatable)")
	flags.String("subject", "", "Subject name shown in the report")

	// relevance and ranking
	flags.String("strategy", "", "Relevance strategy: tfidf or embedding (default: tfidf)")
	flags.Float64("threshold", 0, "Minimum similarity to keep a question; 0 keeps every scored question (default: strategy default)")
	flags.Int("samples", 0, "Example questions per topic (default: 3)")
	flags.Uint64("seed", 0, "Seed for example sampling and clustering")
	flags.Int("cluster", 0, "Group questions into N clusters when no syllabus is given")
	flags.Int("workers", 0, "Papers processed in parallel (default: 4)")
	flags.Bool("stem", false, "Stem words before TF-IDF weighting")
	flags.Bool("strict", false, "Fail instead of keeping all questions when scoring fails")

	// embedding strategy
	flags.String("provider", "", "Embedding provider: ollama or gemini")
	flags.String("model", "", "Embedding model name")
	flags.Bool("cache-topics", false, "Embed syllabus topics once per run")

	// extraction
	flags.StringP("selector", "s", "", "CSS selector for HTML papers")
	flags.BoolP("include-all", "i", false, "Convert whole HTML pages without readability filtering")

	// output format flags
	flags.Bool("md", false, "Output in Markdown format (default)")
	flags.Bool("text", false, "Output in plain text format")
	flags.Bool("json", false, "Output in JSON format")
	rootCmd.MarkFlagsMutuallyExclusive("md", "text", "json")

	// other flags
	flags.BoolP("quiet", "q", false, "Suppress warnings and progress")
	flags.BoolP("verbose", "v", false, "Log filtering counts and warnings from internal components")
	flags.BoolP("debug", "D", false, "Enable debug logging")
	_ = flags.MarkHidden("debug")

	planCmd.Flags().String("xlsx", "", "Also write the study plan to an Excel workbook")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", app.DefaultSearchLimit, "Maximum number of results")

	rootCmd.AddCommand(planCmd, questionsCmd, searchCmd, topicsCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
