package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brad07/codeshield/pkg/bootstrap"
	"github.com/brad07/codeshield/pkg/config"
	"github.com/brad07/codeshield/pkg/engine"
	"github.com/brad07/codeshield/pkg/logging"
	"github.com/brad07/codeshield/pkg/output"
	"github.com/brad07/codeshield/pkg/progress"
	"github.com/brad07/codeshield/pkg/review"
	"github.com/brad07/codeshield/pkg/workspace"
)

type scanOptions struct {
	format       string
	outputPath   string
	failOn       []string
	exitCode     int
	language     string
	stdin        bool
	stdinName    string
	packs        []string
	customPath   string
	parallel     int
	maxFileBytes int64
	knownOnly    bool
	noProgress   bool
	noSuppress   bool

	noLLM       bool
	llmProvider string
	llmEndpoint string
	llmModel    string
}

func newScanCmd(root *rootOptions, info buildInfo) *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Scan files or directories for vulnerabilities",
		Example: `  $ codeshield scan .
  $ codeshield scan src/ --format sarif -o results.sarif
  $ codeshield scan app.py --llm-provider ollama --llm-model qwen2.5-coder
  $ cat handler.go | codeshield scan --stdin --stdin-filename handler.go`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.stdin && len(args) == 0 {
				args = []string{"."}
			}
			if opts.stdin && len(args) > 0 {
				return fmt.Errorf("--stdin cannot be combined with paths")
			}
			if opts.exitCode < 1 || opts.exitCode > 255 {
				return fmt.Errorf("invalid --exit-code value %d: must be between 1 and 255", opts.exitCode)
			}

			cfg, err := loadScanConfig(cmd, root, opts, args)
			if err != nil {
				return err
			}

			ctx, cancel := newSignalContext()
			defer cancel()

			return runScan(ctx, cmd, root, opts, cfg, info, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.format, "format", "f", "human", "Output format: human, json, sarif")
	f.StringVarP(&opts.outputPath, "output", "o", "", "Write the report to a file instead of stdout")
	f.StringSliceVar(&opts.failOn, "fail-on", nil, "Exit non-zero on these severities (default from config: critical,high)")
	f.IntVar(&opts.exitCode, "exit-code", 1, "Exit code to return when --fail-on matches")
	f.StringVarP(&opts.language, "language", "l", "", "Language of every scanned file (default: detect from file name)")
	f.BoolVar(&opts.stdin, "stdin", false, "Read code from standard input")
	f.StringVar(&opts.stdinName, "stdin-filename", "", "File name to report for --stdin input")
	f.StringSliceVar(&opts.packs, "packs", nil, "Built-in signature packs to enable (default: all)")
	f.StringVar(&opts.customPath, "signatures", "", "Additional signature pack file (YAML)")
	f.IntVarP(&opts.parallel, "parallel", "p", 0, "Files scanned in parallel (default from config)")
	f.Int64Var(&opts.maxFileBytes, "max-file-size", 0, "Skip files larger than this many bytes (default from config)")
	f.BoolVar(&opts.knownOnly, "known-languages", false, "Only scan files whose language can be detected")
	f.BoolVar(&opts.noProgress, "no-progress", false, "Disable the progress bar")
	f.BoolVar(&opts.noSuppress, "no-suppressions", false, "Ignore inline codeshield:ignore comments")
	f.BoolVar(&opts.noLLM, "no-llm", false, "Disable LLM review even if configured")
	f.StringVar(&opts.llmProvider, "llm-provider", "", "Enable LLM review with this provider: ollama, lmstudio, openai")
	f.StringVar(&opts.llmEndpoint, "llm-endpoint", "", "LLM API endpoint")
	f.StringVar(&opts.llmModel, "llm-model", "", "LLM model name")

	return cmd
}

// loadScanConfig loads the configuration and applies flags on top.
func loadScanConfig(cmd *cobra.Command, root *rootOptions, opts *scanOptions, args []string) (*config.Config, error) {
	projectDir := projectDirFor(args)

	var (
		cfg *config.Config
		err error
	)
	if root.configPath != "" {
		cfg, err = config.LoadFrom(root.configPath, projectDir)
	} else {
		cfg, err = config.Load(projectDir)
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Scan.Format = opts.format
	}
	if flags.Changed("fail-on") {
		cfg.Scan.FailOn = lower(opts.failOn)
	}
	if flags.Changed("packs") {
		cfg.Signatures.Packs = lower(opts.packs)
	}
	if opts.customPath != "" {
		cfg.Signatures.CustomPath = opts.customPath
	}
	if opts.parallel > 0 {
		cfg.Scan.Parallelism = opts.parallel
	}
	if opts.maxFileBytes > 0 {
		cfg.Scan.MaxFileBytes = opts.maxFileBytes
	}
	if opts.noSuppress {
		cfg.Scan.DisableSuppressions = true
	}
	// The CLI never watches signature files.
	cfg.Signatures.Watch = false

	if opts.llmProvider != "" {
		cfg.LLM.Enabled = true
		if opts.llmProvider != cfg.LLM.Provider && !flags.Changed("llm-endpoint") {
			cfg.LLM.Endpoint = ""
		}
		if opts.llmProvider != cfg.LLM.Provider && !flags.Changed("llm-model") {
			cfg.LLM.Model = ""
		}
		cfg.LLM.Provider = opts.llmProvider
	}
	if opts.llmEndpoint != "" {
		cfg.LLM.Endpoint = opts.llmEndpoint
	}
	if opts.llmModel != "" {
		cfg.LLM.Model = opts.llmModel
	}
	if opts.noLLM {
		cfg.LLM.Enabled = false
	}
	fillProviderDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runScan(ctx context.Context, cmd *cobra.Command, root *rootOptions, opts *scanOptions, cfg *config.Config, info buildInfo, args []string) error {
	started := time.Now()
	logger := logging.ForCLI(root.verbose)
	defer logger.Sync() //nolint:errcheck

	registry, err := bootstrap.Registry(cfg.Signatures)
	if err != nil {
		return err
	}

	reviewer, err := bootstrap.NewReviewer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if reviewer != nil {
		defer reviewer.Close()
	}

	eng := bootstrap.NewEngine(registry, reviewer, cfg, logger)

	reqs, skipped, err := collectRequests(cmd.InOrStdin(), opts, cfg, logger, args)
	if err != nil {
		return err
	}
	if len(reqs) == 0 && skipped == 0 {
		return fmt.Errorf("no files to scan")
	}

	showProgress := !opts.noProgress && opts.outputPath == "" && output.IsTerminal(os.Stderr)
	tracker := progress.NewFiles(cmd.ErrOrStderr(), len(reqs), "scanning", !showProgress)
	results := eng.ScanBatchNotify(ctx, reqs, cfg.Scan.Parallelism, func(int, *engine.ScanResult) {
		_ = tracker.Add(1)
	})
	_ = tracker.Finish()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("scan interrupted: %w", err)
	}

	report := output.NewReport(info.version, started, results)
	report.SkippedFiles = skipped

	if err := writeReport(cmd.OutOrStdout(), report, cfg.Scan.Format, opts.outputPath, root.verbose); err != nil {
		return err
	}

	if output.ShouldFail(report, cfg.FailOnSeverities()) {
		return &exitError{code: opts.exitCode}
	}
	return nil
}

// collectRequests turns the command input into scan requests. It returns
// the number of files that were found but not scanned.
func collectRequests(stdin io.Reader, opts *scanOptions, cfg *config.Config, logger *zap.Logger, args []string) ([]engine.Request, int, error) {
	if opts.stdin {
		data, err := io.ReadAll(io.LimitReader(stdin, cfg.Scan.MaxFileBytes+1))
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read stdin: %w", err)
		}
		if int64(len(data)) > cfg.Scan.MaxFileBytes {
			return nil, 0, fmt.Errorf("stdin exceeds %d bytes", cfg.Scan.MaxFileBytes)
		}
		return []engine.Request{{
			Filename: opts.stdinName,
			Code:     string(data),
			Language: opts.language,
		}}, 0, nil
	}

	collected, err := workspace.Collect(args, workspace.Options{
		MaxFileBytes:       cfg.Scan.MaxFileBytes,
		KnownLanguagesOnly: opts.knownOnly && opts.language == "",
		Logger:             logger,
	})
	if err != nil {
		return nil, 0, err
	}

	skipped := len(collected.Skipped)
	reqs := make([]engine.Request, 0, len(collected.Files))
	for _, f := range collected.Files {
		code, err := workspace.ReadFile(f)
		if err != nil {
			logger.Warn("skipping unreadable file", zap.String("path", f.Path), zap.Error(err))
			skipped++
			continue
		}

		language := f.Language
		if opts.language != "" {
			language = opts.language
		}
		reqs = append(reqs, engine.Request{Filename: f.Path, Code: code, Language: language})
	}
	return reqs, skipped, nil
}

func writeReport(stdout io.Writer, report *output.Report, format, path string, verbose bool) error {
	formatter, err := output.GetFormatter(format)
	if err != nil {
		return err
	}
	if h, ok := formatter.(*output.HumanFormatter); ok {
		h.Verbose = verbose
	}

	if path == "" {
		return formatter.Format(report, stdout)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := formatter.Format(report, f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}

// projectDirFor picks the directory whose .codeshield/ overrides apply.
func projectDirFor(args []string) string {
	if len(args) == 0 {
		return "."
	}
	info, err := os.Stat(args[0])
	if err != nil {
		return "."
	}
	if info.IsDir() {
		return args[0]
	}
	return filepath.Dir(args[0])
}

// fillProviderDefaults fills an endpoint or model cleared by --llm-provider.
func fillProviderDefaults(cfg *config.Config) {
	if !cfg.LLM.Enabled {
		return
	}
	d := review.DefaultConfig(review.ProviderType(cfg.LLM.Provider))
	if cfg.LLM.Endpoint == "" {
		cfg.LLM.Endpoint = d.Endpoint
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = d.Model
	}
}

func lower(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
