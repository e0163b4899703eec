package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/emltools/eml2pdf/internal/config"
	"github.com/emltools/eml2pdf/internal/converter"
	"github.com/emltools/eml2pdf/internal/history"
	"github.com/emltools/eml2pdf/internal/mimetree"
)

var (
	flagConfigPath string
	flagVerbose    bool
	flagLogFile    string
)

// logCleanup closes the log file, when one is open. Set by setupLogger,
// called from main after the command finishes.
var logCleanup func() error

var rootCmd = &cobra.Command{
	Use:   "eml2pdf",
	Short: "Convert .eml mail messages to PDF or HTML",
	Long: `eml2pdf converts RFC 822 / MIME mail messages into PDF documents,
extracting attachments and recovering as much as it can from malformed
input. Rendering is delegated to wkhtmltopdf; with --html the assembled
document is written directly and no external renderer is needed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogger(flagVerbose, flagLogFile)
	},
}

func main() {
	err := rootCmd.Execute()
	if logCleanup != nil {
		_ = logCleanup()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogger(verbose bool, logFile string) error {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)
	if verbose {
		level.Set(slog.LevelDebug)
	}
	opts := &slog.HandlerOptions{Level: level}

	var out io.Writer = os.Stderr
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logCleanup = file.Close
		out = io.MultiWriter(os.Stderr, file)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, opts)))
	return nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfigPath, "config", "", "Path to a YAML configuration file")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&flagLogFile, "log-file", "", "Also append logs to this file")

	convertCmd.Flags().StringP("output", "o", "", "Output file (default <input stem>.pdf in the output directory)")
	config.RegisterParseFlags(convertCmd)
	config.RegisterRenderFlags(convertCmd)

	batchCmd.Flags().StringP("output", "o", "", "Output directory for converted files")
	config.RegisterParseFlags(batchCmd)
	config.RegisterRenderFlags(batchCmd)
	config.RegisterBatchFlags(batchCmd)

	mboxCmd.Flags().StringP("output", "o", "", "Output directory for converted files")
	config.RegisterParseFlags(mboxCmd)
	config.RegisterRenderFlags(mboxCmd)
	config.RegisterBatchFlags(mboxCmd)

	config.RegisterParseFlags(dumpCmd)

	rootCmd.AddCommand(convertCmd, batchCmd, mboxCmd, dumpCmd)
}

var convertCmd = &cobra.Command{
	Use:   "convert <input.eml> [-- extra wkhtmltopdf args]",
	Short: "Convert a single .eml file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, extraArgs, err := splitDashArgs(cmd, args)
		if err != nil {
			return err
		}

		cfg, err := config.FromCommand(cmd, flagConfigPath)
		if err != nil {
			return err
		}
		cfg.ExtraArgs = append(cfg.ExtraArgs, extraArgs...)

		outputPath, err := cmd.Flags().GetString("output")
		if err != nil {
			return err
		}

		conv := converter.New(cfg, slog.Default())
		if err := conv.Probe(); err != nil {
			return err
		}

		res, err := conv.ConvertFile(cmd.Context(), input, outputPath)
		if err != nil {
			return fmt.Errorf("failed to convert %s: %w", input, err)
		}

		fmt.Println("Wrote", res.OutputPath)
		for _, p := range res.AttachmentPaths {
			fmt.Println("Extracted", p)
		}
		return nil
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Convert every .eml file under a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}

		conv, store, err := newConverter(cfg)
		if err != nil {
			return err
		}
		defer closeStore(store)

		result, err := conv.ConvertDir(cmd.Context(), args[0], printProgress)
		if err != nil {
			return fmt.Errorf("batch conversion failed: %w", err)
		}

		printSummary(result)
		return nil
	},
}

var mboxCmd = &cobra.Command{
	Use:   "mbox <file.mbox>",
	Short: "Convert every message in an mbox file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}

		conv, store, err := newConverter(cfg)
		if err != nil {
			return err
		}
		defer closeStore(store)

		result, err := conv.ConvertMbox(cmd.Context(), args[0], printProgress)
		if err != nil {
			return fmt.Errorf("mbox conversion failed: %w", err)
		}

		printSummary(result)
		return nil
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump <input.eml>",
	Short: "Print the MIME part tree of a message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.FromCommand(cmd, flagConfigPath)
		if err != nil {
			return err
		}

		opts := mimetree.DefaultOptions()
		opts.DefaultCharset = cfg.DefaultCharset
		opts.DetectCharset = cfg.DetectCharset
		opts.MaxDepth = cfg.MaxDepth

		msg, err := mimetree.ParseFile(args[0], opts)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", args[0], err)
		}

		fmt.Print(mimetree.Dump(msg.Root))
		for _, p := range msg.Problems {
			fmt.Println(p)
		}
		return nil
	},
}

// splitDashArgs separates the input file from wkhtmltopdf passthrough
// arguments given after --.
func splitDashArgs(cmd *cobra.Command, args []string) (string, []string, error) {
	n := cmd.ArgsLenAtDash()
	if n < 0 {
		n = len(args)
	}
	if n != 1 {
		return "", nil, fmt.Errorf("expected exactly one input file, got %d", n)
	}
	return args[0], args[1:], nil
}

// resolveConfig resolves the configuration for commands whose --output flag
// names a directory.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.FromCommand(cmd, flagConfigPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("output") {
		if cfg.OutputDir, err = cmd.Flags().GetString("output"); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newConverter builds a converter, attaching the history store when one is
// configured.
func newConverter(cfg *config.Config) (*converter.Converter, *history.Store, error) {
	conv := converter.New(cfg, slog.Default())
	if cfg.HistoryPath == "" {
		return conv, nil, nil
	}

	store, err := history.Open(cfg.HistoryPath, cfg.OutputDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return conv.WithHistory(store), store, nil
}

func closeStore(store *history.Store) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		slog.Warn("failed to close history database", "error", err)
	}
}

func printProgress(done, total int, path string) {
	fmt.Printf("\r[%d/%d] %s\033[K", done, total, filepath.Base(path))
}

func printSummary(result *converter.BatchResult) {
	if result.TotalFound > 0 {
		fmt.Println()
	}
	fmt.Printf("Found %d, converted %d, skipped %d, failed %d\n",
		result.TotalFound, result.Converted, result.Skipped, result.Failed)
}
