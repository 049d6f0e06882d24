package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/onyxdevs/subzilla-sub000/internal/cli"
	"github.com/onyxdevs/subzilla-sub000/internal/cli/config"
	"github.com/onyxdevs/subzilla-sub000/pkg/subtitle"
)

var (
	// Set at build time via -ldflags.
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Flags persistent across commands.
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "subzilla",
	Short: "Converts subtitle files to clean, normalized UTF-8.",
	Long: `subzilla detects the character encoding of subtitle files and rewrites
them as normalized UTF-8, optionally stripping formatting noise (HTML tags,
color codes, URLs, emojis and more) while keeping timing lines intact.

Use "convert" for a single file or "batch" for glob-driven bulk runs with
bounded concurrency and retries.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var convertCmd = &cobra.Command{
	Use:   "convert <input> [output]",
	Short: "Convert a single subtitle file to UTF-8",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		opts, logger, err := config.Load(cfgFile, verbose, cmd.Flags())
		if err != nil {
			return err
		}
		output := ""
		if len(args) == 2 {
			output = args[1]
		}
		return cli.RunConvert(ctx, args[0], output, opts.Conversion, logger)
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch <pattern>",
	Short: "Convert every file matching a glob pattern",
	Long: `Convert every file matching the glob pattern, e.g. "**/*.srt" or
"media/*.sub". Quote the pattern to keep the shell from expanding it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		opts, logger, err := config.Load(cfgFile, verbose, cmd.Flags())
		if err != nil {
			return err
		}
		opts.Pattern = args[0]
		jsonOut, _ := cmd.Flags().GetBool("json")
		return cli.RunBatch(ctx, opts, logger, verbose, jsonOut)
	},
}

// Execute runs the root command, printing the error and exiting non-zero on
// failure.
func Execute() {
	rootCmd.SetVersionTemplate(`{{.Use}} version {{.Version}}` + "\n")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// addConversionFlags registers the per-file conversion flags shared by the
// convert and batch commands. Names align with the viper keys bound in
// internal/cli/config.
func addConversionFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("strip-html", false, "Strip HTML tags, keeping their text content")
	cmd.Flags().Bool("strip-colors", false, "Strip SSA/ASS color codes like {\\c&H00FF00&}")
	cmd.Flags().Bool("strip-styles", false, "Strip SSA/ASS style codes like {\\an8}")
	cmd.Flags().Bool("strip-urls", false, "Replace URLs with [URL]")
	cmd.Flags().Bool("strip-timestamps", false, "Replace inline timestamp spans with [TIMESTAMP]")
	cmd.Flags().Bool("strip-numbers", false, "Replace digit runs with #")
	cmd.Flags().Bool("strip-punctuation", false, "Strip punctuation characters")
	cmd.Flags().Bool("strip-emojis", false, "Replace emoji sequences with [EMOJI]")
	cmd.Flags().Bool("strip-brackets", false, "Strip bracket characters")
	cmd.Flags().Bool("strip-bidi", false, "Strip bidirectional control characters")
	cmd.Flags().Bool("backup", false, "Create a backup of the input before converting")
	cmd.Flags().String("backup-policy", string(subtitle.BackupOverwrite), `Backup collision policy ("overwrite" or "numbered")`)
	cmd.Flags().Bool("bom", false, "Write a UTF-8 BOM at the start of the output")
	cmd.Flags().String("line-endings", string(subtitle.LineEndingAuto), `Output line endings ("lf", "crlf" or "auto")`)
	cmd.Flags().Bool("overwrite-existing", false, "Replace the output file if it already exists")
	cmd.Flags().Bool("overwrite-input", false, "Convert in place, replacing the input file")
	cmd.Flags().String("default-encoding", subtitle.DefaultEncoding, "Encoding to assume when detection is inconclusive")
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Configuration file path (default searches ., $HOME/.config/subzilla/)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose (debug) logging output (disables the progress bar)")

	addConversionFlags(convertCmd)
	addConversionFlags(batchCmd)

	batchCmd.Flags().BoolP("recursive", "r", false, "Insert ** into patterns without one to match subdirectories")
	batchCmd.Flags().BoolP("parallel", "p", false, "Process directories and files in bounded concurrent chunks")
	batchCmd.Flags().Bool("skip-existing", false, "Skip files whose output already exists")
	batchCmd.Flags().Bool("preserve-structure", false, "Mirror the source directory layout under the output directory")
	batchCmd.Flags().Int("chunk-size", 0, "Concurrent chunk width (0 for defaults: 3 directories, 5 files)")
	batchCmd.Flags().Int("max-depth", -1, "Maximum directory depth below the pattern base (-1 for unlimited)")
	batchCmd.Flags().StringSlice("include-dirs", nil, "Only process files whose directory path contains one of these substrings")
	batchCmd.Flags().StringSlice("exclude-dirs", nil, "Skip files whose directory path contains one of these substrings")
	batchCmd.Flags().Int("retry-count", 0, "Number of retries after a failed conversion attempt")
	batchCmd.Flags().Int("retry-delay", 1000, "Delay between retry attempts in milliseconds")
	batchCmd.Flags().Bool("fail-fast", false, "Stop scheduling new work after the first file fails all attempts")
	batchCmd.Flags().StringP("output-dir", "o", "", "Directory to write converted files into")
	batchCmd.Flags().Bool("json", false, "Print the run summary as JSON")

	rootCmd.AddCommand(convertCmd, batchCmd)
}
