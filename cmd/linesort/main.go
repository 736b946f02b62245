// Command linesort sorts text files too large for memory.
//
// Logging:
//   - The base logger is created here from --log-level and --log-format
//   - It is handed to the library through linesort.WithLogger
//   - No global slog configuration (no slog.SetDefault)
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/tamirms/linesort"
	sorterrors "github.com/tamirms/linesort/errors"
	"github.com/tamirms/linesort/internal/logging"
)

const mib = 1024 * 1024

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := execute(ctx, newRootCmd()); err != nil {
		os.Exit(1)
	}
}

// reportedError marks an error whose diagnostic was already printed.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

// execute runs cmd and prints any error not reported by the command itself.
func execute(ctx context.Context, cmd *cobra.Command) error {
	err := cmd.ExecuteContext(ctx)
	if err != nil && !errors.As(err, new(reportedError)) {
		fmt.Fprintf(cmd.ErrOrStderr(), "linesort: %v\n", err)
	}
	return err
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "linesort",
		Short:         "External merge sort for line-oriented text files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")

	rootCmd.AddCommand(newSortCmd(), newVerifyCmd())
	return rootCmd
}

func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	opts := &slog.HandlerOptions{Level: logging.ParseLevel(level)}
	w := cmd.ErrOrStderr()
	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (use text or json)", format)
	}
}

func newSortCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sort <file|pattern>...",
		Short: "Sort files; each result is written next to its source as name_Sorted.ext",
		Long: `Sort one or more files. Arguments may be glob patterns, including **
for recursive matches. Files that look like earlier results (name_Sorted.ext)
are skipped when matched by a pattern. Sources are sorted one after another
and the first failure stops the run.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}
			sources, err := expandSources(args)
			if err != nil {
				return err
			}
			opts, err := sortOptions(cmd, len(sources))
			if err != nil {
				return err
			}
			opts = append(opts, linesort.WithLogger(logger))

			for _, src := range sources {
				res, err := linesort.SortFile(cmd.Context(), src, opts...)
				if err != nil {
					reportFailure(cmd.ErrOrStderr(), err)
					return reportedError{err}
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Path)
			}
			return nil
		},
	}

	cmd.Flags().Int64("chunk-size", linesort.DefaultChunkSize/mib, "chunk size in MiB")
	cmd.Flags().Int64("memory", linesort.DefaultMemoryBudget/mib, "merge buffer budget in MiB")
	cmd.Flags().Int("workers", 1, "number of chunks sorted concurrently")
	cmd.Flags().String("temp-dir", "", "directory for chunk files (default: the source's directory)")
	cmd.Flags().StringP("output", "o", "", "result path (default: name_Sorted.ext next to the source)")
	cmd.Flags().Bool("no-verify", false, "skip checking that the output holds every source line in order")
	cmd.Flags().Bool("compress-chunks", false, "store sorted chunks zstd-compressed")
	return cmd
}

func sortOptions(cmd *cobra.Command, sources int) ([]linesort.SortOption, error) {
	chunkSize, _ := cmd.Flags().GetInt64("chunk-size")
	memory, _ := cmd.Flags().GetInt64("memory")
	workers, _ := cmd.Flags().GetInt("workers")
	tempDir, _ := cmd.Flags().GetString("temp-dir")
	output, _ := cmd.Flags().GetString("output")
	noVerify, _ := cmd.Flags().GetBool("no-verify")
	compress, _ := cmd.Flags().GetBool("compress-chunks")

	if chunkSize <= 0 {
		return nil, fmt.Errorf("--chunk-size must be positive, got %d", chunkSize)
	}
	if memory <= 0 {
		return nil, fmt.Errorf("--memory must be positive, got %d", memory)
	}
	if output != "" && sources > 1 {
		return nil, fmt.Errorf("--output needs a single source, got %d", sources)
	}

	opts := []linesort.SortOption{
		linesort.WithChunkSize(chunkSize * mib),
		linesort.WithMemoryBudget(memory * mib),
		linesort.WithWorkers(workers),
		linesort.WithVerify(!noVerify),
		linesort.WithChunkCompression(compress),
	}
	if tempDir != "" {
		opts = append(opts, linesort.TempDir(tempDir))
	}
	if output != "" {
		opts = append(opts, linesort.WithResultPath(output))
	}
	return opts, nil
}

// expandSources resolves glob arguments to files. A plain path is kept as
// given so a missing source is reported by the sorter. Matches are
// deduplicated and earlier results are skipped.
func expandSources(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var sources []string
	for _, arg := range args {
		if !strings.ContainsAny(arg, "*?[{") {
			if !seen[arg] {
				seen[arg] = true
				sources = append(sources, arg)
			}
			continue
		}

		matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", arg, err)
		}
		n := 0
		for _, m := range matches {
			if isResult(m) || seen[m] {
				continue
			}
			seen[m] = true
			sources = append(sources, m)
			n++
		}
		if n == 0 {
			return nil, fmt.Errorf("no files match %q", arg)
		}
	}
	return sources, nil
}

// isResult reports whether path is named like a sort result.
func isResult(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(strings.TrimSuffix(base, filepath.Ext(base)), "_Sorted")
}

// reportFailure prints the diagnostic for a failed sort: stage, kind, file.
func reportFailure(w io.Writer, err error) {
	var se *sorterrors.StageError
	if errors.As(err, &se) {
		fmt.Fprintf(w, "sort failed during %s (%s error)", se.Stage, se.Kind)
		if se.Path != "" {
			fmt.Fprintf(w, " on %s", se.Path)
		}
		fmt.Fprintf(w, ": %v\n", se.Err)
		return
	}
	fmt.Fprintf(w, "sort failed: %v\n", err)
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Check that a file is sorted and print its record count and checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := linesort.Verify(args[0])
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "verify failed: %v\n", err)
				return reportedError{err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: sorted, %d records, %d bytes, checksum %016x\n",
				args[0], stats.Records, stats.Bytes, stats.Checksum)
			return nil
		},
	}
}
