package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"media-tagger/internal/indexer"
	"media-tagger/internal/logging"
	"media-tagger/internal/pipeline"
	"media-tagger/internal/thumbnail"
)

const (
	flagSizes = "sizes"
	flagForce = "force"

	progressInterval = 200 * time.Millisecond
)

func newGenerateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <path>...",
		Short: "Register files in the catalog and generate their thumbnails",
		Long: `Register each file in the catalog (directories are walked recursively and
hidden entries are skipped), queue thumbnails for the requested sizes and
wait until every job has completed or failed.`,
		Example: `  media-tagger generate photos/
  media-tagger generate --sizes small,medium a.jpg b.png`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawSizes, err := cmd.Flags().GetString(flagSizes)
			if err != nil {
				return err
			}
			sizes, err := thumbnail.ParseSizes(rawSizes)
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool(flagForce)
			if err != nil {
				return err
			}
			return runGenerate(cmd.Context(), v, args, sizes, force, cmd.OutOrStdout())
		},
	}
	cmd.Flags().String(flagSizes, "small,medium,large", "comma separated thumbnail sizes")
	cmd.Flags().Bool(flagForce, false, "regenerate thumbnails that already exist")
	return cmd
}

func runGenerate(ctx context.Context, v *viper.Viper, paths []string, sizes []thumbnail.Size, force bool, out io.Writer) error {
	a, err := openApp(ctx, v)
	if err != nil {
		return err
	}
	defer a.close()

	if force {
		a.cfg.Pipeline.SkipExisting = false
	}

	walk, err := indexer.NewWalker(a.db, indexer.DefaultConfig()).Walk(ctx, paths...)
	if err != nil {
		return err
	}
	files := walk.Files
	if walk.Errors > 0 {
		fmt.Fprintf(out, "Warning: %d file(s) could not be registered\n", walk.Errors)
	}
	if len(files) == 0 {
		fmt.Fprintln(out, "No files found.")
		return nil
	}

	proc := a.newProcessor()
	proc.Start()
	defer func() {
		if err := proc.Shutdown(context.Background()); err != nil {
			logging.Warn("Pipeline shutdown error: %v", err)
		}
	}()

	queued, err := proc.QueueFiles(ctx, files, sizes)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Registered %d file(s), queued %d thumbnail job(s)\n", len(files), queued)
	if queued == 0 {
		return nil
	}

	started := time.Now()
	stats, err := waitForJobs(ctx, proc, uint64(queued), newProgress(out))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Done: %d generated, %d failed, %d retried in %s\n",
		stats.CompletedJobs, stats.FailedJobs, stats.RetriedJobs, time.Since(started).Round(time.Millisecond))
	if stats.FailedJobs > 0 {
		return fmt.Errorf("%d thumbnail job(s) failed", stats.FailedJobs)
	}
	return nil
}

// waitForJobs polls the processor until total jobs have resolved.
func waitForJobs(ctx context.Context, proc *pipeline.Processor, total uint64, report func(pipeline.ProcessingStats, uint64)) (pipeline.ProcessingStats, error) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		stats, err := proc.Stats(ctx)
		if err != nil {
			return stats, err
		}
		report(stats, total)
		if stats.CompletedJobs+stats.FailedJobs >= total {
			return stats, nil
		}
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-ticker.C:
		}
	}
}

// newProgress returns a reporter that redraws one line on a terminal and
// stays silent otherwise.
func newProgress(out io.Writer) func(pipeline.ProcessingStats, uint64) {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return func(pipeline.ProcessingStats, uint64) {}
	}

	width := 80
	if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
		width = w
	}

	return func(s pipeline.ProcessingStats, total uint64) {
		line := fmt.Sprintf("[%d/%d] %d failed, %d retrying, %d active, %.1f/s",
			s.CompletedJobs+s.FailedJobs, total, s.FailedJobs, s.RetryingJobs, s.ProcessingJobs, s.ThroughputPerSecond)
		if len(line) > width-1 {
			line = line[:width-1]
		}
		fmt.Fprintf(f, "\r%-*s", width-1, line)
		if s.CompletedJobs+s.FailedJobs >= total {
			fmt.Fprintln(f)
		}
	}
}
