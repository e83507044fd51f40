package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"media-tagger/internal/thumbnail"
)

const flagJSON = "json"

func newStatsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print thumbnail storage statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, err := cmd.Flags().GetBool(flagJSON)
			if err != nil {
				return err
			}
			return runStats(cmd.Context(), v, asJSON, cmd.OutOrStdout())
		},
	}
	cmd.Flags().Bool(flagJSON, false, "print JSON instead of a table")
	return cmd
}

func runStats(ctx context.Context, v *viper.Viper, asJSON bool, out io.Writer) error {
	a, err := openApp(ctx, v)
	if err != nil {
		return err
	}
	defer a.close()

	stats, err := a.repo.StorageStats(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	return printStorageStats(out, stats)
}

func printStorageStats(out io.Writer, stats thumbnail.StorageStats) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Thumbnails:\t%d\n", stats.Total)
	fmt.Fprintf(tw, "Total size:\t%s\n", humanBytes(stats.TotalBytes))
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "SIZE\tCOUNT")
	for _, size := range thumbnail.AllSizes() {
		fmt.Fprintf(tw, "%s\t%d\n", size, stats.BySize[size])
	}
	fmt.Fprintln(tw)

	mimeTypes := make([]string, 0, len(stats.ByMimeType))
	for m := range stats.ByMimeType {
		mimeTypes = append(mimeTypes, m)
	}
	sort.Strings(mimeTypes)

	fmt.Fprintln(tw, "MIME TYPE\tCOUNT")
	for _, m := range mimeTypes {
		fmt.Fprintf(tw, "%s\t%d\n", m, stats.ByMimeType[m])
	}
	return tw.Flush()
}

func humanBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
