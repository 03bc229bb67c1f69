package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ytdle/internal/history"
)

// openStore opens the history database for a subcommand, logging to the file
// only so terminal output stays clean.
func openStore(ro *rootOpts) (*history.Store, error) {
	return history.NewStore(slog.New(slog.NewTextHandler(io.Discard, nil)), ro.DBPath)
}

func newHistoryCmd(ro *rootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and manage the download history",
	}

	var (
		failedOnly    bool
		completedOnly bool
		limit         int
		asJSON        bool
	)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List history records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ro)
			if err != nil {
				return err
			}
			defer store.Close()

			var recs []history.Record
			switch {
			case failedOnly:
				recs, err = store.GetFailed(limit)
			case completedOnly:
				recs, err = store.GetCompleted(limit)
			default:
				recs, err = store.GetAll(limit)
			}
			if err != nil {
				return err
			}
			return printRecords(cmd.OutOrStdout(), recs, asJSON)
		},
	}
	listCmd.Flags().BoolVar(&failedOnly, "failed", false, "Only failed downloads")
	listCmd.Flags().BoolVar(&completedOnly, "completed", false, "Only completed downloads")
	listCmd.Flags().IntVar(&limit, "limit", 50, "Max records (0 = all)")
	listCmd.Flags().BoolVar(&asJSON, "json", false, "JSON output")

	searchCmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search history by URL or title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ro)
			if err != nil {
				return err
			}
			defer store.Close()

			recs, err := store.Search(args[0], limit)
			if err != nil {
				return err
			}
			return printRecords(cmd.OutOrStdout(), recs, asJSON)
		},
	}
	searchCmd.Flags().IntVar(&limit, "limit", 50, "Max records (0 = all)")
	searchCmd.Flags().BoolVar(&asJSON, "json", false, "JSON output")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show history totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ro)
			if err != nil {
				return err
			}
			defer store.Close()

			st, err := store.Stats()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total:      %d\n", st.Total)
			fmt.Fprintf(out, "Completed:  %d\n", st.Completed)
			fmt.Fprintf(out, "Failed:     %d\n", st.Failed)
			fmt.Fprintf(out, "Success:    %.1f%%\n", st.SuccessRate*100)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete history records",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ro)
			if err != nil {
				return err
			}
			defer store.Close()

			var n int64
			switch {
			case failedOnly:
				n, err = store.ClearFailed()
			case completedOnly:
				n, err = store.ClearCompleted()
			default:
				n, err = store.ClearAll()
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d record(s)\n", n)
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&failedOnly, "failed", false, "Only failed downloads")
	clearCmd.Flags().BoolVar(&completedOnly, "completed", false, "Only completed downloads")

	exportCmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Export failed downloads to a retry file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ro)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.ExportFailed(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d failed download(s) to %s\n", n, args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, searchCmd, statsCmd, clearCmd, exportCmd)
	return cmd
}

func printRecords(out io.Writer, recs []history.Record, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}
	if len(recs) == 0 {
		fmt.Fprintln(out, "No records.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tSTATUS\tFORMAT\tTITLE\tURL")
	for _, rec := range recs {
		status := "ok"
		if !rec.Success {
			status = "failed"
		}
		title := rec.Title
		if len(title) > 40 {
			title = title[:37] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", rec.Timestamp, status, rec.Format, title, rec.URL)
	}
	return w.Flush()
}
