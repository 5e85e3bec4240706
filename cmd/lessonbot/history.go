package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/AndreyBychenkow/LessonReportBot/internal/storage"
	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	var (
		limit    int
		failures bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently delivered reviews",
		Long: `Show the most recent review results delivered to the chat, newest first.

Use --failures to list classified poll and delivery failures instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			path := cfg.ResolveJournalPath()
			if _, err := os.Stat(path); os.IsNotExist(err) {
				if failures {
					fmt.Fprintln(cmd.OutOrStdout(), "No failures recorded")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "No deliveries recorded yet")
				}
				return nil
			}
			db, err := storage.Open(path)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer db.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			if failures {
				rows, err := db.RecentFailures(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No failures recorded")
					return nil
				}
				fmt.Fprintln(w, "TIME\tCLASS\tCURSOR\tMESSAGE")
				for _, f := range rows {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
						f.OccurredAt.Local().Format("2006-01-02 15:04:05"), f.Class, f.Cursor, f.Message)
				}
				return w.Flush()
			}

			rows, err := db.RecentDeliveries(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No deliveries recorded yet")
				return nil
			}
			fmt.Fprintln(w, "TIME\tRESULT\tLESSON\tCHUNKS")
			for _, d := range rows {
				result := "accepted"
				if d.IsNegative {
					result = "needs revision"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
					d.DeliveredAt.Local().Format("2006-01-02 15:04:05"), result, d.LessonTitle, d.Chunks)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			total, err := db.CountDeliveries(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nShowing %d of %d deliveries\n", len(rows), total)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	cmd.Flags().BoolVar(&failures, "failures", false, "show failures instead of deliveries")
	return cmd
}
