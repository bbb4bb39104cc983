package commands

import (
	"os"
	"tenderscrape/internal/components/chrono"
	"tenderscrape/internal/store"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var runsLimit int

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "How many runs to show.")
	rootCmd.AddCommand(runsCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs [--limit N]",
	Short: "Prints the most recent runs.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		storage, err := store.Open(cmd.Context(), cfg.Database, chrono.StandardImpl{})
		if err != nil {
			return err
		}
		defer storage.Close()

		runs, err := storage.RunLogs(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Started", "Status", "Mode", "Discovered", "Succeeded", "Failed", "Documents", "Duration", "Notes"})
		for _, r := range runs {
			t.AppendRow(table.Row{
				r.StartedAt.Format(time.DateTime),
				r.Status,
				r.Mode,
				r.Discovered,
				r.Succeeded,
				r.Failed,
				r.DocumentsDownloaded,
				r.Duration().Round(time.Second),
				r.Notes,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
