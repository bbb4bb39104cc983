package commands

import (
	"io"
	"os"
	"tenderscrape/internal/components/chrono"
	"tenderscrape/internal/store"
	"tenderscrape/internal/tender"

	"github.com/jszwec/csvutil"
	"github.com/spf13/cobra"
)

var exportOut string

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "-", "The csv file to write, - for stdout.")
	rootCmd.AddCommand(exportCmd)
}

type exportRow struct {
	tender.Record
	FetchMode tender.FetchMode `csv:"fetch_mode"`
}

var exportCmd = &cobra.Command{
	Use:   "export [--out <path.csv>]",
	Short: "Writes every stored tender as csv.",
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

		records, err := storage.Records(cmd.Context())
		if err != nil {
			return err
		}
		rows := make([]exportRow, 0, len(records))
		for _, r := range records {
			rows = append(rows, exportRow{Record: r.Record, FetchMode: r.Mode})
		}
		out, err := csvutil.Marshal(rows)
		if err != nil {
			return err
		}

		var w io.Writer = os.Stdout
		if exportOut != "-" {
			file, err := os.Create(exportOut)
			if err != nil {
				return err
			}
			defer file.Close()
			w = file
		}
		_, err = w.Write(out)
		return err
	},
}
