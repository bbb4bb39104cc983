package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"tenderscrape/internal/components/telemetry"
	"tenderscrape/internal/config"
	"tenderscrape/internal/pipeline"
	"tenderscrape/internal/tender"
	"tenderscrape/lib/osutil"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

var (
	runLimit   int
	runMode    string
	runVisible bool
	runDb      string
	runSearch  string
	runSortCol int
	runSortDir string
	runFilters map[string]string
)

func init() {
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "Stop after this many listed tenders, 0 processes all of them.")
	runCmd.Flags().StringVar(&runMode, "mode", "", "Fetch mode: api, browser or hybrid. Overrides the config.")
	runCmd.Flags().BoolVar(&runVisible, "visible", false, "Show the browser window instead of running headless.")
	runCmd.Flags().StringVar(&runDb, "db", "", "The sqlite database to write to. Overrides the config.")
	runCmd.Flags().StringVar(&runSearch, "search", "", "Only process tenders matching this search term.")
	runCmd.Flags().IntVar(&runSortCol, "sort-column", 0, "Listing column to sort on, 0 to 7.")
	runCmd.Flags().StringVar(&runSortDir, "sort-dir", "asc", "Listing sort direction: asc or desc.")
	runCmd.Flags().StringToStringVar(&runFilters, "filter", nil, "Per column search terms as <column>=<term>, repeatable.")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [--limit N] [--mode api|browser|hybrid] [--visible] [--db <path>]",
	Short: "Scrapes the portal and stores tenders, documents and extracted fields.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if runMode != "" {
			cfg.Mode = config.Mode(runMode)
		}
		if runVisible {
			headless := false
			cfg.Headless = &headless
		}
		if runDb != "" {
			cfg.Database = config.Database{File: runDb}
		}
		err = cfg.Validate()
		if err != nil {
			return err
		}

		shutdown, err := telemetry.SetupOtlp(ctx, "tenderscrape", cfg.Otlp)
		if err != nil {
			return err
		}
		defer func() {
			err := shutdown(context.WithoutCancel(ctx))
			if err != nil {
				slog.Warn("failed to flush telemetry", "err", err)
			}
		}()
		meter := otel.Meter("tenderscrape")
		tel, err := telemetry.NewMeteredAPI(telemetry.SlogAPI{}, meter)
		if err != nil {
			return err
		}
		if cfg.Otlp.Metrics.Enabled() {
			err = telemetry.InstrumentPerfStats(ctx, meter, 30*time.Second)
			if err != nil {
				slog.Warn("failed to start process stats", "err", err)
			}
		}

		filters, err := columnFilters(runFilters)
		if err != nil {
			return err
		}
		s, err := newScraper(ctx, cfg, pipeline.Options{
			Limit:      runLimit,
			Search:     runSearch,
			SortColumn: runSortCol,
			SortDir:    tender.SortDir(runSortDir),
			Filters:    filters,
		}, tel)
		if err != nil {
			return err
		}
		defer func() {
			err := s.Close()
			if err != nil {
				slog.Warn("failed to release scraper", "err", err)
			}
		}()

		slog.Info("starting run", "mode", cfg.Mode, "limit", runLimit, "base_url", cfg.BaseURL)
		log, err := s.orchestrator.Run(ctx)
		printSummary(cmd.OutOrStdout(), log)

		if err != nil {
			if osutil.Interrupted(ctx, err) {
				return ExitError{Code: osutil.ExitInterrupted, Err: fmt.Errorf("interrupted: %w", err)}
			}
			return ExitError{Code: 1, Err: err}
		}
		return nil
	},
}

// columnFilters turns the --filter flag into search terms keyed by column.
func columnFilters(raw map[string]string) (map[int]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[int]string, len(raw))
	for key, term := range raw {
		col, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("filter %s=%s: column must be a number", key, term)
		}
		out[col] = term
	}
	return out, nil
}

func printSummary(w io.Writer, log tender.RunLog) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Run %s", log.ID)
	t.AppendRows([]table.Row{
		{"Status", log.Status},
		{"Fetch mode", log.Mode},
		{"Discovered", log.Discovered},
		{"Succeeded", log.Succeeded},
		{"Failed", log.Failed},
		{"Success rate", fmt.Sprintf("%.1f%%", log.SuccessRate())},
		{"Documents downloaded", log.DocumentsDownloaded},
		{"Documents failed", log.DocumentsFailed},
		{"Documents parsed", log.DocumentsParsed},
		{"Duration", log.Duration().Round(time.Second)},
	})
	if log.Notes != "" {
		t.AppendRow(table.Row{"Notes", log.Notes})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
