package commands

import (
	"context"
	"errors"
	"log/slog"
	"tenderscrape/internal/components/chrono"
	"tenderscrape/internal/components/telemetry"
	"tenderscrape/internal/config"
	"tenderscrape/internal/detail"
	"tenderscrape/internal/docparse"
	"tenderscrape/internal/documents"
	"tenderscrape/internal/fetch"
	"tenderscrape/internal/pipeline"
	"tenderscrape/internal/scrapers/browser"
	"tenderscrape/internal/scrapers/portal"
	"tenderscrape/internal/store"
	"tenderscrape/lib/restyutil"
)

type scraper struct {
	client       *portal.Client
	selector     *fetch.Selector
	store        *store.Store
	orchestrator *pipeline.Orchestrator
}

func (s *scraper) Close() error {
	return errors.Join(
		s.selector.Close(),
		s.client.Close(),
		s.store.Close(),
	)
}

func enabled(flag *bool, fallback bool) bool {
	if flag == nil {
		return fallback
	}
	return *flag
}

func newScraper(ctx context.Context, cfg config.Config, opts pipeline.Options, tel telemetry.API) (*scraper, error) {
	clock, err := chrono.NewStandardImpl(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	opts.Clock = clock
	if opts.PageSize == 0 {
		opts.PageSize = cfg.PageSize
	}

	var diagnostics restyutil.Output = restyutil.Discard{}
	if cfg.DiagnosticsDir != "" {
		diagnostics, err = restyutil.NewFilesystemOutput(cfg.DiagnosticsDir)
		if err != nil {
			return nil, err
		}
	}

	policy := cfg.RetryPolicy()
	policy.Logger = slog.Default()

	client, err := portal.NewClient(portal.Options{
		BaseUrl:          cfg.BaseURL,
		Timeout:          cfg.RequestTimeout.Std(),
		Retry:            policy,
		CloudflareBypass: enabled(cfg.CloudflareBypass, true),
		Diagnostics:      diagnostics,
		Clock:            clock,
	}, tel)
	if err != nil {
		return nil, err
	}

	newBrowser := func(ctx context.Context) (fetch.Source, error) {
		window, err := browser.NewChrome(ctx, browser.ChromeOptions{
			Headless:  enabled(cfg.Headless, true),
			UserAgent: portal.UserAgent,
		})
		if err != nil {
			return nil, err
		}
		return browser.NewClient(window, browser.Options{
			ListingURL:    client.BaseUrl.JoinPath(portal.LandingPath).String(),
			ScreenshotDir: cfg.ScreenshotDir,
			MinDelay:      cfg.Delay.Min.Std(),
			MaxDelay:      cfg.Delay.Max.Std(),
			Clock:         clock,
			DetailURL:     client.DetailURL,
		}, tel), nil
	}

	selector, err := fetch.NewSelector(cfg.Mode, client, newBrowser, tel)
	if err != nil {
		client.Close()
		return nil, err
	}

	overrides, err := docparse.CompilePatterns(cfg.FieldPatterns)
	if err != nil {
		client.Close()
		return nil, err
	}
	parser := docparse.NewParser(docparse.MergePatterns(docparse.DefaultPatterns(), overrides), tel)

	fetcher, err := documents.NewFetcher(client.Http, documents.Options{
		Dir:     cfg.DownloadDir,
		Delay:   cfg.Download.Delay.Std(),
		Workers: cfg.Download.Workers,
		Retry:   policy,
		Referer: client.BaseUrl.JoinPath("/").String(),
	}, tel)
	if err != nil {
		client.Close()
		return nil, err
	}

	storage, err := store.Open(ctx, cfg.Database, clock)
	if err != nil {
		client.Close()
		return nil, err
	}

	return &scraper{
		client:   client,
		selector: selector,
		store:    storage,
		orchestrator: pipeline.NewOrchestrator(
			selector,
			detail.NewExtractor(selector, nil, tel),
			fetcher,
			parser,
			storage,
			opts,
			tel,
		),
	}, nil
}
