// Package fetch decides which client serves listing and detail requests.
// It starts on the json client and moves to the browser, for good, once the
// json client is exhausted or its session cannot be re-established.
package fetch

import (
	"context"
	"fmt"
	"sync"
	"tenderscrape/internal/assert"
	"tenderscrape/internal/components/telemetry"
	"tenderscrape/internal/config"
	"tenderscrape/internal/scrapeerr"
	"tenderscrape/internal/tender"
)

const (
	report_selector_fallback = "selector.fallback"
	report_selector_listing  = "selector.fetch-listing"
	report_selector_detail   = "selector.fetch-detail"
	report_selector_browser  = "selector.start-browser"
)

// Source is what both the json and the browser client provide.
type Source interface {
	FetchListing(ctx context.Context, q tender.PageQuery) (tender.Listing, error)
	FetchDetail(ctx context.Context, record tender.Record) (tender.DetailPage, error)
	Close() error
}

// BrowserFactory starts the browser client on first use.
type BrowserFactory func(ctx context.Context) (Source, error)

type State int

const (
	StateAPIPreferred State = iota
	StateBrowserFallback
)

func (s State) String() string {
	if s == StateBrowserFallback {
		return "BROWSER_FALLBACK"
	}
	return "API_PREFERRED"
}

type Selector struct {
	mode       config.Mode
	api        Source
	newBrowser BrowserFactory

	mutex   sync.Mutex
	state   State
	browser Source
	served  map[tender.FetchMode]int

	tel telemetry.API
}

// NewSelector builds a selector for the given mode. api may be nil in
// browser mode and newBrowser may be nil in api mode.
func NewSelector(mode config.Mode, api Source, newBrowser BrowserFactory, tel telemetry.API) (*Selector, error) {
	assert.NotNil(tel)

	s := &Selector{
		mode:       mode,
		api:        api,
		newBrowser: newBrowser,
		served:     map[tender.FetchMode]int{},
		tel:        telemetry.NewScopedAPI("fetch", tel),
	}
	switch mode {
	case config.ModeAPI:
		if api == nil {
			return nil, fmt.Errorf("fetch: api mode needs an api client")
		}
	case config.ModeBrowser:
		if newBrowser == nil {
			return nil, fmt.Errorf("fetch: browser mode needs a browser factory")
		}
		s.state = StateBrowserFallback
	case config.ModeHybrid:
		if api == nil || newBrowser == nil {
			return nil, fmt.Errorf("fetch: hybrid mode needs both clients")
		}
	default:
		return nil, fmt.Errorf("fetch: unknown mode %q", mode)
	}
	return s, nil
}

func (s *Selector) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// Mode is the mode recorded for the run: browser as soon as the browser
// served anything, api otherwise.
func (s *Selector) Mode() tender.FetchMode {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.served[tender.FetchModeBrowser] > 0 || s.state == StateBrowserFallback {
		return tender.FetchModeBrowser
	}
	return tender.FetchModeAPI
}

// shouldFallback is true for failures the json client cannot recover from
// by itself: exhausted retries on network errors and sessions that stayed
// rejected after a fresh bootstrap.
func shouldFallback(err error) bool {
	if _, ok := scrapeerr.Exhausted(err); ok {
		return scrapeerr.Classify(err) == scrapeerr.KindNetwork
	}
	return scrapeerr.Classify(err) == scrapeerr.KindAuth
}

func (s *Selector) current() (State, Source) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state, s.browser
}

func (s *Selector) fallback(cause error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.state == StateBrowserFallback {
		return
	}
	s.state = StateBrowserFallback
	s.tel.ReportWarning(report_selector_fallback, fmt.Errorf("switching to browser: %w", cause))
}

func (s *Selector) ensureBrowser(ctx context.Context) (Source, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.browser != nil {
		return s.browser, nil
	}
	browser, err := s.newBrowser(ctx)
	if err != nil {
		s.tel.ReportBroken(report_selector_browser, err)
		return nil, scrapeerr.Fatal(report_selector_browser, err)
	}
	s.browser = browser
	return browser, nil
}

func (s *Selector) markServed(mode tender.FetchMode) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.served[mode]++
}

// call runs fn on the client the current state selects. A listing failure
// that leaves no client to fall back to is fatal, and so is a rejected
// session in api mode. Other detail failures stay with the record.
func call[T any](ctx context.Context, s *Selector, op string, listing bool, fn func(Source) (T, error)) (T, tender.FetchMode, error) {
	var zero T

	state, _ := s.current()
	if state == StateAPIPreferred {
		out, err := fn(s.api)
		if err == nil {
			s.markServed(tender.FetchModeAPI)
			return out, tender.FetchModeAPI, nil
		}
		if scrapeerr.IsFatal(err) {
			return zero, tender.FetchModeAPI, err
		}
		if !shouldFallback(err) {
			return zero, tender.FetchModeAPI, err
		}
		if s.mode == config.ModeAPI {
			// a session that stays rejected fails every later record too
			if listing || scrapeerr.Classify(err) == scrapeerr.KindAuth {
				return zero, tender.FetchModeAPI, scrapeerr.Fatal(op, err)
			}
			return zero, tender.FetchModeAPI, err
		}
		s.fallback(err)
	}

	browser, err := s.ensureBrowser(ctx)
	if err != nil {
		return zero, tender.FetchModeBrowser, err
	}
	out, err := fn(browser)
	if err != nil {
		s.tel.ReportBroken(op, err)
		if listing {
			return zero, tender.FetchModeBrowser, scrapeerr.Fatal(op, err)
		}
		return zero, tender.FetchModeBrowser, err
	}
	s.markServed(tender.FetchModeBrowser)
	return out, tender.FetchModeBrowser, nil
}

func (s *Selector) FetchListing(ctx context.Context, q tender.PageQuery) (tender.Listing, tender.FetchMode, error) {
	return call(ctx, s, report_selector_listing, true, func(src Source) (tender.Listing, error) {
		return src.FetchListing(ctx, q)
	})
}

func (s *Selector) FetchDetail(ctx context.Context, record tender.Record) (tender.DetailPage, tender.FetchMode, error) {
	return call(ctx, s, report_selector_detail, false, func(src Source) (tender.DetailPage, error) {
		return src.FetchDetail(ctx, record)
	})
}

// Close releases the browser if one was started. The json client is owned
// by the caller.
func (s *Selector) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.browser == nil {
		return nil
	}
	err := s.browser.Close()
	s.browser = nil
	return err
}
