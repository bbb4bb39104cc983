// Package portal talks to the tender portal's DataTables json endpoint
// directly, reusing the session cookie handed out by the landing page.
package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"sync/atomic"
	"tenderscrape/internal/assert"
	"tenderscrape/internal/components/chrono"
	"tenderscrape/internal/components/telemetry"
	"tenderscrape/internal/retry"
	"tenderscrape/internal/scrapeerr"
	"tenderscrape/lib/restyutil"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
)

const (
	report_client_bootstrap    = "client.bootstrap"
	report_client_fetch_page   = "client.fetch-page"
	report_client_fetch_detail = "client.fetch-detail"
	report_client_parse_row    = "client.parse-row"
)

const (
	LandingPath = "/TenderDetailsHome.html"
	ListingPath = "/TenderDetailsHomeJson.html"
	DetailPath  = "/ViewDetailTenderDetail.html"

	// MaxPageSize is the largest window the listing endpoint will serve.
	MaxPageSize = 100
)

const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

var tracer = otel.Tracer("tenderscrape/internal/scrapers/portal")

// DefaultDetailParams names the query parameters the navigation tokens of a
// row are sent as when opening its detail view.
var DefaultDetailParams = []string{"tenderNo", "mode", "refNo"}

type Options struct {
	BaseUrl string
	Timeout time.Duration
	Retry   retry.Policy
	// CloudflareBypass wraps the transport with browser like tls fingerprints.
	CloudflareBypass bool
	// SessionCookie, when set, is the cookie that must exist after bootstrapping.
	// Otherwise any cookie for the portal counts as a session.
	SessionCookie string
	DetailParams  []string
	Diagnostics   restyutil.Output
	Clock         chrono.API
}

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	retry         retry.Policy
	sessionCookie string
	detailParams  []string
	diagnostics   restyutil.Output
	time          chrono.API

	echo         atomic.Int64
	mutex        sync.Mutex
	bootstrapped bool

	tel telemetry.API
}

func NewClient(opts Options, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.BaseUrl)

	tel = telemetry.NewScopedAPI("portal", tel)

	parsedBaseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	err = opts.Retry.Validate()
	if err != nil {
		return nil, err
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if len(opts.DetailParams) == 0 {
		opts.DetailParams = DefaultDetailParams
	}
	if opts.Diagnostics == nil {
		opts.Diagnostics = restyutil.Discard{}
	}
	if opts.Clock == nil {
		clock, err := chrono.NewStandardImpl("")
		if err != nil {
			return nil, err
		}
		opts.Clock = clock
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(parsedBaseUrl.String())
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	httpClient.SetHeader("user-agent", UserAgent)
	httpClient.SetHeader("accept-language", "en-US,en;q=0.9")
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(parsedBaseUrl.Hostname()))
	httpClient.SetTimeout(opts.Timeout)

	telemetry.InstrumentResty(httpClient, tel)

	c := &Client{
		BaseUrl:       parsedBaseUrl,
		Http:          httpClient,
		retry:         opts.Retry,
		sessionCookie: opts.SessionCookie,
		detailParams:  opts.DetailParams,
		diagnostics:   opts.Diagnostics,
		time:          opts.Clock,
		tel:           tel,
	}
	return c, nil
}

func (c *Client) hasSession() bool {
	for _, cookie := range c.Http.GetClient().Jar.Cookies(c.BaseUrl) {
		if c.sessionCookie == "" || cookie.Name == c.sessionCookie {
			return true
		}
	}
	return false
}

var errNoSession = errors.New("landing page did not set a session cookie")

// Bootstrap loads the landing page so the portal hands out a session cookie.
func (c *Client) Bootstrap(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Bootstrap")
	defer span.End()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	err := c.retry.Do(ctx, report_client_bootstrap, func(ctx context.Context) error {
		res, err := c.Http.R().
			SetContext(ctx).
			SetHeader("accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
			Get(LandingPath)
		if err != nil {
			return scrapeerr.Network(report_client_bootstrap, err)
		}
		if res.IsError() {
			return scrapeerr.FromStatus(report_client_bootstrap, res.StatusCode(), res.String())
		}
		return nil
	})
	if err != nil {
		c.tel.ReportBroken(report_client_bootstrap, err)
		return err
	}
	if !c.hasSession() {
		err = scrapeerr.Auth(report_client_bootstrap, errNoSession)
		c.tel.ReportBroken(report_client_bootstrap, err)
		return err
	}

	c.bootstrapped = true
	c.tel.ReportDebug("session established")
	return nil
}

func (c *Client) ensureSession(ctx context.Context) error {
	c.mutex.Lock()
	bootstrapped := c.bootstrapped
	c.mutex.Unlock()
	if bootstrapped {
		return nil
	}
	return c.Bootstrap(ctx)
}

// withSession runs fn and, if the portal rejected the session, bootstraps a
// new one and runs fn a second time.
func withSession[T any](ctx context.Context, c *Client, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	err := c.ensureSession(ctx)
	if err != nil {
		return zero, err
	}

	out, err := retry.Value(ctx, c.retry, op, fn)
	if scrapeerr.Classify(err) != scrapeerr.KindAuth {
		return out, err
	}

	c.tel.ReportWarning(op, fmt.Errorf("session rejected, bootstrapping again: %w", err))
	err = c.Bootstrap(ctx)
	if err != nil {
		return zero, err
	}
	return retry.Value(ctx, c.retry, op, fn)
}

// Close satisfies the shared client interface, the http client holds no
// resources that need releasing.
func (c *Client) Close() error {
	return nil
}
