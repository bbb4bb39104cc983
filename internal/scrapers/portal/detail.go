package portal

import (
	"context"
	"errors"
	"strings"
	"tenderscrape/internal/scrapeerr"
	"tenderscrape/internal/tender"

	"go.opentelemetry.io/otel/attribute"
)

// FetchDetail loads the detail view of a record and returns it rendered.
func (c *Client) FetchDetail(ctx context.Context, record tender.Record) (tender.DetailPage, error) {
	ctx, span := tracer.Start(ctx, "FetchDetail")
	defer span.End()
	span.SetAttributes(attribute.String("tender_id", record.TenderID))

	target := record.DetailURL
	if target == "" {
		var err error
		target, err = c.DetailURL(record.Nav)
		if err != nil {
			return tender.DetailPage{}, err
		}
	}

	page, err := withSession(ctx, c, report_client_fetch_detail, func(ctx context.Context) (tender.DetailPage, error) {
		res, err := c.Http.R().
			SetContext(ctx).
			SetHeader("accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
			SetHeader("referer", c.origin()+LandingPath).
			Get(target)
		if err != nil {
			return tender.DetailPage{}, scrapeerr.Network(report_client_fetch_detail, err)
		}
		if res.IsError() {
			return tender.DetailPage{}, scrapeerr.FromStatus(report_client_fetch_detail, res.StatusCode(), res.String())
		}
		body := res.String()
		if strings.TrimSpace(body) == "" {
			return tender.DetailPage{}, scrapeerr.Parse(report_client_fetch_detail, errors.New("empty detail page"))
		}

		final := target
		if res.RawResponse != nil && res.RawResponse.Request != nil {
			final = res.RawResponse.Request.URL.String()
		}
		return tender.DetailPage{URL: final, HTML: body}, nil
	})
	if err != nil {
		c.tel.ReportBroken(report_client_fetch_detail, err, record.TenderID)
		return tender.DetailPage{}, err
	}
	return page, nil
}
