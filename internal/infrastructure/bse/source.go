package bse

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pravinheroku/bse-automation/internal/core/domain"
	"github.com/pravinheroku/bse-automation/internal/core/ports"
	"github.com/pravinheroku/bse-automation/internal/infrastructure/resilience"
)

const (
	listTimeout = 60 * time.Second
	dateLayout  = "20060102"
)

// Source lists announcements for a date window. The exchange paginates
// the feed and reports the total row count on the first page; later
// pages are fetched at a paced rate so a wide window does not hammer
// the endpoint.
type Source struct {
	client   *Client
	policy   resilience.Policy
	limiter  *rate.Limiter
	distress ports.DistressSignal
}

func NewSource(client *Client, policy resilience.Policy, distress ports.DistressSignal) *Source {
	return &Source{
		client:   client,
		policy:   policy,
		limiter:  rate.NewLimiter(rate.Limit(1), 1),
		distress: distress,
	}
}

type listResponse struct {
	Table  []listRow   `json:"Table"`
	Table1 []listTotal `json:"Table1"`
}

type listRow struct {
	NewsID    string      `json:"NEWSID"`
	ScripCode json.Number `json:"SCRIP_CD"`
	Company   string      `json:"SLONGNAME"`
	DissemDT  string      `json:"DissemDT"`
}

type listTotal struct {
	RowCount int `json:"ROWCNT"`
}

// List fetches every page for [from, to]. A failed page after the
// first stops pagination but keeps the rows accumulated so far; only a
// failed first page aborts the window.
func (s *Source) List(ctx context.Context, from, to time.Time) ([]domain.Candidate, error) {
	first, err := s.fetchPage(ctx, from, to, 1)
	if err != nil {
		return nil, err
	}

	rows := first.Table
	perPage := len(rows)
	total := 0
	if len(first.Table1) > 0 {
		total = first.Table1[0].RowCount
	}

	if perPage > 0 && total > perPage {
		pages := (total + perPage - 1) / perPage
		for page := 2; page <= pages; page++ {
			if err := s.limiter.Wait(ctx); err != nil {
				break
			}
			next, err := s.fetchPage(ctx, from, to, page)
			if err != nil {
				slog.Warn("announcement_page_failed",
					"page", page,
					"pages", pages,
					"accumulated", len(rows),
					"error", err,
				)
				break
			}
			if len(next.Table) == 0 {
				break
			}
			rows = append(rows, next.Table...)
		}
	}

	candidates := make([]domain.Candidate, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row.NewsID) == "" {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			ID:         row.NewsID,
			ScripCode:  row.ScripCode.String(),
			Company:    strings.TrimSpace(row.Company),
			OccurredAt: parseDissemination(row.DissemDT),
		})
	}
	return candidates, nil
}

func (s *Source) fetchPage(ctx context.Context, from, to time.Time, page int) (*listResponse, error) {
	params := url.Values{}
	params.Set("pageno", strconv.Itoa(page))
	params.Set("strCat", s.client.category)
	params.Set("subcategory", s.client.subcategory)
	params.Set("strPrevDate", from.Format(dateLayout))
	params.Set("strToDate", to.Format(dateLayout))
	params.Set("strScrip", "")
	params.Set("strSearch", "P")
	params.Set("strType", "C")

	var out listResponse
	err := s.client.executor.Execute(ctx, "bse.list_announcements", s.policy, func(ctx context.Context) error {
		body, err := s.client.getBody(ctx, s.client.listURL, params, listTimeout, "list announcements")
		if err != nil {
			return err
		}
		if err := decodeJSON(body, &out); err != nil {
			// A non-JSON body from this endpoint is the rate-limit tell.
			raiseDistress(s.distress)
			return domain.WrapError(domain.ErrUpstreamDistress, "decode announcement page", err)
		}
		return nil
	}, classifyExchangeError)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// parseDissemination handles the exchange's two timestamp shapes and
// degrades to now() so an odd row still lands in the current window.
func parseDissemination(raw string) time.Time {
	for _, layout := range []string{"2006-01-02T15:04:05.00", "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	slog.Warn("unparseable_dissemination_timestamp", "value", raw)
	return time.Now().UTC()
}
