package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/pkg/errors"

	"StockScope/internal/model"
)

// RESTProvider implements Provider against a self-hosted market data service.
type RESTProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRESTProvider creates a new provider with optional proxy support.
func NewRESTProvider(baseURL, apiKey, proxyURL string) *RESTProvider {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &RESTProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (f *RESTProvider) Name() string { return "rest" }

// restBar is the expected JSON shape of a daily bar.
type restBar struct {
	Timestamp int64    `json:"timestamp"`
	High      float64  `json:"high"`
	Low       float64  `json:"low"`
	Close     float64  `json:"close"`
	AdjClose  *float64 `json:"adj_close"`
	Volume    float64  `json:"volume"`
}

// restQuoteInfo mirrors model.RawQuoteInfo; null or missing keys stay nil.
type restQuoteInfo struct {
	Symbol         string   `json:"symbol"`
	Name           string   `json:"name"`
	Currency       string   `json:"currency"`
	MarketCap      *float64 `json:"market_cap"`
	TrailingEPS    *float64 `json:"trailing_eps"`
	ForwardEPS     *float64 `json:"forward_eps"`
	TrailingPE     *float64 `json:"trailing_pe"`
	PEGRatio       *float64 `json:"peg_ratio"`
	Beta           *float64 `json:"beta"`
	DividendYield  *float64 `json:"dividend_yield"`
	ProfitMargin   *float64 `json:"profit_margin"`
	ReturnOnAssets *float64 `json:"return_on_assets"`
	ReturnOnEquity *float64 `json:"return_on_equity"`
	Week52Low      *float64 `json:"week52_low"`
	Week52High     *float64 `json:"week52_high"`
	CurrentPrice   *float64 `json:"current_price"`
	RevenueGrowth  *float64 `json:"revenue_growth"`
	EarningsGrowth *float64 `json:"earnings_growth"`
}

type restFinancials struct {
	Periods []struct {
		EndDate      string   `json:"end_date"`
		TotalRevenue *float64 `json:"total_revenue"`
	} `json:"periods"`
}

func (f *RESTProvider) QuoteInfo(ctx context.Context, ticker model.TickerSymbol) (*model.RawQuoteInfo, error) {
	endpoint := fmt.Sprintf("%s/api/v1/quote-info?symbol=%s", f.BaseURL, url.QueryEscape(string(ticker)))
	var q restQuoteInfo
	if err := f.getJSON(ctx, endpoint, &q); err != nil {
		return nil, errors.Wrapf(err, "quote info %s", ticker)
	}
	info := model.RawQuoteInfo(q)
	if info.Symbol == "" {
		info.Symbol = string(ticker)
	}
	return &info, nil
}

func (f *RESTProvider) Financials(ctx context.Context, ticker model.TickerSymbol) (*model.FinancialStatementSeries, error) {
	endpoint := fmt.Sprintf("%s/api/v1/financials?symbol=%s", f.BaseURL, url.QueryEscape(string(ticker)))
	var fin restFinancials
	if err := f.getJSON(ctx, endpoint, &fin); err != nil {
		return nil, errors.Wrapf(err, "financials %s", ticker)
	}
	series := &model.FinancialStatementSeries{}
	for _, p := range fin.Periods {
		period := model.StatementPeriod{TotalRevenue: p.TotalRevenue}
		if d, err := time.Parse("2006-01-02", p.EndDate); err == nil {
			period.EndDate = d
		}
		series.Periods = append(series.Periods, period)
	}
	sort.SliceStable(series.Periods, func(i, j int) bool {
		return series.Periods[i].EndDate.After(series.Periods[j].EndDate)
	})
	return series, nil
}

func (f *RESTProvider) PriceHistory(ctx context.Context, ticker model.TickerSymbol, rng model.DateRange) ([]model.PriceHistoryPoint, error) {
	endpoint := fmt.Sprintf("%s/api/v1/bars/daily?symbol=%s&start=%s&end=%s", f.BaseURL,
		url.QueryEscape(string(ticker)), rng.Start.Format("2006-01-02"), rng.End.Format("2006-01-02"))
	var bars []restBar
	if err := f.getJSON(ctx, endpoint, &bars); err != nil {
		return nil, errors.Wrapf(err, "bars %s", ticker)
	}
	points := make([]model.PriceHistoryPoint, 0, len(bars))
	for _, b := range bars {
		pt := model.PriceHistoryPoint{
			Date:     time.Unix(b.Timestamp, 0).UTC(),
			Close:    b.Close,
			AdjClose: model.FloatOr(b.AdjClose, b.Close),
			Low:      b.Low,
			High:     b.High,
			Volume:   b.Volume,
		}
		if rng.Contains(pt.Date) {
			points = append(points, pt)
		}
	}
	// Ensure chronological order
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}

func (f *RESTProvider) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return errors.Wrapf(model.ErrUnavailable, "fetch: %v", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.Wrap(model.ErrNotFound, "status 404")
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.Wrapf(model.ErrUnavailable, "status %d, body: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(model.ErrUnavailable, "decode: %v", err)
	}
	return nil
}
