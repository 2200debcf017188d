package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"StockScope/internal/model"
)

const (
	yahooChartURL   = "https://query1.finance.yahoo.com/v8/finance/chart/%s"
	yahooSummaryURL = "https://query2.finance.yahoo.com/v10/finance/quoteSummary/%s"
	yahooCookieURL  = "https://fc.yahoo.com"
	yahooCrumbURL   = "https://query1.finance.yahoo.com/v1/test/getcrumb"
	yahooUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	quoteModules     = "price,summaryDetail,defaultKeyStatistics,financialData"
	financialModules = "incomeStatementHistory"
)

// YahooProvider implements Provider using the Yahoo Finance public API.
type YahooProvider struct {
	Client    *http.Client
	SymbolMap map[string]string // maps user-facing aliases to Yahoo tickers
	limiter   *rate.Limiter
	log       zerolog.Logger

	// base URLs, overridable in tests
	chartURL   string
	summaryURL string
	cookieURL  string
	crumbURL   string

	mu    sync.Mutex
	crumb string
}

// NewYahooProvider creates a Yahoo provider with optional proxy support.
// requestsPerSecond <= 0 disables pacing.
func NewYahooProvider(proxyURL string, requestsPerSecond float64, log zerolog.Logger) *YahooProvider {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	jar, _ := cookiejar.New(nil)
	p := &YahooProvider{
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
			Jar:       jar,
		},
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
		},
		log:        log.With().Str("provider", "yahoo").Logger(),
		chartURL:   yahooChartURL,
		summaryURL: yahooSummaryURL,
		cookieURL:  yahooCookieURL,
		crumbURL:   yahooCrumbURL,
	}
	if requestsPerSecond > 0 {
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return p
}

func (p *YahooProvider) Name() string { return "yahoo" }

func (p *YahooProvider) yahooSymbol(ticker model.TickerSymbol) string {
	if mapped, ok := p.SymbolMap[strings.ToUpper(string(ticker))]; ok {
		return mapped
	}
	return string(ticker)
}

// yahooChart is the response structure from the chart API. Values are null on
// days without trades.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"chart"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// yahooRaw is Yahoo's {raw, fmt} number wrapper. An empty object means absent.
type yahooRaw struct {
	Raw *float64 `json:"raw"`
	Fmt string   `json:"fmt"`
}

func (r *yahooRaw) value() *float64 {
	if r == nil || r.Raw == nil {
		return nil
	}
	return model.Float(*r.Raw)
}

type yahooSummary struct {
	QuoteSummary struct {
		Result []yahooSummaryResult `json:"result"`
		Error  *yahooError          `json:"error"`
	} `json:"quoteSummary"`
}

type yahooSummaryResult struct {
	Price *struct {
		LongName           string    `json:"longName"`
		ShortName          string    `json:"shortName"`
		Currency           string    `json:"currency"`
		MarketCap          *yahooRaw `json:"marketCap"`
		RegularMarketPrice *yahooRaw `json:"regularMarketPrice"`
	} `json:"price"`
	SummaryDetail *struct {
		MarketCap        *yahooRaw `json:"marketCap"`
		TrailingPE       *yahooRaw `json:"trailingPE"`
		Beta             *yahooRaw `json:"beta"`
		DividendYield    *yahooRaw `json:"dividendYield"`
		FiftyTwoWeekLow  *yahooRaw `json:"fiftyTwoWeekLow"`
		FiftyTwoWeekHigh *yahooRaw `json:"fiftyTwoWeekHigh"`
	} `json:"summaryDetail"`
	DefaultKeyStatistics *struct {
		PegRatio    *yahooRaw `json:"pegRatio"`
		TrailingEps *yahooRaw `json:"trailingEps"`
		ForwardEps  *yahooRaw `json:"forwardEps"`
		Beta        *yahooRaw `json:"beta"`
	} `json:"defaultKeyStatistics"`
	FinancialData *struct {
		CurrentPrice   *yahooRaw `json:"currentPrice"`
		ProfitMargins  *yahooRaw `json:"profitMargins"`
		ReturnOnAssets *yahooRaw `json:"returnOnAssets"`
		ReturnOnEquity *yahooRaw `json:"returnOnEquity"`
		RevenueGrowth  *yahooRaw `json:"revenueGrowth"`
		EarningsGrowth *yahooRaw `json:"earningsGrowth"`
	} `json:"financialData"`
	IncomeStatementHistory *struct {
		Statements []struct {
			EndDate      *yahooRaw `json:"endDate"`
			TotalRevenue *yahooRaw `json:"totalRevenue"`
		} `json:"incomeStatementHistory"`
	} `json:"incomeStatementHistory"`
}

// QuoteInfo fetches the quote metadata used for snapshots.
func (p *YahooProvider) QuoteInfo(ctx context.Context, ticker model.TickerSymbol) (*model.RawQuoteInfo, error) {
	res, err := p.fetchSummary(ctx, ticker, quoteModules)
	if err != nil {
		return nil, err
	}
	info := &model.RawQuoteInfo{Symbol: string(ticker)}
	if pr := res.Price; pr != nil {
		info.Name = pr.LongName
		if info.Name == "" {
			info.Name = pr.ShortName
		}
		info.Currency = pr.Currency
		info.MarketCap = pr.MarketCap.value()
		info.CurrentPrice = pr.RegularMarketPrice.value()
	}
	if sd := res.SummaryDetail; sd != nil {
		if info.MarketCap == nil {
			info.MarketCap = sd.MarketCap.value()
		}
		info.TrailingPE = sd.TrailingPE.value()
		info.Beta = sd.Beta.value()
		info.DividendYield = sd.DividendYield.value()
		info.Week52Low = sd.FiftyTwoWeekLow.value()
		info.Week52High = sd.FiftyTwoWeekHigh.value()
	}
	if ks := res.DefaultKeyStatistics; ks != nil {
		info.PEGRatio = ks.PegRatio.value()
		info.TrailingEPS = ks.TrailingEps.value()
		info.ForwardEPS = ks.ForwardEps.value()
		if info.Beta == nil {
			info.Beta = ks.Beta.value()
		}
	}
	if fd := res.FinancialData; fd != nil {
		// financialData carries the live price; regularMarketPrice is the fallback.
		if v := fd.CurrentPrice.value(); v != nil {
			info.CurrentPrice = v
		}
		info.ProfitMargin = fd.ProfitMargins.value()
		info.ReturnOnAssets = fd.ReturnOnAssets.value()
		info.ReturnOnEquity = fd.ReturnOnEquity.value()
		info.RevenueGrowth = fd.RevenueGrowth.value()
		info.EarningsGrowth = fd.EarningsGrowth.value()
	}
	return info, nil
}

// Financials fetches annual income statements, most recent first.
func (p *YahooProvider) Financials(ctx context.Context, ticker model.TickerSymbol) (*model.FinancialStatementSeries, error) {
	res, err := p.fetchSummary(ctx, ticker, financialModules)
	if err != nil {
		return nil, err
	}
	series := &model.FinancialStatementSeries{}
	if res.IncomeStatementHistory == nil {
		return series, nil
	}
	for _, st := range res.IncomeStatementHistory.Statements {
		period := model.StatementPeriod{TotalRevenue: st.TotalRevenue.value()}
		if end := st.EndDate.value(); end != nil {
			period.EndDate = time.Unix(int64(*end), 0).UTC()
		}
		series.Periods = append(series.Periods, period)
	}
	sort.SliceStable(series.Periods, func(i, j int) bool {
		return series.Periods[i].EndDate.After(series.Periods[j].EndDate)
	})
	return series, nil
}

// PriceHistory fetches daily bars inside rng. An empty trading window yields
// an empty slice, not an error.
func (p *YahooProvider) PriceHistory(ctx context.Context, ticker model.TickerSymbol, rng model.DateRange) ([]model.PriceHistoryPoint, error) {
	q := url.Values{}
	q.Set("period1", fmt.Sprint(rng.Start.Unix()))
	// period2 is exclusive
	q.Set("period2", fmt.Sprint(rng.End.AddDate(0, 0, 1).Unix()))
	q.Set("interval", "1d")
	q.Set("includeAdjustedClose", "true")
	u := fmt.Sprintf(p.chartURL, url.PathEscape(p.yahooSymbol(ticker))) + "?" + q.Encode()

	body, err := p.get(ctx, u)
	if err != nil {
		return nil, errors.Wrapf(err, "yahoo chart %s", ticker)
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, errors.Wrapf(model.ErrUnavailable, "yahoo chart decode %s: %v", ticker, err)
	}
	if e := chart.Chart.Error; e != nil {
		return nil, classifyAPIError(e, ticker)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return []model.PriceHistoryPoint{}, nil
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}
	points := make([]model.PriceHistoryPoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		c := at(quote.Close, i)
		if c == nil {
			continue // holiday or halted session
		}
		pt := model.PriceHistoryPoint{
			Date:   time.Unix(ts, 0).UTC(),
			Close:  *c,
			Low:    model.FloatOr(at(quote.Low, i), *c),
			High:   model.FloatOr(at(quote.High, i), *c),
			Volume: model.FloatOr(at(quote.Volume, i), 0),
		}
		pt.AdjClose = model.FloatOr(at(adj, i), pt.Close)
		if !rng.Contains(pt.Date) {
			continue
		}
		points = append(points, pt)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}

func at(vals []*float64, i int) *float64 {
	if i >= len(vals) {
		return nil
	}
	return vals[i]
}

func (p *YahooProvider) fetchSummary(ctx context.Context, ticker model.TickerSymbol, modules string) (*yahooSummaryResult, error) {
	crumb, err := p.ensureCrumb(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "yahoo crumb %s", ticker)
	}
	q := url.Values{}
	q.Set("modules", modules)
	if crumb != "" {
		q.Set("crumb", crumb)
	}
	u := fmt.Sprintf(p.summaryURL, url.PathEscape(p.yahooSymbol(ticker))) + "?" + q.Encode()

	body, err := p.get(ctx, u)
	if err != nil {
		if errors.Is(err, errUnauthorized) {
			p.resetCrumb()
			return nil, errors.Wrapf(model.ErrUnavailable, "yahoo summary %s: crumb rejected", ticker)
		}
		return nil, errors.Wrapf(err, "yahoo summary %s", ticker)
	}
	var summary yahooSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		return nil, errors.Wrapf(model.ErrUnavailable, "yahoo summary decode %s: %v", ticker, err)
	}
	if e := summary.QuoteSummary.Error; e != nil {
		return nil, classifyAPIError(e, ticker)
	}
	if len(summary.QuoteSummary.Result) == 0 {
		return nil, errors.Wrapf(model.ErrNotFound, "yahoo summary %s: no data returned", ticker)
	}
	return &summary.QuoteSummary.Result[0], nil
}

var errUnauthorized = errors.New("unauthorized")

// get performs one paced GET and classifies the status code.
func (p *YahooProvider) get(ctx context.Context, u string) ([]byte, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrapf(model.ErrUnavailable, "rate limiter: %v", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", yahooUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(model.ErrUnavailable, "fetch: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, errors.Wrapf(model.ErrUnavailable, "read body: %v", err)
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		// 404 bodies still carry the API error, which is the more precise answer
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errUnauthorized
	default:
		return nil, errors.Wrapf(model.ErrUnavailable, "status %d, body: %s", resp.StatusCode, truncate(body, 200))
	}
}

func (p *YahooProvider) ensureCrumb(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.crumb != "" {
		return p.crumb, nil
	}

	// The cookie endpoint answers 404 but sets the session cookie.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cookieURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", yahooUserAgent)
	if resp, err := p.Client.Do(req); err == nil {
		resp.Body.Close()
	} else {
		return "", errors.Wrapf(model.ErrUnavailable, "cookie: %v", err)
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, p.crumbURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", yahooUserAgent)
	resp, err := p.Client.Do(req)
	if err != nil {
		return "", errors.Wrapf(model.ErrUnavailable, "crumb: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK {
		return "", errors.Wrapf(model.ErrUnavailable, "crumb: status %d", resp.StatusCode)
	}
	p.crumb = strings.TrimSpace(string(body))
	p.log.Debug().Msg("yahoo crumb acquired")
	return p.crumb, nil
}

func (p *YahooProvider) resetCrumb() {
	p.mu.Lock()
	p.crumb = ""
	p.mu.Unlock()
}

func classifyAPIError(e *yahooError, ticker model.TickerSymbol) error {
	if strings.EqualFold(e.Code, "Not Found") || strings.Contains(strings.ToLower(e.Description), "no data found") {
		return errors.Wrapf(model.ErrNotFound, "yahoo %s: %s", ticker, e.Description)
	}
	return errors.Wrapf(model.ErrUnavailable, "yahoo %s: %s: %s", ticker, e.Code, e.Description)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
