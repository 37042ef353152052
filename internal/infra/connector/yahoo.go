package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vizpilot/internal/domain"
	"vizpilot/internal/usecase"
)

const defaultYahooBaseURL = "https://query1.finance.yahoo.com"

// Yahoo reads the chart API. Adjusted close is exposed as Adj_Close.
type Yahoo struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
}

func NewYahoo(baseURL string, client *http.Client) *Yahoo {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultYahooBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Yahoo{baseURL: strings.TrimRight(baseURL, "/"), client: client, now: time.Now}
}

func (y *Yahoo) Name() string { return "yahoo" }

type chartEnvelope struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

func (y *Yahoo) Fetch(ctx context.Context, req usecase.FetchRequest) (usecase.FetchResult, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Identifier))
	src := domain.SourceRecord{Connector: y.Name(), Identifier: symbol, FetchedAt: y.now().UTC(), Status: "error"}
	w, err := resolveWindow(req.Range, y.now())
	if err != nil {
		return usecase.FetchResult{Source: src}, fmt.Errorf("%w: %v", domain.ErrConnector, err)
	}
	interval := req.Interval
	if interval == "" {
		interval = "1d"
	}

	q := url.Values{}
	q.Set("period1", fmt.Sprint(w.start.Unix()))
	q.Set("period2", fmt.Sprint(w.end.Add(24*time.Hour).Unix()))
	q.Set("interval", interval)
	q.Set("events", "history")
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.baseURL, url.PathEscape(symbol), q.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return usecase.FetchResult{Source: src}, err
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "vizpilot/1.0")

	resp, err := y.client.Do(httpReq)
	if err != nil {
		return usecase.FetchResult{Source: src}, fmt.Errorf("%w: %v", domain.ErrConnector, err)
	}
	defer resp.Body.Close()
	src.HTTPStatus = resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return usecase.FetchResult{Source: src}, fmt.Errorf("%w: read body: %v", domain.ErrConnector, err)
	}
	var env chartEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode >= 300 {
			return usecase.FetchResult{Source: src}, fmt.Errorf("%w: yahoo status %d", statusErr(resp.StatusCode), resp.StatusCode)
		}
		return usecase.FetchResult{Source: src}, fmt.Errorf("%w: decode chart: %v", domain.ErrConnector, err)
	}
	if env.Chart.Error != nil {
		return usecase.FetchResult{Source: src}, fmt.Errorf("%w: %s: %s", statusErr(resp.StatusCode), env.Chart.Error.Code, env.Chart.Error.Description)
	}
	if resp.StatusCode >= 300 {
		return usecase.FetchResult{Source: src}, fmt.Errorf("%w: yahoo status %d", statusErr(resp.StatusCode), resp.StatusCode)
	}
	if len(env.Chart.Result) == 0 {
		return usecase.FetchResult{Source: src}, fmt.Errorf("%w: yahoo returned no result for %s", domain.ErrNoData, symbol)
	}

	table := chartTable(env.Chart.Result[0])
	table.SortByDate()
	src.Status = "ok"
	src.RowCount = table.Len()
	return usecase.FetchResult{Table: table, Source: src}, nil
}

func statusErr(code int) error {
	if code == http.StatusNotFound {
		return domain.ErrNoData
	}
	return domain.ErrConnector
}

func chartTable(r chartResult) domain.Table {
	table := domain.NewTable([]string{"Open", "High", "Low", "Close", "Adj_Close", "Volume"})
	if len(r.Indicators.Quote) == 0 {
		return table
	}
	quote := r.Indicators.Quote[0]
	var adj []*float64
	if len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}
	for i, ts := range r.Timestamp {
		row := domain.Row{domain.DateColumn: time.Unix(ts, 0).UTC().Truncate(24 * time.Hour)}
		row["Open"] = cell(quote.Open, i)
		row["High"] = cell(quote.High, i)
		row["Low"] = cell(quote.Low, i)
		row["Close"] = cell(quote.Close, i)
		row["Adj_Close"] = cell(adj, i)
		row["Volume"] = cell(quote.Volume, i)
		table.Rows = append(table.Rows, row)
	}
	return table
}

func cell(values []*float64, i int) any {
	if i >= len(values) || values[i] == nil {
		return nil
	}
	return round(*values[i], 4)
}
