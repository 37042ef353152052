package connector

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"vizpilot/internal/domain"
	"vizpilot/internal/usecase"
)

var tickerPattern = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

// macroBase is the starting level of each synthetic macro series.
var macroBase = map[string]float64{
	"CPIAUCSL": 217.0,
	"UNRATE":   9.8,
	"GDP":      14_900,
	"FEDFUNDS": 0.2,
	"DGS10":    3.7,
}

// Fixture serves deterministic synthetic data. Stock tickers get daily OHLCV
// bars on weekdays; macro dataset keys get a monthly value series.
type Fixture struct {
	Now func() time.Time
}

func NewFixture() *Fixture { return &Fixture{} }

func (f *Fixture) Name() string { return "fixture" }

func (f *Fixture) Fetch(ctx context.Context, req usecase.FetchRequest) (usecase.FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return usecase.FetchResult{}, err
	}
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	id := strings.ToUpper(strings.TrimSpace(req.Identifier))
	w, err := resolveWindow(req.Range, now())
	if err != nil {
		return usecase.FetchResult{}, fmt.Errorf("%w: %v", domain.ErrConnector, err)
	}

	var table domain.Table
	if base, ok := macroBase[id]; ok {
		table = macroSeries(id, base, w)
	} else if tickerPattern.MatchString(id) {
		table = dailyBars(id, w)
	} else {
		return usecase.FetchResult{}, fmt.Errorf("%w: unknown identifier %q", domain.ErrNoData, req.Identifier)
	}

	return usecase.FetchResult{
		Table: table,
		Source: domain.SourceRecord{
			Connector:  f.Name(),
			Identifier: id,
			FetchedAt:  now().UTC(),
			Status:     "ok",
			RowCount:   table.Len(),
		},
	}, nil
}

func seedFor(id string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return int64(h.Sum64() & math.MaxInt64)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// dailyBars walks a price path from a fixed epoch so that any window over the
// same symbol sees the same prices.
func dailyBars(symbol string, w window) domain.Table {
	rng := rand.New(rand.NewSource(seedFor(symbol)))
	price := 20 + rng.Float64()*380
	drift := (rng.Float64() - 0.45) * 0.002

	table := domain.NewTable([]string{"Open", "High", "Low", "Close", "Adj_Close", "Volume"})
	epoch := time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC)
	for d := epoch; !d.After(w.end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		open := price
		price = math.Max(1, price*(1+drift+rng.NormFloat64()*0.018))
		high := math.Max(open, price) * (1 + rng.Float64()*0.01)
		low := math.Min(open, price) * (1 - rng.Float64()*0.01)
		volume := math.Round(1e6 + rng.Float64()*9e6)
		if d.Before(w.start) {
			continue
		}
		table.Rows = append(table.Rows, domain.Row{
			domain.DateColumn: d,
			"Open":            round(open, 4),
			"High":            round(high, 4),
			"Low":             round(low, 4),
			"Close":           round(price, 4),
			"Adj_Close":       round(price*0.995, 4),
			"Volume":          volume,
		})
	}
	return table
}

func macroSeries(key string, base float64, w window) domain.Table {
	rng := rand.New(rand.NewSource(seedFor(key)))
	table := domain.NewTable([]string{"value"})
	value := base
	for d := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC); !d.After(w.end); d = d.AddDate(0, 1, 0) {
		value = math.Max(0, value*(1+0.002+rng.NormFloat64()*0.004))
		if d.Before(w.start) {
			continue
		}
		table.Rows = append(table.Rows, domain.Row{domain.DateColumn: d, "value": round(value, 3)})
	}
	return table
}
