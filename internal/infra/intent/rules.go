package intent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"vizpilot/internal/domain"
	"vizpilot/internal/infra/crypto"
	"vizpilot/internal/usecase"
)

var (
	sinceDate  = regexp.MustCompile(`(?i)\b(?:since|from|after)\s+(\d{4}-\d{2}-\d{2})\b`)
	compareTwo = regexp.MustCompile(`(?i)\bcompare\s+([a-z]{1,5})\s+(?:and|vs\.?|versus|with)\s+([a-z]{1,5})\b`)
	tickerWord = regexp.MustCompile(`\b([A-Z]{1,5})\b`)
	macroKeys  = []string{"CPIAUCSL", "UNRATE", "GDP", "FEDFUNDS", "DGS10"}

	knownTickers = []string{"tsla", "aapl", "msft", "goog", "amzn", "nvda"}
)

const genericClarify = "Could you clarify what metric you want plotted?"

// RuleParser maps prompts onto tasks with fixed keyword rules. It needs no
// model and always produces the same task for the same prompt.
type RuleParser struct{}

func (RuleParser) Parse(_ context.Context, req usecase.IntentRequest) (usecase.IntentResult, error) {
	hash, err := crypto.ContentHash("rules", req.Prompt)
	if err != nil {
		return usecase.IntentResult{}, err
	}
	task := parseRules(req.Prompt)
	return usecase.IntentResult{Task: task, Call: usecase.CallMeta{Model: "rules", ContentHash: hash}}, nil
}

func parseRules(prompt string) domain.Task {
	p := strings.ToLower(strings.TrimSpace(prompt))
	since := extractSince(prompt)
	line := func(goal string, metrics ...string) domain.Task {
		return domain.Task{Goal: goal, ChartType: domain.ChartLine, Metrics: metrics, TimeRange: domain.TimeRange{Start: since}}
	}

	switch {
	case p == "":
		return domain.Task{ChartType: domain.ChartAuto, Clarify: genericClarify}
	case strings.Contains(p, "growth of apple") || strings.HasPrefix(p, "show growth"):
		return domain.Task{
			Goal:      "Clarify growth type for Apple",
			ChartType: domain.ChartAuto,
			Clarify:   "Do you mean stock price growth (close) or revenue growth?",
		}
	case strings.Contains(p, "tsla") && strings.Contains(p, "moving average"):
		t := line("Plot TSLA daily close with 30d MA", "Close")
		t.Symbols = []string{"TSLA"}
		if t.TimeRange.Start == "" {
			t.TimeRange.Start = "2024-01-01"
		}
		t.Transforms = []domain.TransformRequest{{Op: domain.OpMovingAverage, Field: "Close", Window: 30}}
		return t
	case strings.Contains(p, "aapl") && (strings.Contains(p, "adjusted close") || strings.Contains(p, "adj close")):
		t := line("Plot AAPL adjusted close", "Adj_Close")
		t.Symbols = []string{"AAPL"}
		return t
	}

	if m := compareTwo.FindStringSubmatch(prompt); m != nil && isTicker(m[1]) && isTicker(m[2]) {
		a, b := strings.ToUpper(m[1]), strings.ToUpper(m[2])
		t := line(fmt.Sprintf("Compare %s and %s close prices", a, b), "Close")
		t.Symbols = []string{a, b}
		t.Transforms = []domain.TransformRequest{{Op: domain.OpRebasedIndex, Field: "Close", Base: 100}}
		return t
	}
	for _, key := range macroKeys {
		if strings.Contains(p, strings.ToLower(key)) {
			t := line(fmt.Sprintf("Plot US %s monthly", key), "value")
			t.DatasetKey = key
			if t.TimeRange.Start == "" && key == "CPIAUCSL" {
				t.TimeRange.Start = "2010-01-01"
			}
			return t
		}
	}
	if strings.Contains(p, "volume") {
		if sym := firstTicker(prompt); sym != "" {
			return domain.Task{
				Goal:      fmt.Sprintf("Plot %s volume", sym),
				ChartType: domain.ChartBar,
				Symbols:   []string{sym},
				Metrics:   []string{"Volume"},
				TimeRange: domain.TimeRange{Start: since},
			}
		}
	}
	if sym := firstTicker(prompt); sym != "" {
		t := line(fmt.Sprintf("Plot %s close price", sym), "Close")
		t.Symbols = []string{sym}
		return t
	}
	return domain.Task{Goal: "Unknown", ChartType: domain.ChartAuto, Clarify: genericClarify}
}

// firstTicker finds a ticker-like word: an all-caps word of one to five
// letters, or a lowercase known ticker such as "tsla".
func firstTicker(prompt string) string {
	if m := tickerWord.FindStringSubmatch(prompt); m != nil && m[1] != "I" && m[1] != "A" {
		return m[1]
	}
	lower := strings.ToLower(prompt)
	for _, known := range knownTickers {
		if strings.Contains(lower, known) {
			return strings.ToUpper(known)
		}
	}
	return ""
}

// isTicker accepts an all-caps word or a known ticker in any case, so plain
// words such as "sales" are not read as symbols.
func isTicker(word string) bool {
	if word == strings.ToUpper(word) {
		return true
	}
	lower := strings.ToLower(word)
	for _, known := range knownTickers {
		if lower == known {
			return true
		}
	}
	return false
}

func extractSince(prompt string) string {
	if m := sinceDate.FindStringSubmatch(prompt); m != nil {
		return m[1]
	}
	return ""
}
