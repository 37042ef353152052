package intent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"vizpilot/internal/domain"
	"vizpilot/internal/infra/llm"
	"vizpilot/internal/usecase"

	"github.com/stretchr/testify/require"
)

func TestLLMParser_FencedResponse(t *testing.T) {
	client := llm.NewOffline("```json\n{\"goal\":\"Plot TSLA\",\"chart_type\":\"scatter\",\"metrics\":[\"Adj Close\"],\"symbol\":\"tsla\",\"dataset_key\":\"\",\"time_range\":{\"start\":null,\"end\":null},\"transforms\":[{\"op\":\"moving_average\",\"field\":\"Adj Close\",\"window\":20}],\"clarify\":null}\n```")
	p := &LLMParser{Client: client, Model: "m"}

	res, err := p.Parse(context.Background(), usecase.IntentRequest{Prompt: "tsla since 2022-01-03"})
	require.NoError(t, err)
	require.Equal(t, []string{"TSLA"}, res.Task.Symbols)
	require.Equal(t, domain.ChartPoint, res.Task.ChartType)
	require.Equal(t, []string{"Adj_Close"}, res.Task.Metrics)
	require.Equal(t, "Adj_Close", res.Task.Transforms[0].Field)
	require.Empty(t, res.Task.DatasetKey)
	require.Equal(t, "2022-01-03", res.Task.TimeRange.Start)
	require.NotEmpty(t, res.Call.ContentHash)
	require.Equal(t, "m", res.Call.Model)
}

func TestLLMParser_ClarifyObject(t *testing.T) {
	client := llm.NewOffline(`Sure! {"goal":"?","chart_type":"auto","metrics":[],"clarify":{"question":"Which ticker?"}} hope this helps`)
	res, err := (&LLMParser{Client: client}).Parse(context.Background(), usecase.IntentRequest{Prompt: "plot it"})
	require.NoError(t, err)
	require.Equal(t, "Which ticker?", res.Task.Clarify)
}

func TestLLMParser_MissingKey(t *testing.T) {
	client := llm.NewOffline(`{"goal":"x","metrics":["Close"]}`)
	_, err := (&LLMParser{Client: client}).Parse(context.Background(), usecase.IntentRequest{Prompt: "x"})
	require.True(t, errors.Is(err, domain.ErrIntentParse))
	require.Contains(t, err.Error(), "chart_type")
}

func TestLLMParser_PriorErrorInPrompt(t *testing.T) {
	client := llm.NewOffline(`{"goal":"g","chart_type":"line","metrics":["Close"],"symbols":["AAPL"]}`)
	_, err := (&LLMParser{Client: client}).Parse(context.Background(), usecase.IntentRequest{Prompt: "aapl", PriorError: "missing key"})
	require.NoError(t, err)
	calls := client.Calls()
	require.Len(t, calls, 1)
	require.True(t, strings.Contains(calls[0].User, "missing key"))
	require.True(t, calls[0].JSON)
}

func TestFirstObject(t *testing.T) {
	obj, err := firstObject(`noise {"a":"}{","b":{"c":1}} tail {"d":2}`)
	require.NoError(t, err)
	require.Equal(t, `{"a":"}{","b":{"c":1}}`, string(obj))

	_, err = firstObject("no json here")
	require.ErrorIs(t, err, domain.ErrIntentParse)
	_, err = firstObject(`{"a":1`)
	require.ErrorIs(t, err, domain.ErrIntentParse)
}
