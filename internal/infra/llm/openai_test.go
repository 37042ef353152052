package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAI_Complete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","model":"m-served","choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	client, err := NewOpenAI("k", "m-default", srv.URL+"/")
	require.NoError(t, err)
	resp, err := client.Complete(context.Background(), Request{System: "sys", User: "hi", Model: "m-override", JSON: true})
	require.NoError(t, err)

	require.Equal(t, `{"ok":true}`, resp.Text)
	require.Equal(t, "chatcmpl-1", resp.ResponseID)
	require.Equal(t, "m-served", resp.Model)
	require.Equal(t, "m-override", got.Model)
	require.Len(t, got.Messages, 2)
	require.Equal(t, "json_object", got.ResponseFormat["type"])
}

func TestOpenAI_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewOpenAI("k", "", srv.URL)
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), Request{User: "hi"})
	require.ErrorContains(t, err, "429")
}

func TestNew_Selection(t *testing.T) {
	c, err := New(context.Background(), Config{Provider: "offline"})
	require.NoError(t, err)
	require.Nil(t, c)

	_, err = New(context.Background(), Config{Provider: "openai"})
	require.Error(t, err)

	_, err = New(context.Background(), Config{Provider: "claude-on-a-toaster"})
	require.Error(t, err)
}

func TestOffline_Replays(t *testing.T) {
	o := NewOffline("a", "b")
	ctx := context.Background()
	for _, want := range []string{"a", "b", "b"} {
		resp, err := o.Complete(ctx, Request{User: "x"})
		require.NoError(t, err)
		require.Equal(t, want, resp.Text)
	}
	require.Len(t, o.Calls(), 3)
}

func TestExtractObject(t *testing.T) {
	obj, err := ExtractObject("```json\n{\"a\":\"}\\\"{\",\"b\":{\"c\":1}}\n```")
	require.NoError(t, err)
	require.Equal(t, `{"a":"}\"{","b":{"c":1}}`, string(obj))

	_, err = ExtractObject("plain text")
	require.ErrorIs(t, err, ErrNoJSON)
}
