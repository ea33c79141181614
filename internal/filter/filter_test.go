package filter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/sessionmock/pkg/types"
)

func TestApplyFiltersBasic(t *testing.T) {
	cfg := FilterConfig{
		IgnoreExtensions:   []string{".js", ".css", ".png"},
		IgnoreContentTypes: []string{"text/html", "image/*"},
		IgnorePaths:        []string{"/static/**", "/favicon*", "/cdn/"},
	}
	exchanges := []types.Exchange{
		{Method: "OPTIONS", Path: "/api/ping", StatusCode: 204},
		{Method: "GET", Path: "/static/app.js", ResponseContentType: "application/javascript", StatusCode: 200},
		{Method: "GET", Path: "/index", ResponseContentType: "text/html; charset=utf-8", StatusCode: 200},
		{Method: "GET", Path: "/static/img/logo", ResponseContentType: "application/json", StatusCode: 200},
		{Method: "GET", Path: "/favicon.ico", StatusCode: 200},
		{Method: "GET", Path: "/cdn/v1/blob", StatusCode: 200},
		{Method: "GET", Path: "/api/stream", StatusCode: 101},
		{Method: "POST", Path: "/api/aborted", StatusCode: 0},
		{Method: "GET", Path: "/api/data", ResponseContentType: "application/json", StatusCode: 200},
	}

	out := Apply(exchanges, cfg)
	require.Len(t, out, 1)
	assert.Equal(t, "/api/data", out[0].Path)
}

func TestApplyCollapsesRepeatsToLatest(t *testing.T) {
	exchanges := []types.Exchange{
		{Seq: 1, Method: "GET", Path: "/api/users", RawQuery: "id=1&x=2", StatusCode: 200, Content: json.RawMessage(`"old"`)},
		{Seq: 2, Method: "GET", Path: "/api/users", RawQuery: "id=2", StatusCode: 200},
		{Seq: 3, Method: "GET", Path: "/api/users", RawQuery: "x=2&id=1", StatusCode: 200, Content: json.RawMessage(`"new"`)},
		{Seq: 4, Method: "POST", Path: "/api/users", RawQuery: "id=1", StatusCode: 201},
	}

	out := Apply(exchanges, FilterConfig{})
	require.Len(t, out, 3)
	assert.Equal(t, 1, out[0].Seq, "position of the first occurrence is kept")
	assert.Equal(t, 2, out[0].CallCount)
	assert.JSONEq(t, `"new"`, string(out[0].Content), "latest response wins")
	assert.Equal(t, 1, out[1].CallCount)
}

func TestApplyRemoveConsecutive5xxRetries(t *testing.T) {
	exchanges := []types.Exchange{
		{Method: "GET", Path: "/api/retry", StatusCode: 500},
		{Method: "GET", Path: "/api/retry", StatusCode: 502},
		{Method: "GET", Path: "/api/retry", StatusCode: 503},
	}

	out := Apply(exchanges, FilterConfig{})
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].CallCount)
	assert.Equal(t, 500, out[0].StatusCode)
}

func TestApplyRetryThenSuccessKeepsSuccess(t *testing.T) {
	exchanges := []types.Exchange{
		{Method: "GET", Path: "/api/retry", StatusCode: 503},
		{Method: "GET", Path: "/api/retry", StatusCode: 200},
	}

	out := Apply(exchanges, FilterConfig{})
	require.Len(t, out, 1)
	assert.Equal(t, 200, out[0].StatusCode)
	assert.Equal(t, 2, out[0].CallCount)
}
