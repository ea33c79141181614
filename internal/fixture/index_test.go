package fixture

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/sessionmock/pkg/types"
)

func ex(method, url string, status int, content string) types.Exchange {
	return types.Exchange{Method: method, URL: url, StatusCode: status, Content: json.RawMessage(content)}
}

func TestBuildAndResolveEveryExchange(t *testing.T) {
	corpus := []types.Exchange{
		ex("GET", "/a", 200, `{"a":1}`),
		ex("POST", "/a", 201, `{"created":true}`),
		ex("PUT", "https://h.example/b/c", 200, `"put"`),
		ex("PATCH", "d", 202, `[1,2]`),
	}
	idx, err := Build(corpus, KeyPath, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Len())

	for _, c := range corpus {
		key, err := KeyPath.Key(c.URL)
		require.NoError(t, err)
		resp, err := idx.Resolve(c.Method, key)
		require.NoError(t, err, "%s %s", c.Method, key)
		assert.Equal(t, c.StatusCode, resp.Status)
		assert.Equal(t, "application/json", resp.ContentType)
		assert.JSONEq(t, string(c.Content), string(resp.Body))
	}
}

func TestBuildLastWriteWinsAndWarns(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	idx, err := Build([]types.Exchange{
		ex("GET", "/dup", 200, `{"v":"first"}`),
		ex("GET", "/other", 200, `{}`),
		ex("GET", "https://x.example/dup", 500, `{"v":"second"}`),
	}, KeyPath, logger)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())

	resp, err := idx.Resolve("GET", "/dup")
	require.NoError(t, err)
	assert.Equal(t, 500, resp.Status)
	assert.JSONEq(t, `{"v":"second"}`, string(resp.Body))

	assert.Contains(t, logs.String(), "fixture overwritten")
	assert.Contains(t, logs.String(), "previous_seq=1")
	assert.Contains(t, logs.String(), "seq=3")
}

func TestKeyPolicyDecidesQueryCollisions(t *testing.T) {
	corpus := []types.Exchange{
		ex("GET", "/a?x=1", 200, `"one"`),
		ex("GET", "/a?x=2", 200, `"two"`),
	}

	pathOnly, err := Build(corpus, KeyPath, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, pathOnly.Len())
	resp, err := pathOnly.Resolve("GET", "/a?x=1")
	require.NoError(t, err)
	assert.JSONEq(t, `"two"`, string(resp.Body), "path policy ignores the query on both sides")

	withQuery, err := Build(corpus, KeyPathQuery, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, withQuery.Len())
	resp, err = withQuery.Resolve("GET", "/a?x=1")
	require.NoError(t, err)
	assert.JSONEq(t, `"one"`, string(resp.Body))
	_, err = withQuery.Resolve("GET", "/a")
	assert.Error(t, err)
}

func TestResolveMissIsMatchError(t *testing.T) {
	idx, err := Build([]types.Exchange{ex("GET", "/a", 200, `{}`)}, KeyPath, nil)
	require.NoError(t, err)

	for _, m := range Methods {
		t.Run(m, func(t *testing.T) {
			_, err := idx.Resolve(m, "/missing")
			var me *MatchError
			require.True(t, errors.As(err, &me))
			assert.False(t, me.UnknownMethod)
			assert.Equal(t, http.StatusNotFound, me.StatusCode())
		})
	}
}

func TestResolveUnrecognisedMethodNeverMatches(t *testing.T) {
	corpus := []types.Exchange{
		ex("DELETE", "/a", 204, `null`),
		ex("OPTIONS", "/a", 200, `{}`),
		ex("GET", "/a", 200, `{}`),
	}
	idx, err := Build(corpus, KeyPath, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len(), "DELETE and OPTIONS fixtures are dropped")

	for _, m := range []string{"DELETE", "OPTIONS", "HEAD", "TRACE", "get"} {
		_, err := idx.Resolve(m, "/a")
		var me *MatchError
		require.True(t, errors.As(err, &me), m)
		assert.True(t, me.UnknownMethod, m)
	}
}

func TestResolveIsStable(t *testing.T) {
	exchanges, err := LoadFile(filepath.Join("testdata", "responses.json"))
	require.NoError(t, err)
	idx, err := Build(exchanges, KeyPath, nil)
	require.NoError(t, err)

	first, err := idx.Resolve("GET", "/v1/profile")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := idx.Resolve("GET", "/v1/profile")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.JSONEq(t, `{"name":"player-two","level":3}`, string(first.Body))
}

func TestBuildRejectsBadEntries(t *testing.T) {
	_, err := Build([]types.Exchange{ex("GET", "/a", 200, `{}`), ex("GET", "http://[::1", 200, `{}`)}, KeyPath, nil)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, 1, cfgErr.Entry)
	assert.Equal(t, "request.url", cfgErr.Field)

	for _, status := range []int{42, 100, 103, 1000} {
		_, err = Build([]types.Exchange{ex("GET", "/a", status, `{}`)}, KeyPath, nil)
		require.True(t, errors.As(err, &cfgErr), "status %d", status)
		assert.Equal(t, "response.status_code", cfgErr.Field)
	}
}

func TestRoutesSorted(t *testing.T) {
	idx, err := Build([]types.Exchange{
		ex("POST", "/b", 201, `{}`),
		ex("GET", "/z", 200, `{}`),
		ex("GET", "/a", 200, `{}`),
		ex("GET", "/a", 200, `{"v":2}`),
	}, KeyPath, nil)
	require.NoError(t, err)

	routes := idx.Routes()
	require.Len(t, routes, 3)
	got := make([]string, 0, len(routes))
	for _, r := range routes {
		got = append(got, fmt.Sprintf("%s %s", r.Method, r.Key))
	}
	assert.Equal(t, []string{"GET /a", "GET /z", "POST /b"}, got)
	assert.Equal(t, 1, routes[0].Shadowed)
	assert.Equal(t, 4, routes[0].Seq)
}
