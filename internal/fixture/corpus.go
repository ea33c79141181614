package fixture

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/yourorg/sessionmock/pkg/types"
)

type corpusRequest struct {
	Method *string `json:"method"`
	URL    *string `json:"url"`
}

type corpusResponse struct {
	StatusCode json.RawMessage `json:"status_code"`
	Content    json.RawMessage `json:"content"`
}

type corpusEntry struct {
	Request  *corpusRequest  `json:"request"`
	Response *corpusResponse `json:"response"`
}

// LoadFile reads a corpus file. Any failure, including a missing file, is a
// *ConfigurationError.
func LoadFile(path string) ([]types.Exchange, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Source: path, Entry: -1, Err: err}
	}
	exchanges, err := Parse(data)
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			cfgErr.Source = path
		}
		return nil, err
	}
	return exchanges, nil
}

// Parse decodes a corpus: a JSON array of
// {"request":{"method","url"},"response":{"status_code","content"}} objects.
// Order is preserved.
func Parse(data []byte) ([]types.Exchange, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigurationError{Entry: -1, Err: fmt.Errorf("corpus must be a JSON array: %w", err)}
	}
	if raw == nil {
		return nil, &ConfigurationError{Entry: -1, Err: errors.New("corpus must be a JSON array, got null")}
	}
	out := make([]types.Exchange, 0, len(raw))
	for i, item := range raw {
		ex, err := parseEntry(item)
		if err != nil {
			err.Entry = i
			return nil, err
		}
		ex.Seq = i + 1
		out = append(out, ex)
	}
	return out, nil
}

func parseEntry(item json.RawMessage) (types.Exchange, *ConfigurationError) {
	var e corpusEntry
	if err := json.Unmarshal(item, &e); err != nil {
		return types.Exchange{}, &ConfigurationError{Err: fmt.Errorf("entry must be an object: %w", err)}
	}
	missing := func(field string) *ConfigurationError {
		return &ConfigurationError{Field: field, Err: errors.New("missing")}
	}
	switch {
	case e.Request == nil:
		return types.Exchange{}, missing("request")
	case e.Request.Method == nil:
		return types.Exchange{}, missing("request.method")
	case e.Request.URL == nil:
		return types.Exchange{}, missing("request.url")
	case e.Response == nil:
		return types.Exchange{}, missing("response")
	case e.Response.StatusCode == nil:
		return types.Exchange{}, missing("response.status_code")
	case e.Response.Content == nil:
		return types.Exchange{}, missing("response.content")
	}
	status, err := parseStatus(e.Response.StatusCode)
	if err != nil {
		return types.Exchange{}, &ConfigurationError{Field: "response.status_code", Err: err}
	}
	return types.Exchange{
		Method:     strings.ToUpper(strings.TrimSpace(*e.Request.Method)),
		URL:        *e.Request.URL,
		StatusCode: status,
		Content:    e.Response.Content,
	}, nil
}

// parseStatus accepts a JSON number or a numeric string.
func parseStatus(raw json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("not an integer: %s", raw)
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return n, nil
}

// Encode writes exchanges in corpus form, so the output can be served
// directly.
func Encode(w io.Writer, exchanges []types.Exchange) error {
	type request struct {
		Method string `json:"method"`
		URL    string `json:"url"`
	}
	type response struct {
		StatusCode int             `json:"status_code"`
		Content    json.RawMessage `json:"content"`
	}
	type entry struct {
		Request  request  `json:"request"`
		Response response `json:"response"`
	}
	entries := make([]entry, 0, len(exchanges))
	for _, ex := range exchanges {
		content := ex.Content
		if len(bytes.TrimSpace(content)) == 0 {
			content = json.RawMessage("null")
		}
		entries = append(entries, entry{
			Request:  request{Method: ex.Method, URL: ex.URL},
			Response: response{StatusCode: ex.StatusCode, Content: content},
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}
