package har

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/yourorg/sessionmock/pkg/types"
)

type HARFile struct {
	Log struct {
		Entries []Entry `json:"entries"`
	} `json:"log"`
}

type Entry struct {
	StartedDateTime string  `json:"startedDateTime"`
	Time            float64 `json:"time"`
	Request         struct {
		Method string `json:"method"`
		URL    string `json:"url"`
	} `json:"request"`
	Response struct {
		Status  int `json:"status"`
		Content struct {
			MimeType string `json:"mimeType"`
			Text     string `json:"text"`
			Encoding string `json:"encoding"`
		} `json:"content"`
	} `json:"response"`
}

// Parse reads a HAR capture and returns its exchanges ordered by start time,
// with Seq assigned from 1.
func Parse(filePath string) ([]types.Exchange, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var hf HARFile
	if err := json.Unmarshal(data, &hf); err != nil {
		return nil, err
	}
	exchanges := make([]types.Exchange, 0, len(hf.Log.Entries))
	for _, e := range hf.Log.Entries {
		ts, err := time.Parse(time.RFC3339Nano, e.StartedDateTime)
		if err != nil {
			return nil, fmt.Errorf("parse startedDateTime: %w", err)
		}
		u, err := url.Parse(e.Request.URL)
		if err != nil {
			return nil, fmt.Errorf("parse request url: %w", err)
		}

		exchanges = append(exchanges, types.Exchange{
			RecordedAt:          ts,
			Method:              strings.ToUpper(e.Request.Method),
			URL:                 e.Request.URL,
			Host:                u.Host,
			Path:                u.Path,
			RawQuery:            u.RawQuery,
			StatusCode:          e.Response.Status,
			Content:             decodeContent(e.Response.Content.Text, e.Response.Content.Encoding, e.Response.Content.MimeType),
			ResponseContentType: e.Response.Content.MimeType,
			LatencyMs:           int64(e.Time),
			CallCount:           1,
		})
	}

	sort.SliceStable(exchanges, func(i, j int) bool {
		return exchanges[i].RecordedAt.Before(exchanges[j].RecordedAt)
	})
	for i := range exchanges {
		exchanges[i].Seq = i + 1
	}
	return exchanges, nil
}

// decodeContent turns a HAR body into replayable JSON: JSON bodies are kept
// as-is, other text becomes a JSON string, binary becomes null.
func decodeContent(text, encoding, mimeType string) json.RawMessage {
	if text == "" || isBinaryContentType(mimeType) {
		return json.RawMessage("null")
	}
	if strings.EqualFold(encoding, "base64") {
		decoded, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return json.RawMessage("null")
		}
		text = string(decoded)
	}
	if json.Valid([]byte(text)) {
		return json.RawMessage(text)
	}
	quoted, _ := json.Marshal(text)
	return quoted
}

func isBinaryContentType(mimeType string) bool {
	mt := strings.ToLower(mimeType)
	return strings.HasPrefix(mt, "image/") || strings.HasPrefix(mt, "audio/") || strings.HasPrefix(mt, "video/") || mt == "application/octet-stream"
}
