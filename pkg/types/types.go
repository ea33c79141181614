package types

import (
	"encoding/json"
	"time"
)

// Collection records one imported set of recorded exchanges.
type Collection struct {
	ID            string    `json:"id"`
	Source        string    `json:"source"`
	Description   string    `json:"description"`
	Host          string    `json:"host"`
	ExchangeCount int       `json:"exchange_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Status        string    `json:"status"`
}

// Exchange is one recorded request/response pair.
type Exchange struct {
	ID                  int64           `json:"id,omitempty"`
	CollectionID        string          `json:"collection_id,omitempty"`
	Seq                 int             `json:"seq"`
	RecordedAt          time.Time       `json:"recorded_at"`
	Method              string          `json:"method"`
	URL                 string          `json:"url"`
	Host                string          `json:"host,omitempty"`
	Path                string          `json:"path"`
	RawQuery            string          `json:"raw_query,omitempty"`
	StatusCode          int             `json:"status_code"`
	Content             json.RawMessage `json:"content"`
	ResponseContentType string          `json:"response_content_type,omitempty"`
	LatencyMs           int64           `json:"latency_ms"`
	CallCount           int             `json:"call_count,omitempty"`
}
