package filter

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/yourorg/sessionmock/internal/config"
	"github.com/yourorg/sessionmock/pkg/types"
)

// SanitizeConfig is an alias of config.SanitizeConfig.
type SanitizeConfig = config.SanitizeConfig

// Sanitize redacts sensitive query parameters and JSON body fields before
// exchanges are stored as fixtures.
func Sanitize(exchanges []types.Exchange, cfg SanitizeConfig) []types.Exchange {
	fieldSet := toLowerSet(cfg.BodyFields)
	replacement := cfg.Replacement
	out := make([]types.Exchange, len(exchanges))
	for i, ex := range exchanges {
		out[i] = ex
		if q := sanitizeQuery(ex.RawQuery, fieldSet, replacement); q != ex.RawQuery {
			out[i].RawQuery = q
			out[i].URL = replaceQuery(ex.URL, q)
		}
		out[i].Content = sanitizeBody(ex.Content, fieldSet, replacement)
	}
	return out
}

func toLowerSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, v := range items {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}

func sanitizeQuery(rawQuery string, set map[string]struct{}, replacement string) string {
	if rawQuery == "" {
		return rawQuery
	}
	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		return rawQuery
	}
	changed := false
	for k, vs := range params {
		if _, ok := set[strings.ToLower(k)]; !ok {
			continue
		}
		for i := range vs {
			vs[i] = replacement
		}
		changed = true
	}
	if !changed {
		return rawQuery
	}
	return params.Encode()
}

func replaceQuery(raw, rawQuery string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = rawQuery
	return u.String()
}

func sanitizeBody(body json.RawMessage, set map[string]struct{}, replacement string) json.RawMessage {
	if len(body) == 0 {
		return body
	}
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return body
	}
	v = sanitizeJSONValue(v, set, replacement)
	out, err := json.Marshal(v)
	if err != nil {
		return body
	}
	return out
}

func sanitizeJSONValue(v interface{}, set map[string]struct{}, replacement string) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, v2 := range val {
			if _, ok := set[strings.ToLower(k)]; ok {
				val[k] = replacement
				continue
			}
			val[k] = sanitizeJSONValue(v2, set, replacement)
		}
		return val
	case []interface{}:
		for i := range val {
			val[i] = sanitizeJSONValue(val[i], set, replacement)
		}
		return val
	default:
		return val
	}
}
