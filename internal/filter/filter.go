package filter

import (
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/yourorg/sessionmock/internal/config"
	"github.com/yourorg/sessionmock/pkg/types"
)

// FilterConfig is an alias of config.FilterConfig.
type FilterConfig = config.FilterConfig

// Apply drops exchanges that make poor fixtures and collapses repeats of the
// same request into the most recent one.
func Apply(exchanges []types.Exchange, cfg FilterConfig) []types.Exchange {
	filtered := make([]types.Exchange, 0, len(exchanges))
	for _, ex := range exchanges {
		if strings.EqualFold(ex.Method, "OPTIONS") {
			continue
		}
		// Aborted requests record status 0; 1xx is never a final response.
		if ex.StatusCode < 200 {
			continue
		}
		if hasIgnoredExtension(ex.Path, cfg.IgnoreExtensions) {
			continue
		}
		if matchesContentType(ex.ResponseContentType, cfg.IgnoreContentTypes) {
			continue
		}
		if hasIgnoredPath(ex.Path, cfg.IgnorePaths) {
			continue
		}
		filtered = append(filtered, ex)
	}

	filtered = removeConsecutive5xx(filtered)
	return collapseRepeats(filtered)
}

func hasIgnoredExtension(p string, exts []string) bool {
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if strings.ToLower(strings.TrimSpace(e)) == ext {
			return true
		}
	}
	return false
}

// hasIgnoredPath matches doublestar globs ("/static/**"); a pattern without
// glob characters is treated as a prefix.
func hasIgnoredPath(p string, patterns []string) bool {
	for _, pat := range patterns {
		pat = strings.TrimSpace(pat)
		if pat == "" {
			continue
		}
		if !strings.ContainsAny(pat, "*?[{") {
			if strings.HasPrefix(p, pat) {
				return true
			}
			continue
		}
		if ok, err := doublestar.Match(pat, p); err == nil && ok {
			return true
		}
	}
	return false
}

func matchesContentType(ct string, ignores []string) bool {
	if strings.TrimSpace(ct) == "" {
		return false
	}
	base := strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
	for _, p := range ignores {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if strings.HasSuffix(p, "/*") {
			prefix := strings.TrimSuffix(p, "*")
			if strings.HasPrefix(base, prefix) {
				return true
			}
			continue
		}
		if base == p {
			return true
		}
	}
	return false
}

func removeConsecutive5xx(exchanges []types.Exchange) []types.Exchange {
	out := make([]types.Exchange, 0, len(exchanges))
	var prevKey string
	var prevWas5xx bool
	for _, ex := range exchanges {
		key := requestKey(ex.Method, ex.Path, ex.RawQuery)
		if prevWas5xx && key == prevKey && is5xx(ex.StatusCode) {
			continue
		}
		out = append(out, ex)
		prevKey = key
		prevWas5xx = is5xx(ex.StatusCode)
	}
	return out
}

// collapseRepeats keeps one exchange per request key, holding the latest
// response at the position of the first occurrence. Replay is last-write-wins,
// so this is what the server would answer anyway.
func collapseRepeats(exchanges []types.Exchange) []types.Exchange {
	out := make([]types.Exchange, 0, len(exchanges))
	index := make(map[string]int, len(exchanges))
	for _, ex := range exchanges {
		count := ex.CallCount
		if count == 0 {
			count = 1
		}
		key := requestKey(ex.Method, ex.Path, ex.RawQuery)
		if idx, ok := index[key]; ok {
			total := out[idx].CallCount + count
			seq := out[idx].Seq
			out[idx] = ex
			out[idx].Seq = seq
			out[idx].CallCount = total
			continue
		}
		ex.CallCount = count
		index[key] = len(out)
		out = append(out, ex)
	}
	return out
}

func is5xx(code int) bool {
	return code >= 500 && code <= 599
}

func requestKey(method, p, rawQuery string) string {
	return strings.ToUpper(method) + " " + p + "?" + canonicalQuery(rawQuery)
}

func canonicalQuery(rawQuery string) string {
	params, err := url.ParseQuery(rawQuery)
	if err != nil || len(params) == 0 {
		return rawQuery
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals := url.Values{}
	for _, k := range keys {
		values := append([]string(nil), params[k]...)
		sort.Strings(values)
		for _, v := range values {
			vals.Add(k, v)
		}
	}
	return vals.Encode()
}
