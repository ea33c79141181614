package fixture

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/yourorg/sessionmock/pkg/types"
)

// ContentType is the content type of every replayed response.
const ContentType = "application/json"

// Methods lists the verbs the index recognises. Exchanges recorded with any
// other verb are dropped at build time.
var Methods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch}

// Response is a canned response ready to be written.
type Response struct {
	Status      int
	ContentType string
	Body        json.RawMessage
}

type entry struct {
	status  int
	content json.RawMessage
	seq     int
	// shadowed counts earlier exchanges this one overwrote.
	shadowed int
}

// Index maps method -> key -> recorded response. It is immutable after Build
// and safe for concurrent use.
type Index struct {
	policy KeyPolicy
	routes map[string]map[string]entry
	size   int
}

// Build indexes the corpus in order. A later exchange with the same method
// and key replaces the earlier one, and the replacement is logged.
func Build(corpus []types.Exchange, policy KeyPolicy, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if policy == "" {
		policy = KeyPath
	}
	idx := &Index{
		policy: policy,
		routes: make(map[string]map[string]entry, len(Methods)),
	}
	for _, m := range Methods {
		idx.routes[m] = make(map[string]entry)
	}

	for i, ex := range corpus {
		seq := ex.Seq
		if seq == 0 {
			seq = i + 1
		}
		method := strings.ToUpper(ex.Method)
		byKey, ok := idx.routes[method]
		if !ok {
			logger.Debug("fixture dropped: method not replayed", "method", ex.Method, "url", ex.URL, "seq", seq)
			continue
		}
		key, err := policy.Key(ex.URL)
		if err != nil {
			return nil, &ConfigurationError{Entry: i, Field: "request.url", Err: err}
		}
		// Informational statuses cannot be replayed as a final response.
		if ex.StatusCode < 200 || ex.StatusCode > 999 {
			return nil, &ConfigurationError{Entry: i, Field: "response.status_code", Err: fmt.Errorf("invalid status %d", ex.StatusCode)}
		}
		content := ex.Content
		if len(content) == 0 {
			content = json.RawMessage("null")
		}
		e := entry{status: ex.StatusCode, content: content, seq: seq}
		if prev, exists := byKey[key]; exists {
			logger.Warn("fixture overwritten by later entry", "method", method, "key", key, "previous_seq", prev.seq, "seq", seq)
			e.shadowed = prev.shadowed + 1
		} else {
			idx.size++
		}
		byKey[key] = e
	}
	return idx, nil
}

// Policy returns the key policy the index was built with.
func (idx *Index) Policy() KeyPolicy {
	return idx.policy
}

// Len returns the number of distinct method/key pairs.
func (idx *Index) Len() int {
	return idx.size
}

// Resolve looks up the recorded response for method and rawPath using the
// same key derivation as Build. A miss returns *MatchError.
func (idx *Index) Resolve(method, rawPath string) (Response, error) {
	byKey, ok := idx.routes[method]
	if !ok {
		return Response{}, &MatchError{Method: method, Key: rawPath, UnknownMethod: true}
	}
	key, err := idx.policy.Key(rawPath)
	if err != nil {
		return Response{}, &MatchError{Method: method, Key: rawPath}
	}
	e, ok := byKey[key]
	if !ok {
		return Response{}, &MatchError{Method: method, Key: key}
	}
	return Response{Status: e.status, ContentType: ContentType, Body: e.content}, nil
}

// Route describes one indexed key, for listings.
type Route struct {
	Method   string
	Key      string
	Status   int
	Seq      int
	Shadowed int
	Body     json.RawMessage
}

// Routes returns every indexed key sorted by method then key.
func (idx *Index) Routes() []Route {
	out := make([]Route, 0, idx.size)
	for method, byKey := range idx.routes {
		for key, e := range byKey {
			out = append(out, Route{Method: method, Key: key, Status: e.status, Seq: e.seq, Shadowed: e.shadowed, Body: e.content})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Method != out[j].Method {
			return out[i].Method < out[j].Method
		}
		return out[i].Key < out[j].Key
	})
	return out
}
