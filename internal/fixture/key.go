package fixture

import (
	"fmt"
	"net/url"
	"strings"
)

// KeyPolicy selects how a URL is turned into an index key.
type KeyPolicy string

const (
	// KeyPath keys on the decoded path only; /a?x=1 and /a?x=2 collide.
	KeyPath KeyPolicy = "path"
	// KeyPathQuery appends the raw query string verbatim.
	KeyPathQuery KeyPolicy = "path_query"
)

// ParseKeyPolicy parses a policy name. The empty string selects KeyPath.
func ParseKeyPolicy(s string) (KeyPolicy, error) {
	switch KeyPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", KeyPath:
		return KeyPath, nil
	case KeyPathQuery:
		return KeyPathQuery, nil
	default:
		return "", fmt.Errorf("unknown key policy %q (want %q or %q)", s, KeyPath, KeyPathQuery)
	}
}

// Key derives the index key for raw, which may be an absolute URL, an
// origin-form request target ("/a/b?x=1") or a bare segment ("a").
//
// The path is percent-decoded, gets a leading slash, and keeps any trailing
// slash, so "/a" and "/a/" are different keys. The fragment is discarded.
func (p KeyPolicy) Key(raw string) (string, error) {
	var (
		u   *url.URL
		err error
	)
	if strings.HasPrefix(raw, "/") {
		// ParseRequestURI keeps "//x" as a path instead of an authority.
		target, _, _ := strings.Cut(raw, "#")
		u, err = url.ParseRequestURI(target)
	} else {
		u, err = url.Parse(raw)
	}
	if err != nil {
		return "", err
	}
	return p.keyFor(u), nil
}

func (p KeyPolicy) keyFor(u *url.URL) string {
	path := u.Path
	if u.Opaque != "" && path == "" {
		path = u.Opaque
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if p == KeyPathQuery && u.RawQuery != "" {
		return path + "?" + u.RawQuery
	}
	return path
}
