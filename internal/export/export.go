package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yourorg/sessionmock/internal/fixture"
	"github.com/yourorg/sessionmock/pkg/types"
)

const previewLimit = 120

// File names written by Write.
const (
	CorpusFile   = "responses.json"
	MarkdownFile = "fixtures.md"
	YAMLFile     = "fixtures.yaml"
)

// BuildCatalogue indexes exchanges with policy and describes what the server
// would replay for each key.
func BuildCatalogue(c types.Collection, exchanges []types.Exchange, policy fixture.KeyPolicy) (*types.Catalogue, error) {
	idx, err := fixture.Build(exchanges, policy, nil)
	if err != nil {
		return nil, err
	}
	calls := make(map[string]int)
	contentTypes := make(map[string]string)
	for _, ex := range exchanges {
		key, err := policy.Key(ex.URL)
		if err != nil {
			continue
		}
		id := strings.ToUpper(ex.Method) + " " + key
		n := ex.CallCount
		if n == 0 {
			n = 1
		}
		calls[id] += n
		if ex.ResponseContentType != "" {
			contentTypes[id] = ex.ResponseContentType
		}
	}

	cat := &types.Catalogue{Collection: c}
	for _, r := range idx.Routes() {
		id := r.Method + " " + r.Key
		cat.Endpoints = append(cat.Endpoints, types.CatalogueEntry{
			Method:      r.Method,
			Key:         r.Key,
			StatusCode:  r.Status,
			ContentType: contentTypes[id],
			CallCount:   calls[id],
			Shadowed:    r.Shadowed,
			Preview:     preview(string(r.Body)),
		})
	}
	return cat, nil
}

// Write renders the corpus and both catalogues into outputDir.
func Write(cat *types.Catalogue, exchanges []types.Exchange, outputDir string) error {
	if err := WriteCorpus(exchanges, outputDir); err != nil {
		return err
	}
	if err := RenderMarkdown(cat, outputDir); err != nil {
		return err
	}
	return RenderYAML(cat, outputDir)
}

// WriteCorpus writes responses.json in the form serve loads.
func WriteCorpus(exchanges []types.Exchange, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(outputDir, CorpusFile))
	if err != nil {
		return err
	}
	if err := fixture.Encode(f, exchanges); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// RenderMarkdown renders fixtures.md.
func RenderMarkdown(cat *types.Catalogue, outputDir string) error {
	if cat == nil {
		return fmt.Errorf("catalogue is nil")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}

	b := &strings.Builder{}
	title := cat.Collection.Description
	if title == "" {
		title = cat.Collection.ID
	}
	fmt.Fprintf(b, "# %s\n\n", title)
	if cat.Collection.Host != "" {
		fmt.Fprintf(b, "Recorded from `%s` (%s).\n\n", cat.Collection.Host, cat.Collection.Source)
	}
	fmt.Fprintln(b, "| Method | Key | Status | Calls | Note |")
	fmt.Fprintln(b, "|---|---|---|---|---|")
	for _, e := range cat.Endpoints {
		note := ""
		if e.Shadowed > 0 {
			note = fmt.Sprintf("overrides %d earlier", e.Shadowed)
		}
		fmt.Fprintf(b, "| %s | `%s` | %d | %d | %s |\n", e.Method, e.Key, e.StatusCode, e.CallCount, note)
	}
	for _, e := range cat.Endpoints {
		if e.Preview == "" {
			continue
		}
		fmt.Fprintf(b, "\n## %s %s\n\n```json\n%s\n```\n", e.Method, e.Key, e.Preview)
	}
	return os.WriteFile(filepath.Join(outputDir, MarkdownFile), []byte(b.String()), 0o644)
}

// RenderYAML renders fixtures.yaml.
func RenderYAML(cat *types.Catalogue, outputDir string) error {
	if cat == nil {
		return fmt.Errorf("catalogue is nil")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cat)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outputDir, YAMLFile), data, 0o644)
}

func preview(body string) string {
	body = strings.TrimSpace(body)
	if body == "null" {
		return ""
	}
	if r := []rune(body); len(r) > previewLimit {
		return string(r[:previewLimit]) + "..."
	}
	return body
}
