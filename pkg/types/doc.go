package types

// Catalogue summarises a collection for human review.
type Catalogue struct {
	Collection Collection       `json:"collection" yaml:"collection"`
	Endpoints  []CatalogueEntry `json:"endpoints" yaml:"endpoints"`
}

// CatalogueEntry describes one replayable endpoint.
type CatalogueEntry struct {
	Method      string `json:"method" yaml:"method"`
	Key         string `json:"key" yaml:"key"`
	StatusCode  int    `json:"status_code" yaml:"status_code"`
	ContentType string `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	CallCount   int    `json:"call_count" yaml:"call_count"`
	Shadowed    int    `json:"shadowed,omitempty" yaml:"shadowed,omitempty"`
	Preview     string `json:"preview,omitempty" yaml:"preview,omitempty"`
}
