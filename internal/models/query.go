package models

// QuerySource tells where a synthetic query came from.
type QuerySource string

const (
	QuerySourceProvided  QuerySource = "provided"
	QuerySourceGenerated QuerySource = "generated"
)

// Intent classifies what a searcher is trying to do with a query.
type Intent string

const (
	IntentInformational Intent = "informational"
	IntentComparison    Intent = "comparison"
	IntentHowTo         Intent = "how_to"
	IntentTransactional Intent = "transactional"
)

// SyntheticQuery is a generated or supplied natural-language question used to
// probe retrievability, standing in for a real AI-assistant user query.
type SyntheticQuery struct {
	Text   string      `json:"text"`
	Intent Intent      `json:"intent"`
	Source QuerySource `json:"source"`

	// ExpectedPages are ground-truth page URLs for relevance judgment.
	// Optional; only provided queries normally carry them.
	ExpectedPages []string `json:"expected_pages,omitempty"`
}

// SiteProfile summarizes a crawled site for query generation.
type SiteProfile struct {
	Domain      string   `json:"domain"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Language    string   `json:"language,omitempty"`
	TopKeywords []string `json:"top_keywords,omitempty"`
	SampleText  string   `json:"sample_text,omitempty"`
}
