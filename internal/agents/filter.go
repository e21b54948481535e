package agents

import "github.com/openscout/orchestrator/internal/searxng"

// ResultFilter drops low-value hits before they reach aggregation.
type ResultFilter struct {
	MinSnippetLen  int
	MinRelevance   float64
	RequireTitle   bool
	RequireSnippet bool
}

// Apply returns the results that pass the filter.
func (f ResultFilter) Apply(results []searxng.Result) []searxng.Result {
	kept := make([]searxng.Result, 0, len(results))
	for _, r := range results {
		if r.URL == "" {
			continue
		}
		if f.RequireTitle && r.Title == "" {
			continue
		}
		if f.RequireSnippet && r.Snippet == "" {
			continue
		}
		if len(r.Snippet) < f.MinSnippetLen {
			continue
		}
		if r.Relevance < f.MinRelevance {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}
