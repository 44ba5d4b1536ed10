package types

// SnippetLength bounds the snippet attached to a semantic search hit.
const SnippetLength = 200

// SearchResult represents a single semantic search hit
type SearchResult struct {
	Element Element
	Score   float64 // Similarity in [0,1]
	Snippet string
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.Element.ID == "" {
		return ErrInvalidElementID
	}

	if sr.Score < 0 || sr.Score > 1 {
		return ErrInvalidRelevanceScore
	}

	if sr.Snippet == "" && sr.Element.Content != "" {
		return ErrEmptyContent
	}

	return nil
}

// MakeSnippet cuts document to the snippet length, marking the cut with "..."
func MakeSnippet(document string) string {
	if len(document) > SnippetLength {
		return Truncate(document, SnippetLength) + "..."
	}
	return document
}
