package gazette

import "conforme/extract"

// SearchResultItem is one ranked candidate from the gazette search results.
// Snippet is a sanitized plain-text rendering of the result card, kept so an
// auditor can see exactly what the portal showed when the match was decided.
type SearchResultItem struct {
	Index           int     `json:"index"`
	PublicationDate string  `json:"publication_date"`
	Edition         string  `json:"edition"`
	Page            string  `json:"page"`
	Snippet         string  `json:"snippet"`
	HasExtrato      bool    `json:"has_extrato"`
	Score           float64 `json:"score"`
}

// PublicationResult is the outcome of one gazette search.
//
// Found=false means "no confirmed match located", never "confirmed absent".
// That distinction is a hard invariant: downstream reporting must not present
// an unlocated publication as evidence of non-publication.
type PublicationResult struct {
	Processo        string                  `json:"processo"`
	Found           bool                    `json:"publication_found"`
	PublicationDate string                  `json:"publication_date,omitempty"`
	PublicationURL  string                  `json:"publication_url,omitempty"`
	Edition         string                  `json:"edition,omitempty"`
	Page            string                  `json:"page,omitempty"`
	Extracted       *extract.ContractRecord `json:"extracted_fields,omitempty"`
	Items           []SearchResultItem      `json:"search_result_items"`
}
