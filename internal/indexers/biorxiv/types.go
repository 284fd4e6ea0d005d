package biorxiv

// DetailsResponse is the top-level response of the bioRxiv/medRxiv details API.
type DetailsResponse struct {
	Messages   []Message `json:"messages"`
	Collection []Preprint `json:"collection"`
}

// Message carries paging status for a details request.
type Message struct {
	Status string `json:"status"`
	Cursor any    `json:"cursor"`
	Count  any    `json:"count"`
	Total  any    `json:"total"`
}

// Preprint is one version of a preprint in the details collection.
type Preprint struct {
	DOI         string `json:"doi"`
	Title       string `json:"title"`
	Authors     string `json:"authors"` // "Doe, J.; Roe, R."
	Date        string `json:"date"`    // "2024-01-15"
	Version     string `json:"version"`
	Type        string `json:"type"` // "new results", "withdrawn", ...
	Category    string `json:"category"`
	Server      string `json:"server"`
	PublishedIn string `json:"published_in"`
	Published   string `json:"published"`
}
