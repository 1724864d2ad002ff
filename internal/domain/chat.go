package domain

// DatasetEntry is one (query, intent, response) row of the chatbot dataset.
type DatasetEntry struct {
	Query    string `json:"query"`
	Intent   string `json:"intent"`
	Response string `json:"response"`
}

// FallbackIntent tags replies produced when nothing in the dataset matched.
const FallbackIntent = "fallback"
