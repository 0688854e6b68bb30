package models

// NormalizedCompany is the cleaned company profile consumed by section
// generation. Raw keeps the original payload for templates that need fields
// the normalizer does not model.
type NormalizedCompany struct {
	Name        string                 `json:"name"`
	Ticker      string                 `json:"ticker,omitempty"`
	Industry    string                 `json:"industry,omitempty"`
	Description string                 `json:"description,omitempty"`
	Financials  map[string]interface{} `json:"financials,omitempty"`
	Metrics     map[string]interface{} `json:"metrics,omitempty"`
	Risks       []string               `json:"risks,omitempty"`
	Raw         map[string]interface{} `json:"-"`
}
