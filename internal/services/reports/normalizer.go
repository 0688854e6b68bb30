package reports

import (
	"fmt"
	"strings"

	"github.com/finsight/reportgen/internal/models"
)

// NormalizeCompanyData cleans a raw company payload into the profile the
// section generator consumes. The company name is the only required field;
// everything else degrades to empty values.
func NormalizeCompanyData(raw map[string]interface{}) (*models.NormalizedCompany, error) {
	if raw == nil {
		return nil, fmt.Errorf("company data is required")
	}

	name := cleanString(raw, "name", "company_name", "companyName")
	if name == "" {
		return nil, fmt.Errorf("company data is missing a company name")
	}

	company := &models.NormalizedCompany{
		Name:        name,
		Ticker:      strings.ToUpper(cleanString(raw, "ticker", "symbol")),
		Industry:    cleanString(raw, "industry", "sector"),
		Description: cleanString(raw, "description", "summary"),
		Financials:  subMap(raw, "financials"),
		Metrics:     subMap(raw, "metrics"),
		Raw:         raw,
	}

	if risks, ok := raw["risks"].([]interface{}); ok {
		for _, r := range risks {
			if s, ok := r.(string); ok && strings.TrimSpace(s) != "" {
				company.Risks = append(company.Risks, strings.TrimSpace(s))
			}
		}
	}

	return company, nil
}

// cleanString returns the first non-empty string under any of the keys.
func cleanString(raw map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := raw[key].(string); ok {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func subMap(raw map[string]interface{}, key string) map[string]interface{} {
	if m, ok := raw[key].(map[string]interface{}); ok && len(m) > 0 {
		return m
	}
	return nil
}
