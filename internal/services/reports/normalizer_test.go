package reports

import (
	"testing"
)

func TestNormalizeCompanyData_RequiresName(t *testing.T) {
	if _, err := NormalizeCompanyData(nil); err == nil {
		t.Error("nil payload should be rejected")
	}
	if _, err := NormalizeCompanyData(map[string]interface{}{"ticker": "ACME"}); err == nil {
		t.Error("payload without a name should be rejected")
	}
	if _, err := NormalizeCompanyData(map[string]interface{}{"name": "   "}); err == nil {
		t.Error("blank name should be rejected")
	}
}

func TestNormalizeCompanyData_MapsFields(t *testing.T) {
	raw := map[string]interface{}{
		"company_name": "  ACME Corp  ",
		"symbol":       "acme",
		"sector":       "Industrial Equipment",
		"description":  "Manufactures heavy machinery.",
		"financials":   map[string]interface{}{"revenue": 1200000.0},
		"risks":        []interface{}{"supplier concentration", "  ", 42, "fx exposure"},
	}

	company, err := NormalizeCompanyData(raw)
	if err != nil {
		t.Fatalf("NormalizeCompanyData failed: %v", err)
	}

	if company.Name != "ACME Corp" {
		t.Errorf("name = %q", company.Name)
	}
	if company.Ticker != "ACME" {
		t.Errorf("ticker = %q, want upper-cased ACME", company.Ticker)
	}
	if company.Industry != "Industrial Equipment" {
		t.Errorf("industry = %q", company.Industry)
	}
	if company.Financials["revenue"] != 1200000.0 {
		t.Errorf("financials not carried over: %+v", company.Financials)
	}
	if len(company.Risks) != 2 || company.Risks[0] != "supplier concentration" || company.Risks[1] != "fx exposure" {
		t.Errorf("risks = %v, want the two non-blank strings", company.Risks)
	}
}

func TestSectionsForTemplate_UnknownFallsBackToStandard(t *testing.T) {
	standard := SectionsForTemplate("standard")
	if len(standard) != 4 {
		t.Fatalf("standard template has %d sections, want 4", len(standard))
	}

	unknown := SectionsForTemplate("quarterly-deep-dive")
	if len(unknown) != len(standard) {
		t.Fatalf("unknown template should use the standard list")
	}
	for i := range standard {
		if unknown[i] != standard[i] {
			t.Errorf("unknown template section %d = %s, want %s", i, unknown[i], standard[i])
		}
	}

	if len(SectionsForTemplate("detailed")) != 6 {
		t.Errorf("detailed template has %d sections, want 6", len(SectionsForTemplate("detailed")))
	}
}
