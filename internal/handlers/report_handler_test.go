package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/finsight/reportgen/internal/interfaces"
	"github.com/finsight/reportgen/internal/models"
	"github.com/finsight/reportgen/internal/scheduler"
	"github.com/finsight/reportgen/internal/services/reports"
	"github.com/finsight/reportgen/internal/services/sections"
)

type fakeReportStore struct {
	mu      sync.Mutex
	reports map[string]*models.Report
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{reports: make(map[string]*models.Report)}
}

func (f *fakeReportStore) GetReport(ctx context.Context, id string) (*models.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[id]
	if !ok {
		return nil, interfaces.ErrReportNotFound
	}
	clone := *r
	clone.Sections = append([]models.Section(nil), r.Sections...)
	return &clone, nil
}

func (f *fakeReportStore) SaveReport(ctx context.Context, report *models.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *report
	f.reports[report.ID] = &clone
	return nil
}

func (f *fakeReportStore) UpdateReport(ctx context.Context, id string, mutate func(*models.Report) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[id]
	if !ok {
		return interfaces.ErrReportNotFound
	}
	return mutate(r)
}

func (f *fakeReportStore) ListReports(ctx context.Context, userID string, limit int) ([]*models.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Report
	for _, r := range f.reports {
		if r.UserID == userID {
			clone := *r
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeReportStore) DeleteReport(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reports[id]; !ok {
		return interfaces.ErrReportNotFound
	}
	delete(f.reports, id)
	return nil
}

func (f *fakeReportStore) Close() error { return nil }

type cannedCompletions struct{}

func (cannedCompletions) Complete(ctx context.Context, prompt string, opts interfaces.CompletionOptions) (*interfaces.CompletionResult, error) {
	return &interfaces.CompletionResult{Content: "generated content", TokensUsed: 50, Model: "model-primary"}, nil
}

func newTestHandler(t *testing.T) (*ReportHandler, *fakeReportStore) {
	t.Helper()
	logger := arbor.NewLogger()
	store := newFakeReportStore()

	sched := scheduler.New(scheduler.Config{
		MaxConcurrentJobs: 1,
		PollInterval:      10 * time.Millisecond,
	}, logger)
	if err := sched.Start(); err != nil {
		t.Fatalf("scheduler start failed: %v", err)
	}
	t.Cleanup(sched.Stop)

	generator := sections.NewGenerator(cannedCompletions{}, 0, logger)
	service := reports.NewService(sched, generator, store, logger)
	return NewReportHandler(service, logger), store
}

func TestGenerateHandler_CreatesAndEnqueues(t *testing.T) {
	handler, store := newTestHandler(t)

	body := `{
		"user_id": "user-1",
		"company_name": "ACME Corp",
		"template_type": "standard",
		"company_data": {"name": "ACME Corp", "ticker": "ACME"}
	}`
	req := httptest.NewRequest("POST", "/api/reports/generate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.GenerateHandler(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp["report_id"] == "" || resp["job_id"] == "" || resp["status"] != "queued" {
		t.Fatalf("unexpected response: %v", resp)
	}

	// The job should drive the report to completed.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		r, err := store.GetReport(context.Background(), resp["report_id"])
		if err == nil && r.Status == models.ReportStatusCompleted {
			if len(r.Sections) != 4 {
				t.Errorf("sections = %d, want 4", len(r.Sections))
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("report never completed")
}

func TestGenerateHandler_RejectsBadPayloads(t *testing.T) {
	handler, _ := newTestHandler(t)

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{"user_id": `},
		{"missing user_id", `{"company_name": "ACME Corp", "company_data": {"name": "ACME Corp"}}`},
		{"missing company_data", `{"user_id": "user-1", "company_name": "ACME Corp"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/reports/generate", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			handler.GenerateHandler(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestGenerateHandler_MethodNotAllowed(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/reports/generate", nil)
	rec := httptest.NewRecorder()
	handler.GenerateHandler(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestReportRoutesHandler_StatusAndReport(t *testing.T) {
	handler, store := newTestHandler(t)

	report := &models.Report{
		ID:                 "rpt-1",
		UserID:             "user-1",
		CompanyName:        "ACME Corp",
		Status:             models.ReportStatusGenerating,
		GenerationProgress: 50,
		Sections:           []models.Section{{ID: "sec-1", Type: "executiveSummary"}},
	}
	if err := store.SaveReport(context.Background(), report); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/api/reports/rpt-1/status", nil)
	rec := httptest.NewRecorder()
	handler.ReportRoutesHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status route = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var status reports.GenerationStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.ReportID != "rpt-1" || status.Progress != 50 || status.CompletedSections != 1 {
		t.Errorf("unexpected status projection: %+v", status)
	}
	if len(status.Sections) != 1 || status.Sections[0] != "executiveSummary" {
		t.Errorf("status sections = %v, want [executiveSummary]", status.Sections)
	}

	req = httptest.NewRequest("GET", "/api/reports/rpt-1", nil)
	rec = httptest.NewRecorder()
	handler.ReportRoutesHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("report route = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest("GET", "/api/reports/rpt-missing/status", nil)
	rec = httptest.NewRecorder()
	handler.ReportRoutesHandler(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing report = %d, want 404", rec.Code)
	}
}

func TestReportRoutesHandler_DeleteReport(t *testing.T) {
	handler, store := newTestHandler(t)

	report := &models.Report{ID: "rpt-1", UserID: "user-1", CompanyName: "ACME Corp"}
	if err := store.SaveReport(context.Background(), report); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("DELETE", "/api/reports/rpt-1", nil)
	rec := httptest.NewRecorder()
	handler.ReportRoutesHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "success" {
		t.Errorf("delete response = %v, want success envelope", resp)
	}

	req = httptest.NewRequest("GET", "/api/reports/rpt-1", nil)
	rec = httptest.NewRecorder()
	handler.ReportRoutesHandler(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("deleted report still served, code = %d", rec.Code)
	}

	req = httptest.NewRequest("DELETE", "/api/reports/rpt-missing", nil)
	rec = httptest.NewRecorder()
	handler.ReportRoutesHandler(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete missing = %d, want 404", rec.Code)
	}
}
