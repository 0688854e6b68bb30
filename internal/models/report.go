package models

import "time"

// ReportStatus represents the user-visible state of a report document.
// It is the single source of truth exposed to end users; job-level detail
// stays diagnostic.
type ReportStatus string

const (
	ReportStatusDraft      ReportStatus = "draft"
	ReportStatusQueued     ReportStatus = "queued"
	ReportStatusGenerating ReportStatus = "generating"
	ReportStatusCompleted  ReportStatus = "completed"
	ReportStatusFailed     ReportStatus = "failed"
)

// SectionMetadata records how a section was produced.
type SectionMetadata struct {
	TokensUsed    int    `json:"tokens_used"`
	Model         string `json:"model"`
	PromptVersion string `json:"prompt_version"`
}

// Section is one generated block of a report. Sections are created or
// replaced by type within a report; the pipeline never deletes them.
type Section struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	Title       string                 `json:"title"`
	Content     string                 `json:"content"`
	GeneratedAt time.Time              `json:"generated_at"`
	Metadata    SectionMetadata        `json:"metadata"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// Report is a multi-section financial analysis document.
type Report struct {
	ID                 string                 `json:"id" badgerhold:"key"`
	UserID             string                 `json:"user_id" badgerhold:"index"`
	CompanyName        string                 `json:"company_name"`
	TemplateType       string                 `json:"template_type"`
	Status             ReportStatus           `json:"status"`
	GenerationProgress int                    `json:"generation_progress"`
	GenerationJobID    string                 `json:"generation_job_id,omitempty"`
	GenerationError    string                 `json:"generation_error,omitempty"`
	CompanyData        map[string]interface{} `json:"company_data,omitempty"`
	Sections           []Section              `json:"sections"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

// UpsertSection replaces the section with the same type, or appends when no
// section of that type exists yet.
func (r *Report) UpsertSection(sec Section) {
	for i := range r.Sections {
		if r.Sections[i].Type == sec.Type {
			r.Sections[i] = sec
			return
		}
	}
	r.Sections = append(r.Sections, sec)
}

// SectionTypes returns the types of all sections currently on the report,
// in section order.
func (r *Report) SectionTypes() []string {
	types := make([]string, 0, len(r.Sections))
	for _, sec := range r.Sections {
		types = append(types, sec.Type)
	}
	return types
}
