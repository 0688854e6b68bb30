// Package reports turns "generate a full report" into one scheduled job
// that runs section generation sequentially and persists results through
// the report store.
package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/finsight/reportgen/internal/common"
	"github.com/finsight/reportgen/internal/interfaces"
	"github.com/finsight/reportgen/internal/models"
	"github.com/finsight/reportgen/internal/scheduler"
	"github.com/finsight/reportgen/internal/services/sections"
)

// TemplateStandard is the section list used when no template is named.
const TemplateStandard = "standard"

// sectionTemplates maps a template name to its ordered section list.
var sectionTemplates = map[string][]sections.SectionType{
	"standard": {
		sections.SectionExecutiveSummary,
		sections.SectionCompanyOverview,
		sections.SectionFinancialAnalysis,
		sections.SectionRiskAssessment,
	},
	"detailed": {
		sections.SectionExecutiveSummary,
		sections.SectionCompanyOverview,
		sections.SectionFinancialAnalysis,
		sections.SectionMarketPosition,
		sections.SectionRiskAssessment,
		sections.SectionInvestmentThesis,
	},
	"investor": {
		sections.SectionExecutiveSummary,
		sections.SectionMarketPosition,
		sections.SectionInvestmentThesis,
	},
}

// SectionsForTemplate returns the ordered section list for a template name.
// Unknown or empty names use the standard template.
func SectionsForTemplate(templateType string) []sections.SectionType {
	if list, ok := sectionTemplates[templateType]; ok {
		return list
	}
	return sectionTemplates[TemplateStandard]
}

// GenerationStatus is the status-poll projection for one report.
type GenerationStatus struct {
	ReportID          string              `json:"report_id"`
	Status            models.ReportStatus `json:"status"`
	Progress          int                 `json:"progress"`
	CompletedSections int                 `json:"completed_sections"`
	Sections          []string            `json:"sections,omitempty"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// Service orchestrates full-report generation.
type Service struct {
	scheduler *scheduler.Scheduler
	generator *sections.Generator
	storage   interfaces.ReportStorage
	logger    arbor.ILogger
}

// NewService creates the report generation orchestrator.
func NewService(sched *scheduler.Scheduler, generator *sections.Generator, storage interfaces.ReportStorage, logger arbor.ILogger) *Service {
	return &Service{
		scheduler: sched,
		generator: generator,
		storage:   storage,
		logger:    logger,
	}
}

// CreateReport persists a new report document in draft state.
func (s *Service) CreateReport(ctx context.Context, userID, companyName, templateType string, companyData map[string]interface{}) (*models.Report, error) {
	if templateType == "" {
		templateType = TemplateStandard
	}
	now := time.Now().UTC()
	report := &models.Report{
		ID:           common.NewReportID(),
		UserID:       userID,
		CompanyName:  companyName,
		TemplateType: templateType,
		Status:       models.ReportStatusDraft,
		CompanyData:  companyData,
		Sections:     []models.Section{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.storage.SaveReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}
	return report, nil
}

// EnqueueFullGeneration marks the report queued and submits one scheduled
// job that generates every section of the report's template in order.
func (s *Service) EnqueueFullGeneration(ctx context.Context, reportID, userID string, companyData map[string]interface{}, templateType string) (string, error) {
	if templateType == "" {
		templateType = TemplateStandard
	}
	sectionList := SectionsForTemplate(templateType)
	jobID := common.NewJobID()

	err := s.storage.UpdateReport(ctx, reportID, func(r *models.Report) error {
		r.Status = models.ReportStatusQueued
		r.TemplateType = templateType
		r.GenerationProgress = 0
		r.GenerationJobID = jobID
		r.GenerationError = ""
		r.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to queue report %s: %w", reportID, err)
	}

	s.scheduler.Enqueue(func(taskCtx context.Context, progress scheduler.ProgressFunc) error {
		return s.runGeneration(taskCtx, reportID, companyData, sectionList, progress)
	}, scheduler.EnqueueOptions{
		JobID:    jobID,
		Metadata: map[string]interface{}{"report_id": reportID, "user_id": userID},
	})

	s.logger.Info().
		Str("report_id", reportID).
		Str("job_id", jobID).
		Str("template", templateType).
		Int("sections", len(sectionList)).
		Msg("Full report generation enqueued")

	return jobID, nil
}

// runGeneration is the scheduled task body. Section-level errors are logged
// and skipped so the report is best-effort complete; anything failing
// outside the section loop marks the report failed and propagates into the
// scheduler's retry path.
func (s *Service) runGeneration(ctx context.Context, reportID string, companyData map[string]interface{}, sectionList []sections.SectionType, progress scheduler.ProgressFunc) error {
	if err := s.markGenerating(ctx, reportID); err != nil {
		return err
	}
	progress(10, nil)

	company, err := NormalizeCompanyData(companyData)
	if err != nil {
		s.markFailed(ctx, reportID, err)
		return fmt.Errorf("company data normalization failed: %w", err)
	}

	total := len(sectionList)
	succeeded := 0
	for i, sectionType := range sectionList {
		generated, genErr := s.generator.Generate(ctx, sectionType, company, "")
		if genErr != nil {
			s.logger.Warn().
				Err(genErr).
				Str("report_id", reportID).
				Str("section_type", string(sectionType)).
				Msg("Section generation failed, continuing with remaining sections")
		} else {
			if persistErr := s.persistSection(ctx, reportID, sectionType, generated); persistErr != nil {
				s.markFailed(ctx, reportID, persistErr)
				return fmt.Errorf("failed to persist section %s: %w", sectionType, persistErr)
			}
			succeeded++
		}

		pct := 10 + (80*(i+1))/total
		if err := s.updateProgress(ctx, reportID, pct); err != nil {
			s.markFailed(ctx, reportID, err)
			return err
		}
		progress(pct, map[string]interface{}{"completed_sections": succeeded})
	}

	err = s.storage.UpdateReport(ctx, reportID, func(r *models.Report) error {
		r.Status = models.ReportStatusCompleted
		r.GenerationProgress = 100
		r.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to mark report %s completed: %w", reportID, err)
	}

	s.logger.Info().
		Str("report_id", reportID).
		Int("sections_succeeded", succeeded).
		Int("sections_total", total).
		Msg("Report generation finished")

	return nil
}

// persistSection writes one generated section onto the report, replacing
// any existing section of the same type.
func (s *Service) persistSection(ctx context.Context, reportID string, sectionType sections.SectionType, generated *sections.GeneratedSection) error {
	return s.storage.UpdateReport(ctx, reportID, func(r *models.Report) error {
		r.UpsertSection(models.Section{
			ID:          common.NewSectionID(),
			Type:        string(sectionType),
			Title:       sectionType.Title(),
			Content:     generated.Content,
			GeneratedAt: generated.GeneratedAt,
			Metadata:    generated.Metadata,
		})
		r.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (s *Service) markGenerating(ctx context.Context, reportID string) error {
	return s.storage.UpdateReport(ctx, reportID, func(r *models.Report) error {
		r.Status = models.ReportStatusGenerating
		r.GenerationProgress = 10
		r.GenerationError = ""
		r.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (s *Service) updateProgress(ctx context.Context, reportID string, pct int) error {
	return s.storage.UpdateReport(ctx, reportID, func(r *models.Report) error {
		r.GenerationProgress = pct
		r.UpdatedAt = time.Now().UTC()
		return nil
	})
}

// markFailed is best effort; the original error still propagates to the
// scheduler.
func (s *Service) markFailed(ctx context.Context, reportID string, cause error) {
	err := s.storage.UpdateReport(ctx, reportID, func(r *models.Report) error {
		r.Status = models.ReportStatusFailed
		r.GenerationError = cause.Error()
		r.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("report_id", reportID).
			Msg("Failed to record report failure")
	}
}

// GetReport returns the full report document.
func (s *Service) GetReport(ctx context.Context, reportID string) (*models.Report, error) {
	return s.storage.GetReport(ctx, reportID)
}

// ListReports returns a user's reports, newest first.
func (s *Service) ListReports(ctx context.Context, userID string, limit int) ([]*models.Report, error) {
	return s.storage.ListReports(ctx, userID, limit)
}

// GetGenerationStatus answers a status poll from the report document, which
// is the user-facing source of truth.
func (s *Service) GetGenerationStatus(ctx context.Context, reportID string) (*GenerationStatus, error) {
	report, err := s.storage.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	return &GenerationStatus{
		ReportID:          report.ID,
		Status:            report.Status,
		Progress:          report.GenerationProgress,
		CompletedSections: len(report.Sections),
		Sections:          report.SectionTypes(),
		UpdatedAt:         report.UpdatedAt,
	}, nil
}

// DeleteReport removes a report document.
func (s *Service) DeleteReport(ctx context.Context, reportID string) error {
	if err := s.storage.DeleteReport(ctx, reportID); err != nil {
		return err
	}
	s.logger.Info().Str("report_id", reportID).Msg("Report deleted")
	return nil
}
