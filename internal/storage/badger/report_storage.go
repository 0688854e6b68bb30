package badger

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/finsight/reportgen/internal/interfaces"
	"github.com/finsight/reportgen/internal/models"
)

// ReportStorage implements the ReportStorage interface for Badger.
type ReportStorage struct {
	db     *BadgerDB
	logger arbor.ILogger

	// updateMu serializes read-modify-write updates so concurrent progress
	// and section writes for the same report are last-write-wins, not lost.
	updateMu sync.Mutex
}

// NewReportStorage creates a new ReportStorage instance
func NewReportStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ReportStorage {
	return &ReportStorage{
		db:     db,
		logger: logger,
	}
}

// GetReport retrieves a report by ID.
func (s *ReportStorage) GetReport(ctx context.Context, id string) (*models.Report, error) {
	var report models.Report
	if err := s.db.Store().Get(id, &report); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &report, nil
}

// SaveReport creates or replaces a report document.
func (s *ReportStorage) SaveReport(ctx context.Context, report *models.Report) error {
	if report.ID == "" {
		return fmt.Errorf("report ID is required")
	}
	if err := s.db.Store().Upsert(report.ID, report); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// UpdateReport applies mutate to the stored document and persists the
// result.
func (s *ReportStorage) UpdateReport(ctx context.Context, id string, mutate func(*models.Report) error) error {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	report, err := s.GetReport(ctx, id)
	if err != nil {
		return err
	}
	if err := mutate(report); err != nil {
		return err
	}
	if err := s.db.Store().Upsert(report.ID, report); err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}
	return nil
}

// ListReports returns a user's reports, newest first.
func (s *ReportStorage) ListReports(ctx context.Context, userID string, limit int) ([]*models.Report, error) {
	query := badgerhold.Where("UserID").Eq(userID).Index("UserID").SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var reports []models.Report
	if err := s.db.Store().Find(&reports, query); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	result := make([]*models.Report, len(reports))
	for i := range reports {
		result[i] = &reports[i]
	}
	return result, nil
}

// DeleteReport removes a report document by ID.
func (s *ReportStorage) DeleteReport(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Report{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return interfaces.ErrReportNotFound
		}
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *ReportStorage) Close() error {
	return s.db.Close()
}
