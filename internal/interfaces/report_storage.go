package interfaces

import (
	"context"
	"errors"

	"github.com/finsight/reportgen/internal/models"
)

// ErrReportNotFound is returned when a report ID does not exist.
var ErrReportNotFound = errors.New("report not found")

// ReportStorage persists report documents. The generation pipeline never
// opens its own persistence connection; it reads and writes through this
// collaborator only.
type ReportStorage interface {
	// GetReport returns the report or ErrReportNotFound.
	GetReport(ctx context.Context, id string) (*models.Report, error)

	// SaveReport creates or replaces a report document.
	SaveReport(ctx context.Context, report *models.Report) error

	// UpdateReport applies mutate to the current document and persists the
	// result (read-modify-write, last-write-wins). Returns ErrReportNotFound
	// when the report does not exist.
	UpdateReport(ctx context.Context, id string, mutate func(*models.Report) error) error

	// ListReports returns reports for a user, newest first.
	ListReports(ctx context.Context, userID string, limit int) ([]*models.Report, error)

	// DeleteReport removes a report document. Returns ErrReportNotFound
	// when the report does not exist.
	DeleteReport(ctx context.Context, id string) error

	Close() error
}
