package ireportrepo

import (
	"context"

	"github.com/osmaa/takahe/internal/service/models/report"
)

// IReportRepository defines storage for incoming federation reports.
type IReportRepository interface {
	// Insert stores a new report
	Insert(ctx context.Context, model report.Report) error
}
