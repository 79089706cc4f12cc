package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/osmaa/takahe/internal/dal/postgres"
	"github.com/osmaa/takahe/internal/service/models/report"
)

// ReportRepository implements report storage for PostgreSQL.
type ReportRepository struct {
	client *postgres.Client
}

// NewReportRepository creates a new report repository.
func NewReportRepository(client *postgres.Client) *ReportRepository {
	return &ReportRepository{
		client: client,
	}
}

// Insert stores a new report.
func (r *ReportRepository) Insert(ctx context.Context, model report.Report) error {
	query, args, err := sq.Insert("reports").
		Columns("id", "actor_uri", "subject_uri", "complaint", "created_at").
		Values(model.ID, model.ActorURI, model.SubjectURI, model.Complaint, model.CreatedAt).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	_, err = r.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	return nil
}
