package federationsvc

import (
	"context"
	"fmt"

	"github.com/osmaa/takahe/internal/events"
	"github.com/osmaa/takahe/internal/federation"
	"github.com/osmaa/takahe/internal/service/models/report"
)

// ReportHandler is the flag-activity view of the service.
type ReportHandler struct {
	s *FederationService
}

// Reports returns the report handler.
func (s *FederationService) Reports() *ReportHandler {
	return &ReportHandler{s: s}
}

// Handle files an incoming report. Flags commonly list several subjects;
// the first resolvable one is recorded.
func (h *ReportHandler) Handle(ctx context.Context, payload map[string]any) error {
	actor, err := actorString(payload)
	if err != nil {
		return err
	}

	subject := firstString(payload["object"])
	if subject == "" {
		return fmt.Errorf("%w: flag names no subject", federation.ErrFormat)
	}

	complaint, _ := payload["content"].(string)

	if err := h.s.reportRepo.Insert(ctx, report.New(actor, subject, complaint)); err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}

	h.s.publisher.Publish(ctx, events.KindReportFiled, actor, subject)

	return nil
}
