package report

import (
	"time"

	"github.com/google/uuid"
)

// Report is an incoming federation report (a Flag activity) against a local
// identity or post.
type Report struct {
	ID         uuid.UUID
	ActorURI   string
	SubjectURI string
	Complaint  string
	CreatedAt  time.Time
}

// New creates a report.
func New(actorURI, subjectURI, complaint string) Report {
	return Report{
		ID:         uuid.New(),
		ActorURI:   actorURI,
		SubjectURI: subjectURI,
		Complaint:  complaint,
		CreatedAt:  time.Now(),
	}
}
