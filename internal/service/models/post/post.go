package post

import (
	"time"

	"github.com/google/uuid"
)

// Post is a federated post (Note, Question, Article and friends), keyed by
// its ActivityPub object URI.
type Post struct {
	ID          uuid.UUID
	ObjectURI   string
	AuthorURI   string
	ObjectType  string
	Content     string
	Document    map[string]any
	PublishedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New creates a post record for an object URI.
func New(objectURI, authorURI, objectType string) Post {
	now := time.Now()

	return Post{
		ID:         uuid.New(),
		ObjectURI:  objectURI,
		AuthorURI:  authorURI,
		ObjectType: objectType,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
