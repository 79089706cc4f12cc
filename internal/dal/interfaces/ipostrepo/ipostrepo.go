package ipostrepo

import (
	"context"

	"github.com/osmaa/takahe/internal/service/models/post"
)

// IPostRepository defines storage for federated posts.
type IPostRepository interface {
	// Upsert inserts the post or updates the existing row for its object URI
	Upsert(ctx context.Context, model post.Post) error

	// GetByObjectURI returns the post for an object URI, or nil
	GetByObjectURI(ctx context.Context, objectURI string) (*post.Post, error)

	// ExistsByObjectURI reports whether a post row exists for the URI
	ExistsByObjectURI(ctx context.Context, objectURI string) (bool, error)

	// DeleteByObjectURI removes the post for an object URI
	DeleteByObjectURI(ctx context.Context, objectURI string) error
}
