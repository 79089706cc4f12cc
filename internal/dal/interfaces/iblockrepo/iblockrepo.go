package iblockrepo

import (
	"context"

	"github.com/osmaa/takahe/internal/service/models/block"
)

// IBlockRepository defines storage for block relations.
type IBlockRepository interface {
	// Upsert inserts the block or refreshes the existing source/target row
	Upsert(ctx context.Context, model block.Block) error

	// Delete removes the source/target block
	Delete(ctx context.Context, sourceURI, targetURI string) error
}
