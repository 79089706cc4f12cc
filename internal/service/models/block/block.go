package block

import (
	"time"

	"github.com/google/uuid"
)

// Block is a block relation between two actors.
type Block struct {
	ID        uuid.UUID
	URI       string
	SourceURI string
	TargetURI string
	CreatedAt time.Time
}

// New creates a block.
func New(uri, sourceURI, targetURI string) Block {
	return Block{
		ID:        uuid.New(),
		URI:       uri,
		SourceURI: sourceURI,
		TargetURI: targetURI,
		CreatedAt: time.Now(),
	}
}
