package interfaces

import (
	"context"

	"github.com/secmon-lab/threatlens/pkg/domain/model"
)

// FeedRepository stores the rolling live threat feed. Only the newest
// entries up to the repository capacity are retained.
type FeedRepository interface {
	// PushThreats adds threats to the head of the feed. threats[0] becomes the
	// newest entry.
	PushThreats(ctx context.Context, threats ...*model.Threat) error

	// ReplaceThreats discards the current feed and stores threats in its place
	ReplaceThreats(ctx context.Context, threats []*model.Threat) error

	// ListThreats returns up to limit threats, newest first. limit <= 0 returns all.
	ListThreats(ctx context.Context, limit int) ([]*model.Threat, error)

	// Close closes the repository connection
	Close() error
}
