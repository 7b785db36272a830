package interfaces

import (
	"context"

	"github.com/secmon-lab/threatlens/pkg/domain/model"
)

// ThreatNotifier delivers alerts about individual threats to operators
type ThreatNotifier interface {
	NotifyThreat(ctx context.Context, threat *model.Threat) error
}
