package workflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/variousplug/vp/platform"
)

// SelectInstance applies the auto-select priority to a provider listing:
// first Running instance, else first instance that is on its way up (Pending
// or Starting, plus Stopped when acceptStopped is set). "First" means first
// in provider list order; there is no cost or performance ranking, because
// reusing an already-rented instance dominates any placement gain.
func SelectInstance(instances []platform.InstanceInfo, acceptStopped bool) *platform.InstanceInfo {
	for i := range instances {
		if instances[i].Status == platform.StatusRunning {
			return &instances[i]
		}
	}
	for i := range instances {
		switch instances[i].Status {
		case platform.StatusPending, platform.StatusStarting:
			return &instances[i]
		case platform.StatusStopped:
			if acceptStopped {
				return &instances[i]
			}
		}
	}
	return nil
}

// ResolveInstance picks the target instance. An explicit id bypasses
// auto-select entirely and is looked up directly, whatever its status. A
// miss is an absent value, not an error; only listing failures propagate.
func ResolveInstance(ctx context.Context, logger *zap.Logger, client platform.Client, explicitID string, acceptStopped bool) (*platform.InstanceInfo, error) {
	if explicitID != "" {
		return client.GetInstance(ctx, explicitID)
	}

	instances, err := client.ListInstances(ctx)
	if err != nil {
		return nil, err
	}

	selected := SelectInstance(instances, acceptStopped)
	if selected != nil {
		logger.Info("Auto-selected instance",
			zap.String("InstanceID", selected.ID),
			zap.String("Status", string(selected.Status)),
		)
	}
	return selected, nil
}
