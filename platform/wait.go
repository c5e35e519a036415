package platform

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PollInterval is the fixed delay between readiness probes.
const PollInterval = 10 * time.Second

// ReadyFunc is the platform-specific readiness hook checked on top of the
// canonical Running status.
type ReadyFunc func(ctx context.Context, instance *InstanceInfo) bool

// PollReady polls GetInstance until the instance reports StatusRunning and
// the platform-specific hook passes, or the timeout elapses. A timeout is a
// false return, not an error; transient get failures just cause another poll.
func PollReady(ctx context.Context, logger *zap.Logger, client Client, id string, timeout, interval time.Duration, ready ReadyFunc) bool {
	deadline := time.Now().Add(timeout)

	for {
		instance, err := client.GetInstance(ctx, id)
		if err == nil && instance != nil && instance.Status == StatusRunning && ready(ctx, instance) {
			logger.Info("Instance is ready",
				zap.String("InstanceID", id),
			)
			return true
		}

		if time.Now().After(deadline) {
			logger.Warn("Instance did not become ready before timeout",
				zap.String("InstanceID", id),
				zap.Duration("Timeout", timeout),
			)
			return false
		}

		logger.Info("Waiting for instance to be ready",
			zap.String("InstanceID", id),
		)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}
	}
}
