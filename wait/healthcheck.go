package wait

import (
	"context"
	"time"
)

// healthcheckPollInterval is the fixed cadence the daemon's health status
// is polled at.
const healthcheckPollInterval = 100 * time.Millisecond

// Healthcheck waits for the daemon's own HEALTHCHECK to report "healthy".
// It fails immediately on "unhealthy" (no point continuing to poll a
// verdict that will not self-correct) and on a container that declares no
// healthcheck at all.
type Healthcheck struct {
	base
}

func (Healthcheck) WaitUntilReady(ctx context.Context, client DaemonClient, target Target) error {
	ticker := time.NewTicker(healthcheckPollInterval)
	defer ticker.Stop()

	for {
		state, err := client.Inspect(ctx, target.ContainerID)
		if err != nil {
			return err
		}

		switch state.Health {
		case HealthHealthy:
			return nil
		case HealthUnhealthy:
			return ErrUnhealthy
		case HealthNone, "":
			return ErrHealthCheckNotConfigured
		case HealthStarting:
			// keep polling
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
