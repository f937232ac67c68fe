package probe

import (
	"context"
	"time"
)

// NewSimulatedProbe returns a probe that answers every endpoint successfully
// after delay. It stands in for the real providers when no endpoints are configured.
func NewSimulatedProbe(delay time.Duration) Probe {
	return FuncProbe(func(ctx context.Context, endpoint string, _ map[string]any) (Response, error) {
		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}
		return Response{
			Success: true,
			Data:    map[string]any{"endpoint": endpoint, "simulated": true},
		}, nil
	})
}
