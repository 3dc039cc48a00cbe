package runtime

import (
	"context"
	"time"

	"github.com/airfrog/airfrog/internal/target"
)

// AutoConnectInterval is how often the auto-connect task retries
// connect(V1) while disconnected
const AutoConnectInterval = 2 * time.Second

// RunAutoConnectTask periodically attempts connect(V1) while the target
// is disconnected and auto_connect is enabled.
func (r *Runtime) RunAutoConnectTask(ctx context.Context) {
	ticker := time.NewTicker(AutoConnectInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Submit(ctx, (*target.Service).AutoConnectTick)
		case <-ctx.Done():
			return
		}
	}
}
