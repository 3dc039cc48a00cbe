package runtime

import (
	"context"
	"time"

	"github.com/airfrog/airfrog/internal/target"
)

// KeepaliveInterval is the ~1 Hz cadence of the keepalive task.
const KeepaliveInterval = time.Second

// RunKeepaliveTask periodically enqueues a lightweight IDCODE read while
// idle: a ticker driving a single idempotent tick method.
func (r *Runtime) RunKeepaliveTask(ctx context.Context) {
	ticker := time.NewTicker(KeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Submit(ctx, (*target.Service).Keepalive)
		case <-ctx.Done():
			return
		}
	}
}
