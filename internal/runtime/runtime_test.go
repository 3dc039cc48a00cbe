package runtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/airfrog/airfrog/internal/pindrv"
	"github.com/airfrog/airfrog/internal/runtime"
	"github.com/airfrog/airfrog/internal/swd/link"
	"github.com/airfrog/airfrog/internal/target"
	"github.com/stretchr/testify/require"
)

// Requests submitted from multiple goroutines are all served by the link
// task without interleaving.
func TestSubmitSerializesAccess(t *testing.T) {
	sim := pindrv.NewSim(0x2BA01477, 0x24770011)
	l := link.New(sim)
	svc := target.New(l)
	rt := runtime.New(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rt.RunLinkTask(ctx)

	rt.Submit(ctx, func(s *target.Service) {
		_, err := s.ResetTarget()
		require.NoError(t, err)
	})

	const n = 20
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			rt.Submit(ctx, func(s *target.Service) {
				require.NoError(t, s.MemoryWrite(0x20000000+uint32(i*4), uint32(i)))
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for submitted requests")
		}
	}

	for i := 0; i < n; i++ {
		var v uint32
		rt.Submit(ctx, func(s *target.Service) {
			got, err := s.MemoryRead(0x20000000 + uint32(i*4))
			require.NoError(t, err)
			v = got
		})
		require.Equal(t, uint32(i), v)
	}
}
