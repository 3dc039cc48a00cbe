package target_test

import (
	"testing"

	"github.com/airfrog/airfrog"
	"github.com/airfrog/airfrog/internal/pindrv"
	"github.com/airfrog/airfrog/internal/swd/link"
	"github.com/airfrog/airfrog/internal/target"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*pindrv.Sim, *target.Service) {
	t.Helper()
	sim := pindrv.NewSim(0x2BA01477, 0x24770011)
	l := link.New(sim)
	return sim, target.New(l)
}

func TestStatusBeforeConnect(t *testing.T) {
	_, svc := newService(t)
	st := svc.Status()
	require.False(t, st.Connected)
}

func TestResetTargetThenMemoryAccess(t *testing.T) {
	sim, svc := newService(t)
	desc, err := svc.ResetTarget()
	require.NoError(t, err)
	require.Equal(t, uint32(0x2BA01477), desc.IDCode)

	require.NoError(t, svc.MemoryWrite(0x20000000, 0x1234))
	v, err := svc.MemoryRead(0x20000000)
	require.NoError(t, err)
	require.Equal(t, uint32(0x1234), v)

	_ = sim
}

func TestMemoryReadRequiresAlignment(t *testing.T) {
	_, svc := newService(t)
	_, err := svc.MemoryRead(0x20000001)
	require.Error(t, err)
	var apiErr *airfrog.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, airfrog.ErrAlignment, apiErr.Code)
}

func TestMemoryReadRequiresConnection(t *testing.T) {
	_, svc := newService(t)
	_, err := svc.MemoryRead(0x20000000)
	require.Error(t, err)
	var apiErr *airfrog.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, airfrog.ErrNotConnected, apiErr.Code)
}

func TestMemoryBulkTooLarge(t *testing.T) {
	_, svc := newService(t)
	_, err := svc.ResetTarget()
	require.NoError(t, err)

	_, err = svc.MemoryReadBulk(0x20000000, target.BinaryBulkLimit+1, target.BinaryBulkLimit)
	require.Error(t, err)
	var apiErr *airfrog.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, airfrog.ErrTooLarge, apiErr.Code)
}

func TestFlashProgramWordViaService(t *testing.T) {
	_, svc := newService(t)
	_, err := svc.ResetTarget()
	require.NoError(t, err)

	require.NoError(t, svc.FlashProgramWord(0x08000000, 0xDEADBEEF))
	v, err := svc.MemoryRead(0x08000000)
	require.NoError(t, err)
	require.Equal(t, uint32(0xDEADBEEF), v)
}

func TestKeepaliveNoopWhenDisconnected(t *testing.T) {
	_, svc := newService(t)
	svc.Keepalive() // must not panic when not connected
}
