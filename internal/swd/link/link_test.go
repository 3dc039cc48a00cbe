package link_test

import (
	"testing"

	"github.com/airfrog/airfrog"
	"github.com/airfrog/airfrog/internal/pindrv"
	"github.com/airfrog/airfrog/internal/swd/link"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario 1: DP IDCODE after V1 reset on an STM32F411 mock.
func TestIDCodeAfterV1Reset(t *testing.T) {
	sim := pindrv.NewSim(0x2BA01477, 0x24770011)
	l := link.New(sim)

	l.ResetV1()
	assert.Equal(t, link.Resetting, l.State())

	data, err := l.Transact(airfrog.Transaction{Port: airfrog.DP, Dir: airfrog.Read, Reg: airfrog.DPIdCode})
	require.NoError(t, err)
	assert.Equal(t, uint32(0x2BA01477), data)
	assert.Equal(t, link.IdCodeRead, l.State())
}

// Reset->IDCODE invariant: any first transaction after a
// reset other than a DP IDCODE read yields FaultAcknowledge.
func TestResetIDCodeInvariant(t *testing.T) {
	sim := pindrv.NewSim(0x2BA01477, 0x24770011)
	l := link.New(sim)

	l.ResetV1()
	_, err := l.Transact(airfrog.Transaction{Port: airfrog.DP, Dir: airfrog.Read, Reg: airfrog.DPCtrlStat})
	require.Error(t, err)
	var swdErr *airfrog.SWDError
	require.ErrorAs(t, err, &swdErr)
	assert.Equal(t, airfrog.ErrFaultAcknowledge, swdErr.Code)
}

// Scenario 6: mock returns WAIT 3 times then OK; the
// transaction completes and the ACK stats advance by 4 total outcomes.
func TestWaitRetry(t *testing.T) {
	sim := pindrv.NewSim(0x2BA01477, 0x24770011)
	l := link.New(sim)

	l.ResetV1()
	_, err := l.Transact(airfrog.Transaction{Port: airfrog.DP, Dir: airfrog.Read, Reg: airfrog.DPIdCode})
	require.NoError(t, err)

	sim.InjectWait(3)
	before := l.Stats().Total()
	data, err := l.Transact(airfrog.Transaction{Port: airfrog.DP, Dir: airfrog.Read, Reg: airfrog.DPCtrlStat})
	require.NoError(t, err)
	_ = data
	after := l.Stats().Total()
	assert.Equal(t, uint64(4), after-before)

	_, wait, _ := sim.AckCounts()
	assert.Equal(t, 3, wait)
}

// WAIT retries exhausted surfaces ErrWaitAcknowledge.
func TestWaitRetryExhausted(t *testing.T) {
	sim := pindrv.NewSim(0x2BA01477, 0x24770011)
	l := link.New(sim)

	l.ResetV1()
	_, err := l.Transact(airfrog.Transaction{Port: airfrog.DP, Dir: airfrog.Read, Reg: airfrog.DPIdCode})
	require.NoError(t, err)

	sim.InjectWait(link.DefaultRetryLimit + 1)
	_, err = l.Transact(airfrog.Transaction{Port: airfrog.DP, Dir: airfrog.Read, Reg: airfrog.DPCtrlStat})
	require.Error(t, err)
	var swdErr *airfrog.SWDError
	require.ErrorAs(t, err, &swdErr)
	assert.Equal(t, airfrog.ErrWaitAcknowledge, swdErr.Code)
}
