package session_test

import (
	"testing"

	"github.com/airfrog/airfrog"
	"github.com/airfrog/airfrog/internal/pindrv"
	"github.com/airfrog/airfrog/internal/swd/link"
	"github.com/airfrog/airfrog/internal/swd/session"
	"github.com/stretchr/testify/require"
)

func connected(t *testing.T) (*pindrv.Sim, *session.Session) {
	t.Helper()
	sim := pindrv.NewSim(0x2BA01477, 0x24770011)
	l := link.New(sim)
	s := session.New(l)
	_, err := s.Connect(l.Reset, airfrog.ResetV1)
	require.NoError(t, err)
	return sim, s
}

// Round-trip property: a written word reads back unchanged.
func TestMemoryWordRoundTrip(t *testing.T) {
	_, s := connected(t)

	require.NoError(t, s.WriteMemoryWord(0x20000000, 0xCAFEBABE))
	v, err := s.ReadMemoryWord(0x20000000)
	require.NoError(t, err)
	require.Equal(t, uint32(0xCAFEBABE), v)
}

// Scenario 3: bulk read of 4 words returns exactly 4 values
// in address order, with the RDBUFF pipeline tail applied transparently.
func TestMemoryBulkRead(t *testing.T) {
	sim, s := connected(t)
	sim.PokeMemory(0x20000000, 0x11111111)
	sim.PokeMemory(0x20000004, 0x22222222)
	sim.PokeMemory(0x20000008, 0x33333333)
	sim.PokeMemory(0x2000000C, 0x44444444)

	words, err := s.ReadMemoryBulk(0x20000000, 4)
	require.NoError(t, err)
	require.Equal(t, []uint32{0x11111111, 0x22222222, 0x33333333, 0x44444444}, words)
}

// Auto-increment page-boundary property: a bulk read
// spanning a 1 KiB page still returns every word in order.
func TestMemoryBulkReadCrossesPage(t *testing.T) {
	sim, s := connected(t)
	base := uint32(0x200003F0) // 16 bytes before the 0x400 boundary
	for i := 0; i < 8; i++ {
		sim.PokeMemory(base+uint32(i*4), uint32(i+1))
	}

	words, err := s.ReadMemoryBulk(base, 8)
	require.NoError(t, err)
	for i, w := range words {
		require.Equal(t, uint32(i+1), w, "word %d", i)
	}
}

// Bulk write property: writing n words then reading them back individually
// returns what was written.
func TestMemoryBulkWrite(t *testing.T) {
	_, s := connected(t)
	in := []uint32{0xA, 0xB, 0xC, 0xD}
	require.NoError(t, s.WriteMemoryBulk(0x20001000, in))

	for i, want := range in {
		got, err := s.ReadMemoryWord(0x20001000 + uint32(i*4))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

// Error-clear idempotence property: clearing errors twice in
// a row is harmless.
func TestClearErrorsIdempotent(t *testing.T) {
	_, s := connected(t)
	require.NoError(t, s.ClearErrors())
	require.NoError(t, s.ClearErrors())
	errs, err := s.ReadErrors()
	require.NoError(t, err)
	require.False(t, errs.Any())
}

// Scenario 5: a FAULT on a specific address recovers via
// ABORT+CTRL/STAT, after which a fresh memory_read succeeds.
func TestFaultRecovery(t *testing.T) {
	sim, s := connected(t)
	sim.InjectFaultOnAddress(0x20002000)
	sim.PokeMemory(0x20002000, 0x1)
	sim.PokeMemory(0x20002004, 0x2)

	_, err := s.ReadMemoryWord(0x20002000)
	require.Error(t, err)
	err = s.Do(err)
	var swdErr *airfrog.SWDError
	require.ErrorAs(t, err, &swdErr)
	require.Equal(t, airfrog.ErrFaultAcknowledge, swdErr.Code)

	v, err := s.ReadMemoryWord(0x20002004)
	require.NoError(t, err)
	require.Equal(t, uint32(0x2), v)
}

// Scenario 4: program a single word into erased flash.
func TestFlashProgramWord(t *testing.T) {
	_, s := connected(t)
	require.NoError(t, s.FlashProgramWord(0x08000000, 0xDEADBEEF))

	v, err := s.ReadMemoryWord(0x08000000)
	require.NoError(t, err)
	require.Equal(t, uint32(0xDEADBEEF), v)
}

// Programming into a non-erased destination fails without touching flash.
func TestFlashProgramWordRequiresErased(t *testing.T) {
	sim, s := connected(t)
	sim.PokeMemory(0x08000000, 0x00000000)

	err := s.FlashProgramWord(0x08000000, 0xDEADBEEF)
	require.Error(t, err)
}

// MCU identification resolves known STM32F4 parts via DBGMCU_IDCODE.
func TestConnectIdentifiesSTM32F411(t *testing.T) {
	sim := pindrv.NewSim(0x2BA01477, 0x24770011)
	sim.PokeMemory(0xE0042000, 0x00000431)
	l := link.New(sim)
	s := session.New(l)

	desc, err := s.Connect(l.Reset, airfrog.ResetV1)
	require.NoError(t, err)
	require.Equal(t, airfrog.FamilySTM32F4, desc.MCUFamily)
	require.Equal(t, "STM32F411", desc.MCULine)
}
