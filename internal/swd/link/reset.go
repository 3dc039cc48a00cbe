package link

import (
	"github.com/airfrog/airfrog"
	"github.com/airfrog/airfrog/internal/pindrv"
)

// ResetV1 drives the classic JTAG-to-SWD line reset:
// >=50 cycles high, the 16-bit selection sequence 0xE79E LSB-first,
// >=50 cycles high, then >=2 cycles low. The very next transaction must
// be a DP IDCODE read; the target enforces that invariant, not the link
// layer.
func (l *Link) ResetV1() {
	pindrv.ClockIdle(l.drv, 50, pindrv.IdleHigh)
	pindrv.ShiftOut(l.drv, 0xE79E, 16)
	pindrv.ClockIdle(l.drv, 50, pindrv.IdleHigh)
	pindrv.ClockIdle(l.drv, 2, pindrv.IdleLow)
	l.state = Resetting
}

// ResetV2 drives the SWD-v2 dormant-exit sequence: JTAG
// to dormant, the 128-bit selection alert, the 8-bit SWD activation
// code, then falls through to a standard V1 reset.
func (l *Link) ResetV2() {
	pindrv.ClockIdle(l.drv, 50, pindrv.IdleHigh)
	pindrv.ShiftOut(l.drv, 0x33BBBBBA, 31)
	pindrv.ClockIdle(l.drv, 8, pindrv.IdleHigh)
	pindrv.ShiftOut(l.drv, 0x6209F392, 32)
	pindrv.ShiftOut(l.drv, 0x86852D95, 32)
	pindrv.ShiftOut(l.drv, 0xE3DDAFE9, 32)
	pindrv.ShiftOut(l.drv, 0x19BC0EA2, 32)
	pindrv.ClockIdle(l.drv, 4, pindrv.IdleLow)
	pindrv.ShiftOut(l.drv, 0x1A, 8)
	l.ResetV1()
}

// ToDormant drives the SWD-to-dormant sequence: >=50 cycles high, then
// the 16-bit sequence 0xE3BC. Neither Reset nor ResetV2 issues it.
func (l *Link) ToDormant() {
	pindrv.ClockIdle(l.drv, 50, pindrv.IdleHigh)
	pindrv.ShiftOut(l.drv, 0xE3BC, 16)
}

// Reset runs the named reset preamble and returns the link to the
// Resetting state, awaiting the mandatory first DP IDCODE read.
func (l *Link) Reset(kind airfrog.ResetKind) {
	if kind == airfrog.ResetV2 {
		l.ResetV2()
		return
	}
	l.ResetV1()
}
