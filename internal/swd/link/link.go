// Package link implements the SWD bit-bang transaction layer:
// operation-byte assembly, turnaround, ACK decode, the WAIT retry
// policy, and the V1/V2/dormant reset preambles. It is the only package
// above pindrv that knows about SWD wire timing; everything above here
// talks in typed DP/AP operations.
//
// A state-tagged link with a bounded retry loop around a single
// blocking exchange, logging each transition.
package link

import (
	"github.com/airfrog/airfrog"
	"github.com/airfrog/airfrog/internal/pindrv"
	log "github.com/sirupsen/logrus"
)

// State is the per-connection state machine.
type State uint8

const (
	Disconnected State = iota
	Resetting
	IdCodeRead
	Connected
	Faulted
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Resetting:
		return "resetting"
	case IdCodeRead:
		return "idcode_read"
	case Connected:
		return "connected"
	default:
		return "faulted"
	}
}

const (
	// DefaultRetryLimit is the maximum number of attempts (the initial
	// try plus retries) issued for a transaction answering WAIT.
	DefaultRetryLimit = 8
	// DefaultIdleCycles is the number of trailing low-idle clocks issued
	// after a transaction that isn't immediately followed by another
	// pipelined one.
	DefaultIdleCycles = 8
)

// Link drives one Pin Driver through the SWD bit-bang protocol. It is
// meant to be owned exclusively by a single task; it has no internal locking.
type Link struct {
	drv        pindrv.Driver
	state      State
	stats      airfrog.AckStats
	retryLimit int
}

// New wraps drv in a Link, starting in the Disconnected state.
func New(drv pindrv.Driver) *Link {
	return &Link{drv: drv, state: Disconnected, retryLimit: DefaultRetryLimit}
}

// State reports the current connection state.
func (l *Link) State() State { return l.state }

// Stats returns the accumulated ACK outcome counters.
func (l *Link) Stats() airfrog.AckStats { return l.stats }

// MarkConnected is called by the session layer once connect() has
// finished power-up sequencing and MCU identification.
func (l *Link) MarkConnected() { l.state = Connected }

// MarkDisconnected forces the link back to Disconnected, used by
// raw_reset() and explicit disconnect.
func (l *Link) MarkDisconnected() { l.state = Disconnected }

// SetSpeed reconfigures the Pin Driver's toggle rate.
func (l *Link) SetSpeed(speed airfrog.Speed) error {
	return l.drv.SetSpeed(speed.Hz())
}

// Transact executes t, retrying on WAIT up to the retry limit, and
// clocks the standard trailing idle before returning.
func (l *Link) Transact(t airfrog.Transaction) (uint32, error) {
	return l.transact(t, true)
}

// TransactPipelined executes t without a trailing idle, for callers (the
// session layer's multi_write) that will issue another transaction
// immediately afterward.
func (l *Link) TransactPipelined(t airfrog.Transaction) (uint32, error) {
	return l.transact(t, false)
}

func (l *Link) transact(t airfrog.Transaction, idle bool) (uint32, error) {
	var lastWaitErr error
	for attempt := 0; attempt < l.retryLimit; attempt++ {
		data, ack, raw, err := l.transactOnce(t)
		l.stats.Record(ack)
		if err != nil {
			return 0, err
		}
		switch ack {
		case airfrog.AckOK:
			if idle {
				l.idleAfter()
			}
			if l.state == Resetting {
				l.state = IdCodeRead
			}
			return data, nil
		case airfrog.AckWait:
			lastWaitErr = airfrog.NewSWDError(airfrog.ErrWaitAcknowledge, nil)
			log.Debugf("[LINK] WAIT on %s %s reg=0x%02x, attempt %d", t.Port, t.Dir, t.Reg, attempt+1)
			continue
		case airfrog.AckFault:
			l.markFaulted()
			if idle {
				l.idleAfter()
			}
			log.Warnf("[LINK] FAULT on %s %s reg=0x%02x", t.Port, t.Dir, t.Reg)
			return 0, airfrog.NewSWDError(airfrog.ErrFaultAcknowledge, nil)
		default:
			l.markFaulted()
			if idle {
				l.idleAfter()
			}
			log.Warnf("[LINK] protocol error, raw ack bits=0x%x", raw)
			return 0, airfrog.NewSWDError(airfrog.ErrBadAcknowledge, airfrog.BadAckDetail{RawBits: raw})
		}
	}
	if idle {
		l.idleAfter()
	}
	return 0, lastWaitErr
}

func (l *Link) markFaulted() {
	if l.state == Connected || l.state == Resetting || l.state == IdCodeRead {
		l.state = Faulted
	}
}

// transactOnce runs exactly one wire exchange, no retry.
func (l *Link) transactOnce(t airfrog.Transaction) (data uint32, ack airfrog.Ack, raw byte, err error) {
	op := t.OpByte()
	pindrv.ShiftOut(l.drv, uint32(op), 8)

	l.drv.SetIn()
	pindrv.Turnaround(l.drv)

	ackBits := pindrv.ShiftIn(l.drv, 3)
	raw = byte(ackBits)
	ack = airfrog.DecodeAck(raw)

	if ack != airfrog.AckOK {
		pindrv.Turnaround(l.drv)
		l.drv.SetOut(false)
		return 0, ack, raw, nil
	}

	if t.Dir == airfrog.Read {
		data = pindrv.ShiftIn(l.drv, 32)
		parity := pindrv.ShiftIn(l.drv, 1)
		pindrv.Turnaround(l.drv)
		l.drv.SetOut(false)
		if byte(parity) != airfrog.EvenParity32(data) {
			return 0, ack, raw, airfrog.NewSWDError(airfrog.ErrReadParityError, nil)
		}
		return data, ack, raw, nil
	}

	// Write + OK.
	pindrv.Turnaround(l.drv)
	pindrv.ShiftOut(l.drv, t.Data, 32)
	pindrv.ShiftOut(l.drv, uint32(airfrog.EvenParity32(t.Data)), 1)
	return t.Data, ack, raw, nil
}

func (l *Link) idleAfter() {
	pindrv.ClockIdle(l.drv, DefaultIdleCycles, pindrv.IdleLow)
}

// RawClock drives SWDIO to level for cycles clocks, then optionally to
// post for one further settle clock, exposing the wire protocol's raw
// clock primitive. level/post of Input release SWDIO instead of driving
// it.
func (l *Link) RawClock(level, post airfrog.Level, cycles int) {
	pindrv.ClockIdle(l.drv, cycles, toIdleLevel(level))
	if post != level {
		pindrv.ClockIdle(l.drv, 1, toIdleLevel(post))
	}
}

func toIdleLevel(level airfrog.Level) pindrv.IdleLevel {
	switch level {
	case airfrog.High:
		return pindrv.IdleHigh
	case airfrog.Input:
		return pindrv.IdleInput
	default:
		return pindrv.IdleLow
	}
}
