// Package pindrv exposes the narrow capability interface the link layer
// needs to bit-bang SWCLK/SWDIO. Only this package is permitted to touch
// hardware directly; everything above it talks to the Driver interface.
//
// Backends register themselves under a name in a package-level map
// populated by blank-importing concrete backends, so a board can add its
// real GPIO backend without pindrv importing any board-specific package.
package pindrv

import "fmt"

// Driver is the set of primitives a bit-bang link layer needs. It must
// never suspend mid-transaction: once Transact-adjacent
// calls begin, they run to completion synchronously.
type Driver interface {
	// SetOut drives SWDIO as an output and sets its level.
	SetOut(level bool)
	// SetIn releases SWDIO to be an input (turnaround).
	SetIn()
	// Clock issues one SWCLK pulse (low then high, or high then low,
	// depending on idle polarity -- the driver owns the waveform shape,
	// only the half-period is governed by SetSpeed).
	Clock()
	// Sample reads the current SWDIO level. Only valid while SWDIO is an
	// input.
	Sample() bool
	// SetSpeed configures the target GPIO toggle rate in Hz. Drivers may
	// round to the nearest achievable rate.
	SetSpeed(hz int64) error
}

// ShiftOut clocks out the low n bits of v, LSB-first, setting SWDIO before
// each rising edge.
func ShiftOut(d Driver, v uint32, n int) {
	for i := 0; i < n; i++ {
		bit := (v>>uint(i))&1 != 0
		d.SetOut(bit)
		d.Clock()
	}
}

// ShiftIn clocks in n bits LSB-first, sampling SWDIO just before each
// rising edge.
func ShiftIn(d Driver, n int) uint32 {
	var v uint32
	for i := 0; i < n; i++ {
		if d.Sample() {
			v |= 1 << uint(i)
		}
		d.Clock()
	}
	return v
}

// Turnaround performs the one-clock SWDIO ownership switch mandated by
// /§4.2. It takes no direction: the caller calls SetIn() before it to
// release SWDIO to the target, or SetOut() after it to retake SWDIO as
// host output; Turnaround itself only issues the clock.
func Turnaround(d Driver) {
	d.Clock()
}

// ClockIdle issues n idle clocks while SWDIO is held at the given level,
// or left as an input if level == IdleInput. Used for the ≥8-cycle
// trailing idle and line-reset preambles.
func ClockIdle(d Driver, n int, level IdleLevel) {
	switch level {
	case IdleLow:
		d.SetOut(false)
	case IdleHigh:
		d.SetOut(true)
	case IdleInput:
		d.SetIn()
	}
	for i := 0; i < n; i++ {
		d.Clock()
	}
}

// IdleLevel selects the SWDIO state held during ClockIdle.
type IdleLevel uint8

const (
	IdleLow IdleLevel = iota
	IdleHigh
	IdleInput
)

// Factory constructs a Driver for a board-specific GPIO backend. Boards
// register a Factory under a name in init() via Register, so a board
// package can add itself to the registry without pindrv importing it.
type Factory func() (Driver, error)

var registry = map[string]Factory{}

// Register adds a named Driver factory to the registry. Call from a
// backend package's init().
func Register(name string, f Factory) {
	registry[name] = f
}

// Open constructs the named driver.
func Open(name string) (Driver, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("pindrv: no driver registered under %q", name)
	}
	return f()
}

// Available lists the names of all registered drivers.
func Available() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
