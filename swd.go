// Package airfrog implements the core of the airfrog wireless SWD debug
// probe: the bit-bang link layer, the DP/AP session layer, the binary wire
// protocol and the cooperative runtime that ties them to the network
// surfaces.
package airfrog

import "math/bits"

// Port identifies which half of the SWD register space a Transaction
// targets.
type Port uint8

const (
	DP Port = iota
	AP
)

func (p Port) String() string {
	if p == AP {
		return "AP"
	}
	return "DP"
}

// Direction is the read/write sense of a Transaction.
type Direction uint8

const (
	Read Direction = iota
	Write
)

func (d Direction) String() string {
	if d == Write {
		return "write"
	}
	return "read"
}

// Transaction is an immutable descriptor of a single SWD operation.
type Transaction struct {
	Port Port
	Dir  Direction
	// Reg is the 4-byte aligned register address, 0x00-0xFC. Only bits
	// [2:3] (A2, A3) are transmitted on the wire; the high nibble is used
	// by the session layer to select the AP bank via SELECT.
	Reg  uint8
	Data uint32 // meaningful for Dir == Write
}

// OpByte assembles the 8-bit SWD operation byte for the transaction:
// bit0=1 start, bit1=APnDP, bit2=RnW, bits3-4=A[2:3],
// bit5=parity, bit6=0 stop, bit7=1 park. All fields are transmitted
// LSB-first.
func (t Transaction) OpByte() byte {
	apndp := byte(t.Port) & 1
	rnw := byte(0)
	if t.Dir == Read {
		rnw = 1
	}
	a2 := (t.Reg >> 2) & 1
	a3 := (t.Reg >> 3) & 1
	parity := ParityBit(apndp, rnw, a2, a3)
	var b byte
	b |= 1 << 0
	b |= apndp << 1
	b |= rnw << 2
	b |= a2 << 3
	b |= a3 << 4
	b |= parity << 5
	b |= 1 << 7
	return b
}

// ParityBit returns the even-parity bit over the four given 0/1 values:
// it is 1 exactly when an odd number of the inputs are 1, making the
// total population count (inputs + parity bit) even.
func ParityBit(bits4 ...byte) byte {
	var ones int
	for _, b := range bits4 {
		ones += int(b & 1)
	}
	return byte(ones & 1)
}

// EvenParity32 returns the even-parity bit for a 32-bit data word, used
// to verify/compute the trailing parity bit of a data phase.
func EvenParity32(v uint32) byte {
	return byte(bits.OnesCount32(v) & 1)
}

// Ack is the three-valued (plus Protocol) outcome of a single SWD
// transaction
type Ack uint8

const (
	AckOK Ack = iota
	AckWait
	AckFault
	AckProtocol
)

func (a Ack) String() string {
	switch a {
	case AckOK:
		return "OK"
	case AckWait:
		return "WAIT"
	case AckFault:
		return "FAULT"
	default:
		return "PROTOCOL"
	}
}

// DecodeAck maps the 3 raw ACK bits (LSB-first on the wire, passed here
// already assembled into a value in 0..7) to an Ack outcome.
func DecodeAck(raw byte) Ack {
	switch raw & 0x7 {
	case 0b001: // 100 LSB-first == bit0=1
		return AckOK
	case 0b010:
		return AckWait
	case 0b100:
		return AckFault
	default:
		return AckProtocol
	}
}

// AckStats accumulates transaction outcome counters, surfaced by the
// status endpoint and exercised by the WAIT-retry test scenarios.
type AckStats struct {
	OK       uint64
	Wait     uint64
	Fault    uint64
	Protocol uint64
}

// Total returns the number of recorded transaction outcomes.
func (s AckStats) Total() uint64 {
	return s.OK + s.Wait + s.Fault + s.Protocol
}

// Record tallies one transaction outcome.
func (s *AckStats) Record(a Ack) {
	switch a {
	case AckOK:
		s.OK++
	case AckWait:
		s.Wait++
	case AckFault:
		s.Fault++
	default:
		s.Protocol++
	}
}

// Well-known DP register addresses.
const (
	DPIdCode    uint8 = 0x00 // read
	DPAbort     uint8 = 0x00 // write
	DPCtrlStat  uint8 = 0x04
	DPSelect    uint8 = 0x08
	DPRdBuff    uint8 = 0x0C
	DPTargetSel uint8 = 0x0C // write, multi-drop only
)

// Well-known MEM-AP register addresses (bank 0).
const (
	APCSW uint8 = 0x00
	APTAR uint8 = 0x04
	APDRW uint8 = 0x0C
	APIDR uint8 = 0xFC
)

// ABORT register bits (DP write, register 0x00)
const (
	AbortStkErrClr  uint32 = 1 << 2
	AbortWDErrClr   uint32 = 1 << 3
	AbortOrunErrClr uint32 = 1 << 4
	AbortStkCmpClr  uint32 = 1 << 1
	AbortClearAll   uint32 = AbortStkCmpClr | AbortStkErrClr | AbortWDErrClr | AbortOrunErrClr // 0x1E
)

// CTRL/STAT bits (DP register 0x04) relevant to error decode and power-up
// sequencing
const (
	CtrlStatSTKERR       uint32 = 1 << 5
	CtrlStatSTKCMP       uint32 = 1 << 4
	CtrlStatWDERR        uint32 = 1 << 7
	CtrlStatORUNERR      uint32 = 1 << 6
	CtrlStatREADOK       uint32 = 1 << 6 // only meaningful in SWD mode on read
	CtrlStatCSYSPWRUPACK uint32 = 1 << 31
	CtrlStatCSYSPWRUPREQ uint32 = 1 << 30
	CtrlStatCDBGPWRUPACK uint32 = 1 << 29
	CtrlStatCDBGPWRUPREQ uint32 = 1 << 28
)

// ErrorSummary decodes the sticky-error bits of DP CTRL/STAT after a
// FAULT.
type ErrorSummary struct {
	STKERR  bool
	STKCMP  bool
	WDERR   bool
	ORUNERR bool
	ReadOK  bool
}

// DecodeErrorSummary extracts the sticky bits from a CTRL/STAT image.
func DecodeErrorSummary(ctrlStat uint32) ErrorSummary {
	return ErrorSummary{
		STKERR:  ctrlStat&CtrlStatSTKERR != 0,
		STKCMP:  ctrlStat&CtrlStatSTKCMP != 0,
		WDERR:   ctrlStat&CtrlStatWDERR != 0,
		ORUNERR: ctrlStat&CtrlStatORUNERR != 0,
		ReadOK:  ctrlStat&CtrlStatREADOK != 0,
	}
}

// Any reports whether any sticky error bit is set.
func (e ErrorSummary) Any() bool {
	return e.STKERR || e.STKCMP || e.WDERR || e.ORUNERR
}

// Speed is the SWD clock speed setting Runtime Config.
type Speed uint8

const (
	SpeedTurbo Speed = iota
	SpeedFast
	SpeedMedium
	SpeedSlow
)

// Hz returns the approximate target GPIO toggle rate for the speed.
func (s Speed) Hz() int64 {
	switch s {
	case SpeedTurbo:
		return 4_000_000
	case SpeedFast:
		return 2_000_000
	case SpeedMedium:
		return 1_000_000
	default:
		return 500_000
	}
}

func (s Speed) String() string {
	switch s {
	case SpeedTurbo:
		return "turbo"
	case SpeedFast:
		return "fast"
	case SpeedMedium:
		return "medium"
	default:
		return "slow"
	}
}

// ResetKind selects which line-reset preamble Connect uses.
type ResetKind uint8

const (
	ResetV1 ResetKind = iota
	ResetV2
)

// MCUFamily identifies the target family well enough to select a flash
// programming algorithm.
type MCUFamily uint8

const (
	FamilyUnknown MCUFamily = iota
	FamilySTM32F4
)

func (f MCUFamily) String() string {
	if f == FamilySTM32F4 {
		return "STM32F4"
	}
	return "unknown"
}

// TargetDescriptor is the read-only view assembled at connect time.
type TargetDescriptor struct {
	IDCode      uint32
	MCUFamily   MCUFamily
	MCULine     string
	DeviceID    uint16
	Revision    uint16
	FlashSizeKB uint16
	UniqueID    [12]byte
	MemAPIDR    uint32
}

// Level is a driven or sampled GPIO level, also used by the raw clock
// primitive where a third value, Input,
// means "release the line".
type Level uint8

const (
	Low Level = iota
	High
	Input
)
