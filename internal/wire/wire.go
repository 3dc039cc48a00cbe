// Package wire implements the binary wire protocol: a fixed-framing,
// little-endian TCP protocol on port 4146 that exposes the Target
// Service's raw DP/AP register, reset, clock and speed operations to a
// single connected client per socket.
//
// The command dispatch is a byte-keyed switch rather than a string-keyed
// route table, since the wire format fixes one command per byte value
// up front.
package wire

// Command codes.
const (
	CmdDPRead       byte = 0x00
	CmdDPWrite      byte = 0x01
	CmdAPRead       byte = 0x02
	CmdAPWrite      byte = 0x03
	CmdAPBulkRead   byte = 0x12
	CmdAPBulkWrite  byte = 0x13
	CmdMultiWrite   byte = 0x14
	CmdPing         byte = 0xF0
	CmdResetTarget  byte = 0xF1
	CmdClock        byte = 0xF2
	CmdSetSpeed     byte = 0xF3
	CmdDisconnect   byte = 0xFF
)

// Response status codes
const (
	StatusOK                byte = 0x00
	statusErrorBit          byte = 0x80
	ErrInvalidCommand       byte = statusErrorBit | 0x01
	ErrRegisterOrSWD        byte = statusErrorBit | 0x02
	ErrTimeout              byte = statusErrorBit | 0x03
	ErrConnection           byte = statusErrorBit | 0x04
	ErrInvalidParameter     byte = statusErrorBit | 0x05
)

// ProtocolVersion is the single byte exchanged during the connection
// handshake.
const ProtocolVersion byte = 0x01

// BulkLimit is the per-command word count ceiling.
const BulkLimit = 256
