package wire

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/airfrog/airfrog"
	"github.com/airfrog/airfrog/internal/runtime"
	"github.com/airfrog/airfrog/internal/swd/session"
	"github.com/airfrog/airfrog/internal/target"
	log "github.com/sirupsen/logrus"
)

// DefaultAddr is the default listen address, port 4146
const DefaultAddr = ":4146"

// FrameTimeout bounds how long a connection may go without completing a
// frame read before the handler gives up.
const FrameTimeout = 10 * time.Second

// Server accepts TCP connections and runs one binary-API task per
// connection.
type Server struct {
	rt *runtime.Runtime
}

// NewServer builds a Server dispatching through rt.
func NewServer(rt *runtime.Runtime) *Server {
	return &Server{rt: rt}
}

// ListenAndServe accepts connections on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log.Infof("[WIRE] listening on %s", addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.Warnf("[WIRE] accept error: %v", err)
				continue
			}
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	log.Debugf("[WIRE] connection from %s", conn.RemoteAddr())

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !handshake(conn) {
		log.Warnf("[WIRE] version handshake failed with %s", conn.RemoteAddr())
		return
	}

	for {
		conn.SetReadDeadline(time.Now().Add(FrameTimeout))
		var cmd [1]byte
		if _, err := io.ReadFull(conn, cmd[:]); err != nil {
			if err != io.EOF {
				log.Debugf("[WIRE] read error from %s: %v", conn.RemoteAddr(), err)
			}
			return
		}

		if cmd[0] == CmdDisconnect {
			conn.Write([]byte{StatusOK})
			return
		}

		resp, closeConn := s.dispatch(connCtx, conn, cmd[0])
		if _, err := conn.Write(resp); err != nil {
			return
		}
		if closeConn {
			return
		}
	}
}

func handshake(conn net.Conn) bool {
	conn.SetDeadline(time.Now().Add(FrameTimeout))
	if _, err := conn.Write([]byte{ProtocolVersion}); err != nil {
		return false
	}
	var echo [1]byte
	if _, err := io.ReadFull(conn, echo[:]); err != nil {
		return false
	}
	conn.SetDeadline(time.Time{})
	return echo[0] == ProtocolVersion
}

// dispatch reads the remaining payload for cmd, runs it against the
// Target Service through the runtime's request channel, and returns the
// framed response. closeConn signals the caller to tear down the
// connection (currently unused but kept for symmetry with Disconnect).
func (s *Server) dispatch(ctx context.Context, conn net.Conn, cmd byte) (resp []byte, closeConn bool) {
	switch cmd {
	case CmdPing:
		return []byte{StatusOK}, false

	case CmdDPRead:
		reg, ok := readByte(conn)
		if !ok {
			return []byte{ErrInvalidCommand}, false
		}
		var v uint32
		var opErr error
		s.rt.Submit(ctx, func(svc *target.Service) { v, opErr = svc.RawDPRead(reg) })
		return frameWordResult(v, opErr), false

	case CmdDPWrite:
		reg, data, ok := readRegData(conn)
		if !ok {
			return []byte{ErrInvalidCommand}, false
		}
		var opErr error
		s.rt.Submit(ctx, func(svc *target.Service) { opErr = svc.RawDPWrite(reg, data) })
		return []byte{statusFor(opErr)}, false

	case CmdAPRead:
		reg, ok := readByte(conn)
		if !ok {
			return []byte{ErrInvalidCommand}, false
		}
		var v uint32
		var opErr error
		s.rt.Submit(ctx, func(svc *target.Service) { v, opErr = svc.RawAPRead(reg) })
		return frameWordResult(v, opErr), false

	case CmdAPWrite:
		reg, data, ok := readRegData(conn)
		if !ok {
			return []byte{ErrInvalidCommand}, false
		}
		var opErr error
		s.rt.Submit(ctx, func(svc *target.Service) { opErr = svc.RawAPWrite(reg, data) })
		return []byte{statusFor(opErr)}, false

	case CmdAPBulkRead:
		reg, count, ok := readRegCount(conn)
		if !ok {
			return []byte{ErrInvalidCommand}, false
		}
		var words []uint32
		var opErr error
		s.rt.Submit(ctx, func(svc *target.Service) {
			words, opErr = svc.RawAPBulkRead(reg, int(count), BulkLimit)
		})
		return frameBulkResult(words, opErr), false

	case CmdAPBulkWrite:
		reg, count, ok := readRegCount(conn)
		if !ok {
			return []byte{ErrInvalidCommand}, false
		}
		words, ok := readWords(conn, int(count))
		if !ok {
			return []byte{ErrInvalidCommand}, false
		}
		var opErr error
		s.rt.Submit(ctx, func(svc *target.Service) { opErr = svc.RawAPBulkWrite(reg, words, BulkLimit) })
		return []byte{statusFor(opErr)}, false

	case CmdMultiWrite:
		ops, ok := readMultiWriteOps(conn)
		if !ok {
			return []byte{ErrInvalidCommand}, false
		}
		var opErr error
		s.rt.Submit(ctx, func(svc *target.Service) { opErr = svc.RawMultiWrite(ops) })
		return []byte{statusFor(opErr)}, false

	case CmdResetTarget:
		var opErr error
		s.rt.Submit(ctx, func(svc *target.Service) { _, opErr = svc.ResetTarget() })
		return []byte{statusFor(opErr)}, false

	case CmdClock:
		packed, cycles, ok := readClockPayload(conn)
		if !ok {
			return []byte{ErrInvalidCommand}, false
		}
		level := levelFromNibble(packed & 0x0F)
		post := levelFromNibble((packed >> 4) & 0x0F)
		s.rt.Submit(ctx, func(svc *target.Service) { svc.RawClock(level, post, int(cycles)) })
		return []byte{StatusOK}, false

	case CmdSetSpeed:
		raw, ok := readByte(conn)
		if !ok {
			return []byte{ErrInvalidCommand}, false
		}
		speed, ok := speedFromByte(raw)
		if !ok {
			return []byte{ErrInvalidParameter}, false
		}
		var opErr error
		s.rt.Submit(ctx, func(svc *target.Service) { opErr = svc.SetSpeed(speed) })
		return []byte{statusFor(opErr)}, false

	default:
		return []byte{ErrInvalidCommand}, false
	}
}

func readByte(conn net.Conn) (byte, bool) {
	var b [1]byte
	if _, err := io.ReadFull(conn, b[:]); err != nil {
		return 0, false
	}
	return b[0], true
}

func readRegData(conn net.Conn) (reg uint8, data uint32, ok bool) {
	var buf [5]byte
	if _, err := io.ReadFull(conn, buf[:]); err != nil {
		return 0, 0, false
	}
	return buf[0], binary.LittleEndian.Uint32(buf[1:]), true
}

func readRegCount(conn net.Conn) (reg uint8, count uint16, ok bool) {
	var buf [3]byte
	if _, err := io.ReadFull(conn, buf[:]); err != nil {
		return 0, 0, false
	}
	return buf[0], binary.LittleEndian.Uint16(buf[1:]), true
}

func readWords(conn net.Conn, n int) ([]uint32, bool) {
	buf := make([]byte, n*4)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, false
	}
	words := make([]uint32, n)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return words, true
}

func readMultiWriteOps(conn net.Conn) ([]session.WriteOp, bool) {
	var countBuf [2]byte
	if _, err := io.ReadFull(conn, countBuf[:]); err != nil {
		return nil, false
	}
	count := binary.LittleEndian.Uint16(countBuf[:])
	ops := make([]session.WriteOp, count)
	for i := range ops {
		var entry [6]byte
		if _, err := io.ReadFull(conn, entry[:]); err != nil {
			return nil, false
		}
		port := airfrog.DP
		if entry[0] != 0 {
			port = airfrog.AP
		}
		ops[i] = session.WriteOp{Port: port, Reg: entry[1], Data: binary.LittleEndian.Uint32(entry[2:])}
	}
	return ops, true
}

func readClockPayload(conn net.Conn) (packed byte, cycles uint16, ok bool) {
	var buf [3]byte
	if _, err := io.ReadFull(conn, buf[:]); err != nil {
		return 0, 0, false
	}
	return buf[0], binary.LittleEndian.Uint16(buf[1:]), true
}

func levelFromNibble(n byte) airfrog.Level {
	switch n {
	case 1:
		return airfrog.High
	case 2:
		return airfrog.Input
	default:
		return airfrog.Low
	}
}

func speedFromByte(b byte) (airfrog.Speed, bool) {
	switch b {
	case 0:
		return airfrog.SpeedTurbo, true
	case 1:
		return airfrog.SpeedFast, true
	case 2:
		return airfrog.SpeedMedium, true
	case 3:
		return airfrog.SpeedSlow, true
	default:
		return 0, false
	}
}

func frameWordResult(v uint32, err error) []byte {
	status := statusFor(err)
	if status != StatusOK {
		return []byte{status}
	}
	resp := make([]byte, 5)
	resp[0] = status
	binary.LittleEndian.PutUint32(resp[1:], v)
	return resp
}

// frameBulkResult implements "return partial words read
// before the status" framing: [status][count:2][data:4*count].
func frameBulkResult(words []uint32, err error) []byte {
	status := statusFor(err)
	resp := make([]byte, 1+2+len(words)*4)
	resp[0] = status
	binary.LittleEndian.PutUint16(resp[1:3], uint16(len(words)))
	for i, w := range words {
		binary.LittleEndian.PutUint32(resp[3+i*4:], w)
	}
	return resp
}
