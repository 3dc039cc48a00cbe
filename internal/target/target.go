// Package target implements the Target Service façade: the single
// point network servers call through, owning one Session and
// serializing access so concurrent clients never interleave wire
// transactions.
//
// A façade wrapping a lower-level client behind typed methods, with a
// mutex guarding the one shared transport.
package target

import (
	"sync"

	"github.com/airfrog/airfrog"
	"github.com/airfrog/airfrog/internal/swd/link"
	"github.com/airfrog/airfrog/internal/swd/session"
	log "github.com/sirupsen/logrus"
)

// BinaryBulkLimit and RESTBulkLimit are the per-transport bulk-count
// ceilings.
const (
	BinaryBulkLimit = 256
	RESTBulkLimit   = 4096
)

// Status is the response shape of Service.Status().
type Status struct {
	Connected bool
	IDCode    uint32
	MCULine   string
	Speed     airfrog.Speed
	Stats     airfrog.AckStats
}

// Service is the Target Service façade. All exported methods are safe
// for concurrent use; they serialize on mu so that no two callers ever
// interleave transactions on the wire.
type Service struct {
	mu sync.Mutex

	link    *link.Link
	session *session.Session

	speed       airfrog.Speed
	autoConnect bool
	keepalive   bool
}

// New builds a Service around l, initially disconnected.
func New(l *link.Link) *Service {
	return &Service{
		link:        l,
		session:     session.New(l),
		speed:       airfrog.SpeedFast,
		autoConnect: true,
		keepalive:   true,
	}
}

func checkAligned(addr uint32) error {
	if addr%4 != 0 {
		return airfrog.NewAPIError(airfrog.ErrAlignment, addr)
	}
	return nil
}

func checkBulkSize(n int, limit int) error {
	if n <= 0 || n > limit {
		return airfrog.NewAPIError(airfrog.ErrTooLarge, n)
	}
	return nil
}

func (s *Service) requireConnected() error {
	if !s.session.Connected() {
		return airfrog.NewAPIError(airfrog.ErrNotConnected, nil)
	}
	return nil
}

// Status reports the current connection state and statistics.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Connected: s.session.Connected(),
		Speed:     s.speed,
		Stats:     s.link.Stats(),
	}
	if st.Connected {
		desc := s.session.Descriptor()
		st.IDCode = desc.IDCode
		st.MCULine = desc.MCULine
	}
	return st
}

// Details returns the full Target Descriptor assembled at connect time.
func (s *Service) Details() (airfrog.TargetDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConnected(); err != nil {
		return airfrog.TargetDescriptor{}, err
	}
	return s.session.Descriptor(), nil
}

// ResetTarget reconnects, trying V1 then V2, and re-enables
// auto_connect/keepalive.
func (s *Service) ResetTarget() (airfrog.TargetDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.autoConnect = true
	s.keepalive = true

	desc, err := s.session.Connect(s.link.Reset, airfrog.ResetV1)
	if err != nil {
		log.Warnf("[TARGET] V1 reset failed, trying V2: %v", err)
		desc, err = s.session.Connect(s.link.Reset, airfrog.ResetV2)
		if err != nil {
			return airfrog.TargetDescriptor{}, airfrog.WrapAPIError(err)
		}
	}
	return desc, nil
}

// RawReset disables auto_connect/keepalive and drops the link to
// Disconnected, so a raw client can drive its own sequences.
func (s *Service) RawReset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoConnect = false
	s.keepalive = false
	s.link.MarkDisconnected()
}

// ReadErrors decodes DP CTRL/STAT's sticky error bits.
func (s *Service) ReadErrors() (airfrog.ErrorSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConnected(); err != nil {
		return airfrog.ErrorSummary{}, err
	}
	summary, err := s.session.ReadErrors()
	return summary, airfrog.WrapAPIError(err)
}

// ClearErrors clears DP ABORT's sticky bits.
func (s *Service) ClearErrors() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConnected(); err != nil {
		return err
	}
	return airfrog.WrapAPIError(s.session.ClearErrors())
}

// MemoryRead reads one aligned 32-bit word.
func (s *Service) MemoryRead(addr uint32) (uint32, error) {
	if err := checkAligned(addr); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConnected(); err != nil {
		return 0, err
	}
	v, err := s.session.ReadMemoryWord(addr)
	return v, s.session.Do(err)
}

// MemoryWrite writes one aligned 32-bit word.
func (s *Service) MemoryWrite(addr, v uint32) error {
	if err := checkAligned(addr); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConnected(); err != nil {
		return err
	}
	return s.session.Do(s.session.WriteMemoryWord(addr, v))
}

// MemoryReadBulk reads n aligned words, bounded by limit (the caller's
// transport-specific bulk cap).
func (s *Service) MemoryReadBulk(addr uint32, n int, limit int) ([]uint32, error) {
	if err := checkAligned(addr); err != nil {
		return nil, err
	}
	if err := checkBulkSize(n, limit); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConnected(); err != nil {
		return nil, err
	}
	words, err := s.session.ReadMemoryBulk(addr, n)
	return words, s.session.Do(err)
}

// MemoryWriteBulk writes words starting at addr, bounded by limit.
func (s *Service) MemoryWriteBulk(addr uint32, words []uint32, limit int) error {
	if err := checkAligned(addr); err != nil {
		return err
	}
	if err := checkBulkSize(len(words), limit); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConnected(); err != nil {
		return err
	}
	return s.session.Do(s.session.WriteMemoryBulk(addr, words))
}

// RawDPRead/RawDPWrite/RawAPRead/RawAPWrite expose the session's direct
// register access, for clients (the raw binary/REST primitives) that
// need to bypass the memory-access helpers.
func (s *Service) RawDPRead(reg uint8) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.session.ReadDP(reg)
	return v, s.session.Do(err)
}

func (s *Service) RawDPWrite(reg uint8, v uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Do(s.session.WriteDP(reg, v))
}

func (s *Service) RawAPRead(reg uint8) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.session.ReadAP(0, reg)
	return v, s.session.Do(err)
}

func (s *Service) RawAPWrite(reg uint8, v uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Do(s.session.WriteAP(0, reg, v))
}

// RawAPBulkRead/RawAPBulkWrite expose bulk AP register access, always
// against AP index 0.
func (s *Service) RawAPBulkRead(reg uint8, n int, limit int) ([]uint32, error) {
	if err := checkBulkSize(n, limit); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		v, err := s.session.ReadAP(0, reg)
		if err != nil {
			// Return whatever was already read alongside the error, so
			// the caller sees a partial result instead of nothing.
			return out, s.session.Do(err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Service) RawAPBulkWrite(reg uint8, words []uint32, limit int) error {
	if err := checkBulkSize(len(words), limit); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range words {
		if err := s.session.WriteAP(0, reg, w); err != nil {
			return s.session.Do(err)
		}
	}
	return nil
}

// RawMultiWrite pipelines a batch of DP/AP register writes.
func (s *Service) RawMultiWrite(ops []session.WriteOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Do(s.session.MultiWrite(ops))
}

// RawClock exposes the raw clock primitive directly
// against the Pin Driver, bypassing the transaction layer entirely.
func (s *Service) RawClock(level, post airfrog.Level, cycles int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.link.RawClock(level, post, cycles)
}

// Keepalive issues a lightweight DP IDCODE read if the link is connected
// and keepalive is enabled. On error, it attempts a reconnect when
// auto_connect is set; if that is off or the reconnect fails, it marks
// the session disconnected.
func (s *Service) Keepalive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.keepalive || !s.session.Connected() {
		return
	}
	if _, err := s.session.ReadDP(airfrog.DPIdCode); err != nil {
		log.Warnf("[TARGET] keepalive read failed: %v", err)
		s.session.Do(err)
		if s.autoConnect {
			if _, err := s.session.Connect(s.link.Reset, airfrog.ResetV1); err == nil {
				return
			}
		}
		s.session = session.New(s.link)
		s.link.MarkDisconnected()
	}
}

// AutoConnectTick attempts connect(V1) if the link is Disconnected and
// auto_connect is enabled. Called periodically by the auto-connect task.
func (s *Service) AutoConnectTick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.autoConnect || s.session.Connected() {
		return
	}
	if _, err := s.session.Connect(s.link.Reset, airfrog.ResetV1); err != nil {
		log.Debugf("[TARGET] auto-connect attempt failed: %v", err)
	}
}

// SetSpeed updates the SWD clock speed.
func (s *Service) SetSpeed(speed airfrog.Speed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.link.SetSpeed(speed); err != nil {
		return airfrog.WrapAPIError(err)
	}
	s.speed = speed
	return nil
}
