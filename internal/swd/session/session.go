// Package session implements the SWD session layer: DP/AP register
// semantics, SELECT bank tracking, auto-increment bulk memory transfers
// with 1 KiB page re-targeting, multi-register write batching, and
// connect()/error-recovery sequencing.
//
// A typed helper wrapping the lower-level link, caching SELECT/TAR state
// to avoid redundant wire traffic.
package session

import (
	"github.com/airfrog/airfrog"
	"github.com/airfrog/airfrog/internal/swd/link"
	log "github.com/sirupsen/logrus"
)

const memAPIndex = 0

// pageSize is the MEM-AP auto-increment wrap boundary.
const pageSize = 0x400

// CSW bits this session layer cares about: 32-bit access size,
// auto-increment single.
const (
	cswSize32   uint32 = 0x02
	cswAddrInc1 uint32 = 0x10
)

// Session is the stateful DP/AP client above a Link. It owns the SELECT
// and TAR caches described in and is meant to be used from a
// single task (the runtime's link task), like Link itself.
type Session struct {
	l *link.Link

	dpSelect      uint32
	dpSelectValid bool

	apCSWCache map[uint8]uint32

	tarCache uint32
	tarValid bool

	lastErrors *airfrog.ErrorSummary

	connected  bool
	descriptor airfrog.TargetDescriptor

	flashUnlocked bool
}

// New wraps l in a Session, initially disconnected.
func New(l *link.Link) *Session {
	return &Session{l: l, apCSWCache: map[uint8]uint32{}}
}

// Connected reports whether connect() has completed successfully and no
// subsequent fault has torn the session down.
func (s *Session) Connected() bool { return s.connected }

// Descriptor returns the Target Descriptor assembled at connect time.
func (s *Session) Descriptor() airfrog.TargetDescriptor { return s.descriptor }

// ReadDP issues a direct DP register read.
func (s *Session) ReadDP(reg uint8) (uint32, error) {
	return s.l.Transact(airfrog.Transaction{Port: airfrog.DP, Dir: airfrog.Read, Reg: reg})
}

// WriteDP issues a direct DP register write.
func (s *Session) WriteDP(reg uint8, v uint32) error {
	_, err := s.l.Transact(airfrog.Transaction{Port: airfrog.DP, Dir: airfrog.Write, Reg: reg, Data: v})
	return err
}

// ensureSelect rewrites DP SELECT only when the requested AP index or
// bank differs from the cached value.
func (s *Session) ensureSelect(apIndex uint8, bank uint8) error {
	want := uint32(apIndex)<<24 | uint32(bank&0xF0)
	if s.dpSelectValid && s.dpSelect == want {
		return nil
	}
	if err := s.WriteDP(airfrog.DPSelect, want); err != nil {
		return err
	}
	s.dpSelect = want
	s.dpSelectValid = true
	return nil
}

// ReadAP reads an AP register, hiding the RDBUFF pipeline discipline
// from the caller.
func (s *Session) ReadAP(apIndex, reg uint8) (uint32, error) {
	if err := s.ensureSelect(apIndex, reg&0xF0); err != nil {
		return 0, err
	}
	if _, err := s.l.Transact(airfrog.Transaction{Port: airfrog.AP, Dir: airfrog.Read, Reg: reg}); err != nil {
		return 0, err
	}
	return s.ReadDP(airfrog.DPRdBuff)
}

// WriteAP writes an AP register.
func (s *Session) WriteAP(apIndex, reg uint8, v uint32) error {
	if err := s.ensureSelect(apIndex, reg&0xF0); err != nil {
		return err
	}
	_, err := s.l.Transact(airfrog.Transaction{Port: airfrog.AP, Dir: airfrog.Write, Reg: reg, Data: v})
	return err
}

// ensureCSW rewrites MEM-AP CSW only when the cached value for this AP
// index differs.
func (s *Session) ensureCSW(apIndex uint8, csw uint32) error {
	if cached, ok := s.apCSWCache[apIndex]; ok && cached == csw {
		return nil
	}
	if err := s.WriteAP(apIndex, airfrog.APCSW, csw); err != nil {
		return err
	}
	s.apCSWCache[apIndex] = csw
	return nil
}

// ensureTAR rewrites MEM-AP TAR only when the cache is stale or addr
// differs from the cached TAR value.
func (s *Session) ensureTAR(addr uint32) error {
	if s.tarValid && s.tarCache == addr {
		return nil
	}
	if err := s.WriteAP(memAPIndex, airfrog.APTAR, addr); err != nil {
		s.tarValid = false
		return err
	}
	s.tarCache = addr
	s.tarValid = true
	return nil
}

func (s *Session) invalidateCaches() {
	s.tarValid = false
	s.dpSelectValid = false
	s.apCSWCache = map[uint8]uint32{}
}

// ReadMemoryWord reads a single 32-bit word from target memory via
// MEM-AP 0.
func (s *Session) ReadMemoryWord(addr uint32) (uint32, error) {
	if err := s.ensureCSW(memAPIndex, cswSize32); err != nil {
		return 0, err
	}
	if err := s.ensureTAR(addr); err != nil {
		return 0, err
	}
	v, err := s.ReadAP(memAPIndex, airfrog.APDRW)
	if err != nil {
		return 0, err
	}
	s.tarValid = false // TAR auto-advances semantics don't apply to single reads; force re-write next time
	return v, nil
}

// WriteMemoryWord writes a single 32-bit word to target memory via
// MEM-AP 0.
func (s *Session) WriteMemoryWord(addr, v uint32) error {
	if err := s.ensureCSW(memAPIndex, cswSize32); err != nil {
		return err
	}
	if err := s.ensureTAR(addr); err != nil {
		return err
	}
	if err := s.WriteAP(memAPIndex, airfrog.APDRW, v); err != nil {
		return err
	}
	s.tarValid = false
	return nil
}

// ReadMemoryBulk reads n consecutive words starting at addr using
// MEM-AP auto-increment, re-writing TAR at every 1 KiB page boundary
//. The RDBUFF pipeline tail
// discipline is applied once at the end.
func (s *Session) ReadMemoryBulk(addr uint32, n int) ([]uint32, error) {
	if n <= 0 {
		return nil, nil
	}
	if err := s.ensureCSW(memAPIndex, cswSize32|cswAddrInc1); err != nil {
		return nil, err
	}
	if err := s.ensureTAR(addr); err != nil {
		return nil, err
	}

	out := make([]uint32, n)
	cur := addr
	// First AP read is discarded (pipeline priming): its own data phase
	// carries whatever was latched before this call, not word 0. Each
	// subsequent AP read's data phase carries the previous word, so the
	// loop below reads word i from the read that primes word i+1. The
	// final word never gets a following AP read to carry it out, so it
	// is retrieved with one RDBUFF read after the loop.
	if err := s.ensureSelect(memAPIndex, airfrog.APDRW&0xF0); err != nil {
		return nil, err
	}
	if _, err := s.l.Transact(airfrog.Transaction{Port: airfrog.AP, Dir: airfrog.Read, Reg: airfrog.APDRW}); err != nil {
		return nil, err
	}
	cur += 4
	if err := s.maybeRePage(cur-4, cur); err != nil {
		return nil, err
	}

	for i := 0; i < n-1; i++ {
		v, err := s.l.Transact(airfrog.Transaction{Port: airfrog.AP, Dir: airfrog.Read, Reg: airfrog.APDRW})
		if err != nil {
			return nil, err
		}
		out[i] = v
		cur += 4
		if err := s.maybeRePage(cur-4, cur); err != nil {
			return nil, err
		}
	}
	last, err := s.ReadDP(airfrog.DPRdBuff)
	if err != nil {
		return nil, err
	}
	out[n-1] = last
	s.tarValid = false
	return out, nil
}

// maybeRePage re-writes TAR if the step from prev to cur crossed a 1 KiB
// page boundary, so each boundary costs exactly one TAR write.
func (s *Session) maybeRePage(prev, cur uint32) error {
	if prev/pageSize == cur/pageSize {
		return nil
	}
	log.Debugf("[SESSION] page boundary crossed at 0x%08x, re-writing TAR", cur)
	return s.ensureTAR(cur)
}

// WriteMemoryBulk writes words starting at addr using MEM-AP
// auto-increment with the same page-boundary handling as
// ReadMemoryBulk.
func (s *Session) WriteMemoryBulk(addr uint32, words []uint32) error {
	if len(words) == 0 {
		return nil
	}
	if err := s.ensureCSW(memAPIndex, cswSize32|cswAddrInc1); err != nil {
		return err
	}
	if err := s.ensureTAR(addr); err != nil {
		return err
	}
	cur := addr
	for _, w := range words {
		if err := s.WriteAP(memAPIndex, airfrog.APDRW, w); err != nil {
			return err
		}
		cur += 4
		if err := s.maybeRePage(cur-4, cur); err != nil {
			return err
		}
	}
	s.tarValid = false
	return nil
}

// WriteOp is one element of a MultiWrite batch.
type WriteOp struct {
	Port airfrog.Port
	Reg  uint8
	Data uint32
}

// MultiWrite pipelines several DP/AP writes, eliding redundant SELECT
// writes via the existing dpSelect cache.
func (s *Session) MultiWrite(ops []WriteOp) error {
	for _, op := range ops {
		if op.Port == airfrog.AP {
			if err := s.ensureSelect(memAPIndex, op.Reg&0xF0); err != nil {
				return err
			}
		}
		if _, err := s.l.TransactPipelined(airfrog.Transaction{Port: op.Port, Dir: airfrog.Write, Reg: op.Reg, Data: op.Data}); err != nil {
			return err
		}
	}
	return nil
}

// ReadErrors decodes DP CTRL/STAT's sticky error bits.
func (s *Session) ReadErrors() (airfrog.ErrorSummary, error) {
	v, err := s.ReadDP(airfrog.DPCtrlStat)
	if err != nil {
		return airfrog.ErrorSummary{}, err
	}
	return airfrog.DecodeErrorSummary(v), nil
}

// ClearErrors writes DP ABORT with all sticky-clear bits set. Calling it
// twice in a row is idempotent: the second call still
// clears nothing else and leaves CTRL/STAT's sticky bits clear.
func (s *Session) ClearErrors() error {
	if err := s.WriteDP(airfrog.DPAbort, airfrog.AbortClearAll); err != nil {
		return err
	}
	s.lastErrors = nil
	return nil
}

// recoverFromFault performs the session layer's single automatic
// recovery step on FAULT: ABORT, then read CTRL/STAT to
// annotate the error, then invalidate the SELECT/TAR/CSW caches so the
// next operation starts clean.
func (s *Session) recoverFromFault(cause error) error {
	if err := s.ClearErrors(); err != nil {
		s.invalidateCaches()
		return cause
	}
	ctrlStat, err := s.ReadDP(airfrog.DPCtrlStat)
	if err == nil {
		summary := airfrog.DecodeErrorSummary(ctrlStat)
		s.lastErrors = &summary
		cause = airfrog.NewSWDError(airfrog.ErrFaultAcknowledge, airfrog.FaultDetail{CtrlStat: ctrlStat, Errors: summary})
	}
	s.invalidateCaches()
	return cause
}

// Do wraps any session operation, applying the single-recovery-on-FAULT
// policy from : if err is a FaultAcknowledge SWDError, ABORT
// and annotate before returning.
func (s *Session) Do(err error) error {
	if err == nil {
		return nil
	}
	if swdErr, ok := err.(*airfrog.SWDError); ok && swdErr.Code == airfrog.ErrFaultAcknowledge {
		return s.recoverFromFault(err)
	}
	return err
}
