package session

import (
	"time"

	"github.com/airfrog/airfrog"
	log "github.com/sirupsen/logrus"
)

// STM32F4 FLASH peripheral register addresses (RM0383/RM0390), reached
// like any other memory address via the MEM-AP.
const (
	flashKeyR uint32 = 0x40023C04
	flashSR   uint32 = 0x40023C0C
	flashCR   uint32 = 0x40023C10
)

// FLASH_KEYR unlock sequence (RM0383 §3.4.1).
const (
	flashKey1 uint32 = 0x45670123
	flashKey2 uint32 = 0xCDEF89AB
)

// FLASH_CR bits this implementation needs.
const (
	crPG    uint32 = 1 << 0
	crSER   uint32 = 1 << 1
	crMER   uint32 = 1 << 2
	crSNBShift = 3
	crPSIZEx32 uint32 = 0x2 << 8
	crStrt  uint32 = 1 << 16
	crLock  uint32 = 1 << 31
)

// FLASH_SR bits.
const (
	srEOP    uint32 = 1 << 0
	srOpErr  uint32 = 1 << 1
	srWRPErr uint32 = 1 << 4
	srPgAErr uint32 = 1 << 5
	srPgPErr uint32 = 1 << 6
	srPgSErr uint32 = 1 << 7
	srBSY    uint32 = 1 << 16
	srErrMask = srOpErr | srWRPErr | srPgAErr | srPgPErr | srPgSErr
)

const (
	flashPollInterval   = 2 * time.Millisecond
	flashWordTimeout    = 1 * time.Second
	flashSectorTimeout  = 1 * time.Second
	flashMassEraseTimeout = 30 * time.Second
)

// FlashUnlock writes the FLASH_KEYR unlock sequence. It is idempotent:
// once this session has unlocked the flash it returns without writing
// the keys again. CR.LOCK is checked after the keys are written, not
// before.
func (s *Session) FlashUnlock() error {
	if s.flashUnlocked {
		return nil
	}
	if err := s.WriteMemoryWord(flashKeyR, flashKey1); err != nil {
		return err
	}
	if err := s.WriteMemoryWord(flashKeyR, flashKey2); err != nil {
		return err
	}
	cr, err := s.ReadMemoryWord(flashCR)
	if err != nil {
		return err
	}
	if cr&crLock != 0 {
		return airfrog.NewSWDError(airfrog.ErrOperationFailed, airfrog.FlashErrorDetail{SR: cr})
	}
	s.flashUnlocked = true
	return nil
}

// FlashLock sets FLASH_CR.LOCK, re-arming the unlock sequence requirement.
func (s *Session) FlashLock() error {
	cr, err := s.ReadMemoryWord(flashCR)
	if err != nil {
		return err
	}
	if err := s.WriteMemoryWord(flashCR, cr|crLock); err != nil {
		return err
	}
	s.flashUnlocked = false
	return nil
}

// pollBSY waits for FLASH_SR.BSY to clear, then checks for error bits.
func (s *Session) pollBSY(timeout time.Duration, addr uint32) error {
	deadline := time.Now().Add(timeout)
	for {
		sr, err := s.ReadMemoryWord(flashSR)
		if err != nil {
			return err
		}
		if sr&srBSY == 0 {
			if sr&srErrMask != 0 {
				return airfrog.NewSWDError(airfrog.ErrOperationFailed, airfrog.FlashErrorDetail{SR: sr, Addr: addr})
			}
			return nil
		}
		if time.Now().After(deadline) {
			return airfrog.NewAPIError(airfrog.ErrTimeout, airfrog.FlashErrorDetail{SR: sr, Addr: addr})
		}
		time.Sleep(flashPollInterval)
	}
}

// FlashEraseSector erases sector n (0-based, device-specific sizing) via
// FLASH_CR.SER, per RM0383 §3.5.
func (s *Session) FlashEraseSector(n uint8) error {
	if err := s.FlashUnlock(); err != nil {
		return err
	}
	cr := crSER | uint32(n)<<crSNBShift
	if err := s.WriteMemoryWord(flashCR, cr); err != nil {
		return err
	}
	if err := s.WriteMemoryWord(flashCR, cr|crStrt); err != nil {
		return err
	}
	log.Debugf("[FLASH] erasing sector %d", n)
	return s.pollBSY(flashSectorTimeout, 0)
}

// FlashEraseAll performs a mass erase via FLASH_CR.MER.
func (s *Session) FlashEraseAll() error {
	if err := s.FlashUnlock(); err != nil {
		return err
	}
	if err := s.WriteMemoryWord(flashCR, crMER); err != nil {
		return err
	}
	if err := s.WriteMemoryWord(flashCR, crMER|crStrt); err != nil {
		return err
	}
	log.Debugf("[FLASH] mass erase")
	return s.pollBSY(flashMassEraseTimeout, 0)
}

// FlashProgramWord programs one 32-bit word at addr. The destination
// must read as erased (0xFFFFFFFF) before programming.
func (s *Session) FlashProgramWord(addr, v uint32) error {
	cur, err := s.ReadMemoryWord(addr)
	if err != nil {
		return err
	}
	if cur != 0xFFFFFFFF {
		return airfrog.NewSWDError(airfrog.ErrOperationFailed, airfrog.FlashErrorDetail{SR: cur, Addr: addr})
	}
	if err := s.FlashUnlock(); err != nil {
		return err
	}
	if err := s.WriteMemoryWord(flashCR, crPG|crPSIZEx32); err != nil {
		return err
	}
	if err := s.WriteMemoryWord(addr, v); err != nil {
		return err
	}
	if err := s.pollBSY(flashWordTimeout, addr); err != nil {
		return err
	}
	readback, err := s.ReadMemoryWord(addr)
	if err != nil {
		return err
	}
	if readback != v {
		return airfrog.NewSWDError(airfrog.ErrOperationFailed, airfrog.FlashErrorDetail{SR: readback, Addr: addr})
	}
	return s.WriteMemoryWord(flashCR, 0)
}

// FlashProgramBulk programs consecutive words starting at addr, one
// FLASH_CR.PG cycle per word exactly as FlashProgramWord does.
func (s *Session) FlashProgramBulk(addr uint32, words []uint32) error {
	for i, w := range words {
		if err := s.FlashProgramWord(addr+uint32(i*4), w); err != nil {
			return err
		}
	}
	return nil
}
