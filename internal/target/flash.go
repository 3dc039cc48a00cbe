package target

import "github.com/airfrog/airfrog"

// FlashUnlock/FlashLock/FlashEraseSector/FlashEraseAll/FlashProgramWord/
// FlashProgramBulk mirror flash_* operations, serialized
// through the same mutex as every other Service method.

func (s *Service) FlashUnlock() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConnected(); err != nil {
		return err
	}
	return s.session.Do(s.session.FlashUnlock())
}

func (s *Service) FlashLock() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConnected(); err != nil {
		return err
	}
	return s.session.Do(s.session.FlashLock())
}

func (s *Service) FlashEraseSector(n uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConnected(); err != nil {
		return err
	}
	return s.session.Do(s.session.FlashEraseSector(n))
}

func (s *Service) FlashEraseAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConnected(); err != nil {
		return err
	}
	return s.session.Do(s.session.FlashEraseAll())
}

func (s *Service) FlashProgramWord(addr, v uint32) error {
	if err := checkAligned(addr); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConnected(); err != nil {
		return err
	}
	return s.session.Do(s.session.FlashProgramWord(addr, v))
}

func (s *Service) FlashProgramBulk(addr uint32, words []uint32) error {
	if err := checkAligned(addr); err != nil {
		return err
	}
	if err := checkBulkSize(len(words), RESTBulkLimit); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConnected(); err != nil {
		return err
	}
	return s.session.Do(s.session.FlashProgramBulk(addr, words))
}

// MCUFamily reports the family identified at connect time, for clients
// that want to gate flash operations on support.
func (s *Service) MCUFamily() airfrog.MCUFamily {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Descriptor().MCUFamily
}
