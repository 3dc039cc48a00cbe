package session

import (
	"github.com/airfrog/airfrog"
	log "github.com/sirupsen/logrus"
)

// dbgmcuIDCode is the STM32 DBGMCU_IDCODE register, used to identify MCU
// line/revision once MEM-AP access is live.
const dbgmcuIDCode uint32 = 0xE0042000

// powerUpTimeout bounds how many CTRL/STAT polls Connect will spend
// waiting for CSYSPWRUPACK/CDBGPWRUPACK before giving up.
const powerUpTimeout = 32

// Connect runs a line reset and brings the session from Disconnected to
// Connected/§4.4: reset, DP IDCODE read, debug power-up
// request, MEM-AP IDR read, MCU identification.
func (s *Session) Connect(reset func(airfrog.ResetKind), kind airfrog.ResetKind) (airfrog.TargetDescriptor, error) {
	s.invalidateCaches()
	reset(kind)

	idcode, err := s.ReadDP(airfrog.DPIdCode)
	if err != nil {
		return airfrog.TargetDescriptor{}, err
	}

	if err := s.powerUp(); err != nil {
		return airfrog.TargetDescriptor{}, err
	}

	memAPIDR, err := s.ReadAP(memAPIndex, airfrog.APIDR)
	if err != nil {
		return airfrog.TargetDescriptor{}, err
	}

	desc := airfrog.TargetDescriptor{IDCode: idcode, MemAPIDR: memAPIDR}
	if err := s.identifySTM32F4(&desc); err != nil {
		log.Warnf("[SESSION] MCU identification failed, leaving family unknown: %v", err)
	}

	s.connected = true
	s.descriptor = desc
	s.l.MarkConnected()
	return desc, nil
}

// powerUp requests CSYSPWRUPREQ/CDBGPWRUPREQ in CTRL/STAT and polls for
// the matching ACK bits, per ARM ADIv5.
func (s *Session) powerUp() error {
	want := airfrog.CtrlStatCSYSPWRUPREQ | airfrog.CtrlStatCDBGPWRUPREQ
	if err := s.WriteDP(airfrog.DPCtrlStat, want); err != nil {
		return err
	}
	ackMask := airfrog.CtrlStatCSYSPWRUPACK | airfrog.CtrlStatCDBGPWRUPACK
	for i := 0; i < powerUpTimeout; i++ {
		v, err := s.ReadDP(airfrog.DPCtrlStat)
		if err != nil {
			return err
		}
		if v&ackMask == ackMask {
			return nil
		}
	}
	return airfrog.NewSWDError(airfrog.ErrNotReady, nil)
}

// identifySTM32F4 reads DBGMCU_IDCODE and populates the family/line/
// revision/flash-size fields of desc when the device ID matches a known
// STM32F4 part.
func (s *Session) identifySTM32F4(desc *airfrog.TargetDescriptor) error {
	v, err := s.ReadMemoryWord(dbgmcuIDCode)
	if err != nil {
		return err
	}
	devID := uint16(v & 0xFFF)
	rev := uint16(v >> 16)
	entry, known := stm32f4Lines[devID]
	if !known {
		return nil
	}
	desc.MCUFamily = airfrog.FamilySTM32F4
	desc.DeviceID = devID
	desc.Revision = rev
	desc.MCULine = entry.line
	desc.FlashSizeKB = entry.flashKB
	return nil
}

// stm32f4Lines maps DBGMCU_IDCODE device-id fields to line name and flash
// capacity, for the parts this airfrog build supports flash programming
// for.
var stm32f4Lines = map[uint16]struct {
	line    string
	flashKB uint16
}{
	0x431: {"STM32F411", 512},
	0x419: {"STM32F42x/43x", 2048},
	0x423: {"STM32F401xB/C", 256},
	0x433: {"STM32F401xD/E", 512},
}
