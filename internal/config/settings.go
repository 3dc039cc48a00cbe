package config

import (
	"encoding/binary"
	"errors"

	"github.com/airfrog/airfrog"
)

// SWDSettings is the persisted runtime SWD configuration.
type SWDSettings struct {
	Speed       airfrog.Speed
	AutoConnect bool
	Keepalive   bool
}

// DefaultSWDSettings are the compiled-in fallback values.
var DefaultSWDSettings = SWDSettings{
	Speed:       airfrog.SpeedFast,
	AutoConnect: true,
	Keepalive:   true,
}

// SWDCodec encodes/decodes SWDSettings to the blob payload format: a
// flat fixed-layout record rather than a self-describing format.
var SWDCodec = Codec[SWDSettings]{
	Magic: MagicSWD,
	Encode: func(s SWDSettings) []byte {
		buf := make([]byte, 3)
		buf[0] = byte(s.Speed)
		buf[1] = boolByte(s.AutoConnect)
		buf[2] = boolByte(s.Keepalive)
		return buf
	},
	Decode: func(b []byte) (SWDSettings, error) {
		if len(b) < 3 {
			return SWDSettings{}, errors.New("config: truncated swd settings")
		}
		return SWDSettings{
			Speed:       airfrog.Speed(b[0]),
			AutoConnect: b[1] != 0,
			Keepalive:   b[2] != 0,
		}, nil
	},
}

// NetworkSettings is the persisted Wi-Fi/TCP configuration blob.
type NetworkSettings struct {
	SSID       string
	Passphrase string
	BindPort   uint16
}

// DefaultNetworkSettings are the compiled-in fallback values.
var DefaultNetworkSettings = NetworkSettings{
	BindPort: 4146,
}

// NetworkCodec encodes/decodes NetworkSettings: [ssid_len:1][ssid][pass_len:1][pass][port:2 LE].
var NetworkCodec = Codec[NetworkSettings]{
	Magic: MagicNetwork,
	Encode: func(n NetworkSettings) []byte {
		buf := make([]byte, 0, 2+len(n.SSID)+len(n.Passphrase)+2)
		buf = append(buf, byte(len(n.SSID)))
		buf = append(buf, n.SSID...)
		buf = append(buf, byte(len(n.Passphrase)))
		buf = append(buf, n.Passphrase...)
		portBuf := make([]byte, 2)
		binary.LittleEndian.PutUint16(portBuf, n.BindPort)
		return append(buf, portBuf...)
	},
	Decode: func(b []byte) (NetworkSettings, error) {
		if len(b) < 1 {
			return NetworkSettings{}, errors.New("config: truncated network settings")
		}
		ssidLen := int(b[0])
		if len(b) < 1+ssidLen+1 {
			return NetworkSettings{}, errors.New("config: truncated network settings")
		}
		ssid := string(b[1 : 1+ssidLen])
		rest := b[1+ssidLen:]
		passLen := int(rest[0])
		if len(rest) < 1+passLen+2 {
			return NetworkSettings{}, errors.New("config: truncated network settings")
		}
		pass := string(rest[1 : 1+passLen])
		port := binary.LittleEndian.Uint16(rest[1+passLen : 1+passLen+2])
		return NetworkSettings{SSID: ssid, Passphrase: pass, BindPort: port}, nil
	},
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
