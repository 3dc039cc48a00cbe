package config

import (
	"github.com/airfrog/airfrog"
	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

// LoadBootstrap reads a human-editable first-boot defaults file (network
// credentials, default SWD speed) so a freshly flashed board has
// something to persist on its first Save. A missing or malformed file
// yields the compiled-in defaults rather than failing boot.
func LoadBootstrap(path string) (SWDSettings, NetworkSettings) {
	swd := DefaultSWDSettings
	net := DefaultNetworkSettings

	f, err := ini.Load(path)
	if err != nil {
		log.Warnf("[CONFIG] no bootstrap file at %s, using compiled-in defaults: %v", path, err)
		return swd, net
	}

	if sec := f.Section("swd"); sec != nil {
		if key := sec.Key("speed"); key.String() != "" {
			if s, ok := speedFromName(key.String()); ok {
				swd.Speed = s
			}
		}
		swd.AutoConnect = sec.Key("auto_connect").MustBool(swd.AutoConnect)
		swd.Keepalive = sec.Key("keepalive").MustBool(swd.Keepalive)
	}

	if sec := f.Section("network"); sec != nil {
		net.SSID = sec.Key("ssid").MustString(net.SSID)
		net.Passphrase = sec.Key("passphrase").MustString(net.Passphrase)
		net.BindPort = uint16(sec.Key("bind_port").MustInt(int(net.BindPort)))
	}

	return swd, net
}

func speedFromName(name string) (airfrog.Speed, bool) {
	switch name {
	case "turbo":
		return airfrog.SpeedTurbo, true
	case "fast":
		return airfrog.SpeedFast, true
	case "medium":
		return airfrog.SpeedMedium, true
	case "slow":
		return airfrog.SpeedSlow, true
	default:
		return 0, false
	}
}
