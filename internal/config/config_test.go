package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/airfrog/airfrog"
	"github.com/airfrog/airfrog/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	backend := config.NewMemBackend(64)
	store := config.NewStore(backend, 0, 64, config.SWDCodec, config.DefaultSWDSettings)

	want := config.SWDSettings{Speed: airfrog.SpeedSlow, AutoConnect: false, Keepalive: true}
	require.NoError(t, store.Save(want))
	assert.Equal(t, want, store.Load())
}

func TestStoreFallsBackOnCorruption(t *testing.T) {
	backend := config.NewMemBackend(64)
	store := config.NewStore(backend, 0, 64, config.SWDCodec, config.DefaultSWDSettings)

	// Never saved: region is all zero bytes, which has the wrong magic.
	assert.Equal(t, config.DefaultSWDSettings, store.Load())
}

func TestStoreFallsBackOnBadCRC(t *testing.T) {
	backend := config.NewMemBackend(64)
	store := config.NewStore(backend, 0, 64, config.SWDCodec, config.DefaultSWDSettings)

	require.NoError(t, store.Save(config.SWDSettings{Speed: airfrog.SpeedTurbo}))
	raw, err := backend.ReadRegion(0, 64)
	require.NoError(t, err)
	raw[7] ^= 0xFF // corrupt the payload without touching the CRC
	require.NoError(t, backend.WriteRegion(0, raw))

	assert.Equal(t, config.DefaultSWDSettings, store.Load())
}

func TestNetworkSettingsRoundTrip(t *testing.T) {
	backend := config.NewMemBackend(128)
	store := config.NewStore(backend, 0, 128, config.NetworkCodec, config.DefaultNetworkSettings)

	want := config.NetworkSettings{SSID: "airfrog-lab", Passphrase: "hunter2hunter2", BindPort: 4146}
	require.NoError(t, store.Save(want))
	assert.Equal(t, want, store.Load())
}

func TestLoadBootstrapMissingFileUsesDefaults(t *testing.T) {
	swd, net := config.LoadBootstrap(filepath.Join(t.TempDir(), "does-not-exist.ini"))
	assert.Equal(t, config.DefaultSWDSettings, swd)
	assert.Equal(t, config.DefaultNetworkSettings, net)
}

func TestLoadBootstrapParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airfrog.ini")
	contents := "[swd]\nspeed = slow\nauto_connect = false\n\n[network]\nssid = labnet\nbind_port = 5000\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	swd, net := config.LoadBootstrap(path)
	assert.Equal(t, airfrog.SpeedSlow, swd.Speed)
	assert.False(t, swd.AutoConnect)
	assert.Equal(t, "labnet", net.SSID)
	assert.EqualValues(t, 5000, net.BindPort)
}
