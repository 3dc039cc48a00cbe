package wire_test

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/airfrog/airfrog/internal/pindrv"
	"github.com/airfrog/airfrog/internal/runtime"
	"github.com/airfrog/airfrog/internal/swd/link"
	"github.com/airfrog/airfrog/internal/target"
	"github.com/airfrog/airfrog/internal/wire"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) (net.Conn, func()) {
	t.Helper()
	sim := pindrv.NewSim(0x2BA01477, 0x24770011)
	l := link.New(sim)
	svc := target.New(l)
	rt := runtime.New(svc)

	ctx, cancel := context.WithCancel(context.Background())
	go rt.RunLinkTask(ctx)

	// Reserve a free port, then close it so ListenAndServe can bind it
	// under the real server's own listener.
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := probe.Addr().String()
	require.NoError(t, probe.Close())

	srv := wire.NewServer(rt)
	serving := make(chan struct{})
	go func() {
		close(serving)
		srv.ListenAndServe(ctx, addr)
	}()
	<-serving

	var conn net.Conn
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("tcp", addr)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, err)

	var echo [1]byte
	_, err = io.ReadFull(conn, echo[:])
	require.NoError(t, err)
	_, err = conn.Write(echo[:])
	require.NoError(t, err)

	return conn, cancel
}

func TestPingAfterHandshake(t *testing.T) {
	conn, cancel := startServer(t)
	defer cancel()
	defer conn.Close()

	_, err := conn.Write([]byte{wire.CmdPing})
	require.NoError(t, err)
	var resp [1]byte
	_, err = io.ReadFull(conn, resp[:])
	require.NoError(t, err)
	require.Equal(t, wire.StatusOK, resp[0])
}

func TestResetThenDPReadIDCode(t *testing.T) {
	conn, cancel := startServer(t)
	defer cancel()
	defer conn.Close()

	_, err := conn.Write([]byte{wire.CmdResetTarget})
	require.NoError(t, err)
	var resp [1]byte
	_, err = io.ReadFull(conn, resp[:])
	require.NoError(t, err)
	require.Equal(t, wire.StatusOK, resp[0])

	_, err = conn.Write([]byte{wire.CmdDPRead, 0x00})
	require.NoError(t, err)
	var dpResp [5]byte
	_, err = io.ReadFull(conn, dpResp[:])
	require.NoError(t, err)
	require.Equal(t, wire.StatusOK, dpResp[0])
	require.Equal(t, uint32(0x2BA01477), binary.LittleEndian.Uint32(dpResp[1:]))
}

func TestDisconnectCommand(t *testing.T) {
	conn, cancel := startServer(t)
	defer cancel()
	defer conn.Close()

	_, err := conn.Write([]byte{wire.CmdDisconnect})
	require.NoError(t, err)
	var resp [1]byte
	_, err = io.ReadFull(conn, resp[:])
	require.NoError(t, err)
	require.Equal(t, wire.StatusOK, resp[0])
}
