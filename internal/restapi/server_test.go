package restapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/airfrog/airfrog/internal/pindrv"
	"github.com/airfrog/airfrog/internal/restapi"
	"github.com/airfrog/airfrog/internal/runtime"
	"github.com/airfrog/airfrog/internal/swd/link"
	"github.com/airfrog/airfrog/internal/target"
	"github.com/stretchr/testify/require"
)

// newHarness builds a runtime-backed REST server over a simulated target,
// with the link task running on its own goroutine for the life of the
// test; each HTTP request makes synchronous Submit calls to it from its
// httptest.Server handler goroutine.
func newHarness(t *testing.T) (*httptest.Server, func()) {
	t.Helper()
	sim := pindrv.NewSim(0x2BA01477, 0x24770011)
	l := link.New(sim)
	svc := target.New(l)
	rt := runtime.New(svc)

	ctx, cancel := context.WithCancel(context.Background())
	go rt.RunLinkTask(ctx)

	srv := restapi.NewServer(ctx, rt)
	ts := httptest.NewServer(srv)
	return ts, cancel
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestStatusBeforeConnect(t *testing.T) {
	ts, cancel := newHarness(t)
	defer cancel()
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decodeJSON(t, resp, &body)
	require.Equal(t, false, body["connected"])
}

func TestResetThenMemoryRoundTrip(t *testing.T) {
	ts, cancel := newHarness(t)
	defer cancel()
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/reset", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	writeBody := strings.NewReader(`{"data":"0xcafef00d"}`)
	resp, err = http.Post(ts.URL+"/api/v1/memory/0x20000000", "application/json", writeBody)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/v1/memory/0x20000000")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var readResp struct {
		Data string `json:"data"`
	}
	decodeJSON(t, resp, &readResp)
	require.Equal(t, "0xcafef00d", readResp.Data)
}

func TestMemoryWordBeforeConnectReturns503(t *testing.T) {
	ts, cancel := newHarness(t)
	defer cancel()
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/memory/0x20000000")
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMemoryWordMisalignedReturns400(t *testing.T) {
	ts, cancel := newHarness(t)
	defer cancel()
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/memory/0x20000001")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFlashProgramViaREST(t *testing.T) {
	ts, cancel := newHarness(t)
	defer cancel()
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	body := strings.NewReader(`{"addr":"0x08000000","data":"0xdeadbeef"}`)
	resp, err = http.Post(ts.URL+"/api/v1/flash/program", "application/json", body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/v1/memory/0x08000000")
	require.NoError(t, err)
	var readResp struct {
		Data string `json:"data"`
	}
	decodeJSON(t, resp, &readResp)
	require.Equal(t, "0xdeadbeef", readResp.Data)
}

func TestErrorsRoundTrip(t *testing.T) {
	ts, cancel := newHarness(t)
	defer cancel()
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/v1/errors")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/v1/errors/clear", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
