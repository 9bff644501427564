package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougsko/nrfd/pkg/config"
	"github.com/dougsko/nrfd/pkg/firmware"
)

func testDaemon(t *testing.T, withStore bool) *Daemon {
	t.Helper()

	cfg := &config.Config{}
	cfg.SetDefaults()
	dir := t.TempDir()
	cfg.API.UnixSocket = filepath.Join(dir, "nrfd.sock")
	cfg.Web.Port = 0
	cfg.Engine.RegularInterval = time.Millisecond
	if withStore {
		cfg.Storage.DatabasePath = filepath.Join(dir, "nrfd.db")
	}
	require.NoError(t, cfg.Validate())

	d, err := NewDaemon(cfg)
	require.NoError(t, err)
	require.NoError(t, d.Start())
	t.Cleanup(func() { d.Stop() })
	return d
}

func doRequest(t *testing.T, d *Daemon, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	d.router.ServeHTTP(w, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

func observationCount(t *testing.T, d *Daemon, query string) int {
	_, out := doRequest(t, d, http.MethodGet, "/api/v1/observations"+query, "")
	count, _ := out["count"].(float64)
	return int(count)
}

func TestNewDaemonRejectsUnknownRadio(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Radio.Model = "hackrf"
	require.NoError(t, cfg.Validate())

	_, err := NewDaemon(cfg)
	assert.Error(t, err)
}

func TestStatusEndpoint(t *testing.T) {
	d := testDaemon(t, false)

	w, out := doRequest(t, d, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	engineStatus, ok := out["engine"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "nrf", engineStatus["firmware"])
	assert.Equal(t, true, engineStatus["running"])
	assert.Equal(t, false, out["storage"])

	radio, ok := out["radio"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "mock", radio["model"])
	assert.NotZero(t, radio["frequency"])
}

func TestDeviceClassEndpoints(t *testing.T) {
	d := testDaemon(t, false)

	w, out := doRequest(t, d, http.MethodGet, "/api/v1/deviceclasses", "")
	require.Equal(t, http.StatusOK, w.Code)
	classes, ok := out["device_classes"].([]interface{})
	require.True(t, ok)
	assert.Len(t, classes, 8)

	w, out = doRequest(t, d, http.MethodGet, "/api/v1/deviceclasses/1.1.1.A", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(27000), out["subcarrier_spacing"])

	w, _ = doRequest(t, d, http.MethodGet, "/api/v1/deviceclasses/9.9.9.Z", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInjectPCCAndQuery(t *testing.T) {
	d := testDaemon(t, true)

	w, _ := doRequest(t, d, http.MethodPost, "/api/v1/pcc", `{"type1":"03AB123452"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = doRequest(t, d, http.MethodPost, "/api/v1/pcc", `{"type1":"03AB123452","type2":"3F01BEEFA3CAFE402ABC"}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		return observationCount(t, d, "") == 3
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 2, observationCount(t, d, "?type=10"))
	assert.Equal(t, 1, observationCount(t, d, "?type=21"))
	assert.Equal(t, 1, observationCount(t, d, "?transmitter=0xBEEF"))
	assert.Equal(t, 1, observationCount(t, d, "?limit=1"))

	w, out := doRequest(t, d, http.MethodGet, "/api/v1/transmitters", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), out["count"])

	w, out = doRequest(t, d, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), out["total_observations"])

	w, out = doRequest(t, d, http.MethodPost, "/api/v1/observations/cleanup", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), out["count"])
}

func TestInjectPCCType2Only(t *testing.T) {
	d := testDaemon(t, false)

	w, out := doRequest(t, d, http.MethodPost, "/api/v1/pcc", `{"type2":"3f01beefa3cafe402abc"}`)
	require.Equal(t, http.StatusOK, w.Code, out)

	require.Eventually(t, func() bool {
		return observationCount(t, d, "?type=21") == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, observationCount(t, d, "?type=10"))
}

func TestInjectPCCErrors(t *testing.T) {
	d := testDaemon(t, false)

	tests := []struct {
		name string
		body string
	}{
		{"no header", `{}`},
		{"empty headers", `{"type1":"","type2":""}`},
		{"bad type1 hex", `{"type1":"zz"}`},
		{"bad type2 hex", `{"type1":"03AB123452","type2":"xyz"}`},
		{"short header", `{"type1":"03AB"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, out := doRequest(t, d, http.MethodPost, "/api/v1/pcc", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestObservationQueryErrors(t *testing.T) {
	d := testDaemon(t, false)

	for _, q := range []string{"?limit=x", "?offset=-1", "?type=11", "?transmitter=70000", "?network=300", "?since=yesterday"} {
		w, _ := doRequest(t, d, http.MethodGet, "/api/v1/observations"+q, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestStorageEndpointsWithoutStore(t *testing.T) {
	d := testDaemon(t, false)

	for _, path := range []string{"/api/v1/transmitters", "/api/v1/stats"} {
		w, _ := doRequest(t, d, http.MethodGet, path, "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
	w, _ := doRequest(t, d, http.MethodPost, "/api/v1/observations/cleanup", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestScanEndpoint(t *testing.T) {
	d := testDaemon(t, false)

	w, out := doRequest(t, d, http.MethodPost, "/api/v1/scan", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotZero(t, out["frequency"])
	assert.Contains(t, out, "busy")
}

func TestObservationWebSocket(t *testing.T) {
	d := testDaemon(t, false)

	server := httptest.NewServer(d.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/observations"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return d.hub.Clients() == 1
	}, 2*time.Second, 10*time.Millisecond)

	w, _ := doRequest(t, d, http.MethodPost, "/api/v1/pcc", `{"type1":"03AB123452"}`)
	require.Equal(t, http.StatusOK, w.Code)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type        string `json:"type"`
		Observation struct {
			Type                string `json:"type"`
			TransmitterIdentity uint16 `json:"transmitter_identity"`
			ShortNetworkID      uint8  `json:"short_network_id"`
		} `json:"observation"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "observation", msg.Type)
	assert.Equal(t, "10", msg.Observation.Type)
	assert.Equal(t, uint16(0x1234), msg.Observation.TransmitterIdentity)
	assert.Equal(t, uint8(0xAB), msg.Observation.ShortNetworkID)
}

func TestObservationHubDropsForSlowClients(t *testing.T) {
	hub := newObservationHub()
	id, ch := hub.subscribe()

	for i := 0; i < clientBuffer+10; i++ {
		hub.Observe(firmware.Observation{Type: "10", TransmitterIdentity: uint16(i)})
	}
	assert.Len(t, ch, clientBuffer)

	hub.unsubscribe(id)
	assert.Equal(t, 0, hub.Clients())
	hub.Stop()
	hub.Stop()
}
