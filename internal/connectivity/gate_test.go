package connectivity

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGate_BaseURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantOK  bool
		wantURL string
	}{
		{name: "empty", baseURL: "", wantOK: false},
		{name: "relative path", baseURL: "/api", wantOK: false},
		{name: "unsupported scheme", baseURL: "ftp://example.com", wantOK: false},
		{name: "https", baseURL: "https://example.com/api", wantOK: true, wantURL: "https://example.com/api"},
		{name: "trailing slash trimmed", baseURL: "http://localhost:3000/api/", wantOK: true, wantURL: "http://localhost:3000/api"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewGate(tt.baseURL, nil)
			got, ok := gate.BaseURL()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantURL, got)
			assert.Equal(t, tt.wantOK, gate.APIConfigured())
		})
	}
}

func TestGate_CanReachNetwork(t *testing.T) {
	monitor := NewStaticMonitor(true)
	gate := NewGate("https://example.com/api", monitor)
	assert.True(t, gate.CanReachNetwork())

	monitor.SetOnline(false)
	assert.False(t, gate.Online())
	assert.False(t, gate.CanReachNetwork())

	monitor.SetOnline(true)
	assert.False(t, NewGate("", monitor).CanReachNetwork())
}

func TestGate_NilMonitorIsOnline(t *testing.T) {
	assert.True(t, NewGate("https://example.com", nil).Online())
}

func TestDialMonitor_CachesResult(t *testing.T) {
	calls := 0
	monitor := NewDialMonitor("example.com:443", time.Second)
	monitor.dial = func(network, addr string, timeout time.Duration) (net.Conn, error) {
		calls++
		return nil, errors.New("unreachable")
	}

	assert.False(t, monitor.Reachable())
	assert.False(t, monitor.Reachable())
	assert.Equal(t, 1, calls)
}

func TestDialMonitor_Reachable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	defer listener.Close()

	monitor := NewDialMonitor(listener.Addr().String(), time.Second)
	assert.True(t, monitor.Reachable())
}
