// Package connectivity answers whether remote I/O may be attempted right now.
//
// Every remote-touching operation consults a Checker before building a
// request, so an offline device fails fast instead of waiting for a timeout.
package connectivity

import (
	"net"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Checker is the capability consumed by the storage and sync clients.
type Checker interface {
	// Online reports live network reachability.
	Online() bool
	// BaseURL returns the remote API base URL and whether it is usable.
	BaseURL() (string, bool)
}

// Monitor reports platform network reachability.
type Monitor interface {
	Reachable() bool
}

// Gate combines a reachability monitor with the configured API base URL.
type Gate struct {
	baseURL string
	monitor Monitor
}

// NewGate creates a gate. A nil monitor means the network is assumed reachable.
func NewGate(baseURL string, monitor Monitor) *Gate {
	return &Gate{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		monitor: monitor,
	}
}

// Online reports whether the platform currently has network connectivity.
func (g *Gate) Online() bool {
	if g.monitor == nil {
		return true
	}
	return g.monitor.Reachable()
}

// BaseURL returns the API base URL when it is set and parses as http(s).
func (g *Gate) BaseURL() (string, bool) {
	if g.baseURL == "" {
		return "", false
	}
	u, err := url.Parse(g.baseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	return g.baseURL, true
}

// APIConfigured reports whether a usable remote endpoint is configured.
func (g *Gate) APIConfigured() bool {
	_, ok := g.BaseURL()
	return ok
}

// CanReachNetwork is true only when the device is online and an endpoint is configured.
func (g *Gate) CanReachNetwork() bool {
	return g.Online() && g.APIConfigured()
}

// StaticMonitor is driven by platform network events.
type StaticMonitor struct {
	online atomic.Bool
}

// NewStaticMonitor creates a monitor with the given initial state.
func NewStaticMonitor(online bool) *StaticMonitor {
	p := &StaticMonitor{}
	p.online.Store(online)
	return p
}

func (p *StaticMonitor) Reachable() bool {
	return p.online.Load()
}

// SetOnline records a platform online/offline transition.
func (p *StaticMonitor) SetOnline(online bool) {
	p.online.Store(online)
}

// DialMonitor checks reachability by dialling a TCP address. Results are
// cached for a short period so frequent checks stay cheap.
type DialMonitor struct {
	addr    string
	timeout time.Duration
	ttl     time.Duration
	dial    func(network, addr string, timeout time.Duration) (net.Conn, error)

	mu        sync.Mutex
	checkedAt time.Time
	reachable bool
}

// NewDialMonitor creates a monitor for host:port.
func NewDialMonitor(addr string, timeout time.Duration) *DialMonitor {
	return &DialMonitor{
		addr:    addr,
		timeout: timeout,
		ttl:     5 * time.Second,
		dial:    net.DialTimeout,
	}
}

func (p *DialMonitor) Reachable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.checkedAt.IsZero() && time.Since(p.checkedAt) < p.ttl {
		return p.reachable
	}

	conn, err := p.dial("tcp", p.addr, p.timeout)
	p.reachable = err == nil
	p.checkedAt = time.Now()
	if conn != nil {
		conn.Close()
	}
	return p.reachable
}
