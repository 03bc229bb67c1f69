// Package network provides connectivity probes, a cached status monitor,
// and a bandwidth measurement used by diagnostics.
package network

import (
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"
)

// Connectivity badge values.
const (
	StatusOnline   = "Online"
	StatusOffline  = "Offline"
	StatusChecking = "Checking"
)

// Probe defaults.
const (
	DefaultProbeAddr = "8.8.8.8:53"
	DefaultProbeURL  = "https://www.google.com"
	DefaultTimeout   = 5 * time.Second
)

// ProbeTCP reports whether a TCP connection to addr succeeds within the
// timeout. It never returns an error; any failure reads as offline.
func ProbeTCP(addr string, timeout time.Duration) bool {
	if addr == "" {
		addr = DefaultProbeAddr
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// ProbeHTTP reports whether an HTTP GET of url succeeds within the timeout.
func ProbeHTTP(url string, timeout time.Duration) bool {
	if url == "" {
		url = DefaultProbeURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(url)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

const (
	stateUnknown int32 = iota
	stateOnline
	stateOffline
)

// Monitor caches the most recent connectivity result so callers can show a
// stable badge without probing on every read.
type Monitor struct {
	// Probe targets, overridable for tests.
	Addr    string
	URL     string
	Timeout time.Duration

	logger *slog.Logger
	state  atomic.Int32
}

func NewMonitor(logger *slog.Logger) *Monitor {
	return &Monitor{
		Addr:    DefaultProbeAddr,
		URL:     DefaultProbeURL,
		Timeout: DefaultTimeout,
		logger:  logger,
	}
}

// Check runs the probes (TCP first, HTTP as fallback), caches the result and
// returns it.
func (m *Monitor) Check() bool {
	online := ProbeTCP(m.Addr, m.Timeout) || ProbeHTTP(m.URL, m.Timeout)
	if online {
		m.state.Store(stateOnline)
	} else {
		m.state.Store(stateOffline)
	}
	m.logger.Info("Network status", "status", m.Status())
	return online
}

// Status returns the cached badge. Before the first Check it reports
// StatusChecking.
func (m *Monitor) Status() string {
	switch m.state.Load() {
	case stateOnline:
		return StatusOnline
	case stateOffline:
		return StatusOffline
	default:
		return StatusChecking
	}
}

// IsOnline returns the cached result and whether a check has run yet.
func (m *Monitor) IsOnline() (online, known bool) {
	s := m.state.Load()
	return s == stateOnline, s != stateUnknown
}
