package config

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"

	"ytdle/internal/history"
)

// Keys for persisted defaults in the settings table.
const (
	KeyDefaultOutputDir = "default_output_dir"
	KeyDefaultFormat    = "default_format"
	KeyDefaultQuality   = "default_quality"
	KeyMaxConcurrent    = "max_concurrent"
	KeyAPIPort          = "api_port"
	KeyAPIToken         = "api_token"
	KeyComputeChecksum  = "compute_checksum"
)

// Manager reads and writes user defaults persisted in the history database's
// settings table. Missing or unparsable values fall back to built-ins.
type Manager struct {
	store *history.Store
}

func NewManager(s *history.Store) *Manager {
	return &Manager{store: s}
}

func (m *Manager) GetDefaultOutputDir() string {
	val, err := m.store.GetSetting(KeyDefaultOutputDir)
	if err != nil {
		return ""
	}
	return val
}

func (m *Manager) SetDefaultOutputDir(dir string) error {
	return m.store.SetSetting(KeyDefaultOutputDir, dir)
}

func (m *Manager) GetDefaultFormat() Kind {
	val, err := m.store.GetSetting(KeyDefaultFormat)
	if err != nil || val == "" {
		return Audio
	}
	kind, err := ParseKind(val)
	if err != nil {
		return Audio
	}
	return kind
}

func (m *Manager) SetDefaultFormat(k Kind) error {
	return m.store.SetSetting(KeyDefaultFormat, string(k))
}

func (m *Manager) GetDefaultQuality() string {
	val, err := m.store.GetSetting(KeyDefaultQuality)
	if err != nil {
		return ""
	}
	return val
}

func (m *Manager) SetDefaultQuality(q string) error {
	return m.store.SetSetting(KeyDefaultQuality, q)
}

func (m *Manager) GetMaxConcurrent() int {
	valStr, err := m.store.GetSetting(KeyMaxConcurrent)
	if err != nil || valStr == "" {
		return DefaultMaxConcurrent
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val < 1 {
		return DefaultMaxConcurrent
	}
	return val
}

func (m *Manager) SetMaxConcurrent(n int) error {
	return m.store.SetSetting(KeyMaxConcurrent, strconv.Itoa(n))
}

// GetAPIPort returns the control API port; 0 selects an ephemeral port.
func (m *Manager) GetAPIPort() int {
	valStr, err := m.store.GetSetting(KeyAPIPort)
	if err != nil || valStr == "" {
		return 0
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val < 0 || val > 65535 {
		return 0
	}
	return val
}

func (m *Manager) SetAPIPort(port int) error {
	return m.store.SetSetting(KeyAPIPort, strconv.Itoa(port))
}

// GetAPIToken returns the control API token, generating and persisting one
// on first use.
func (m *Manager) GetAPIToken() string {
	val, err := m.store.GetSetting(KeyAPIToken)
	if err != nil || val == "" {
		token := generateSecureToken()
		m.store.SetSetting(KeyAPIToken, token)
		return token
	}
	return val
}

func (m *Manager) GetComputeChecksum() bool {
	val, err := m.store.GetSetting(KeyComputeChecksum)
	if err != nil {
		return false
	}
	return val == "true"
}

func (m *Manager) SetComputeChecksum(enabled bool) error {
	val := "false"
	if enabled {
		val = "true"
	}
	return m.store.SetSetting(KeyComputeChecksum, val)
}

func generateSecureToken() string {
	b := make([]byte, 16) // 16 bytes = 32 hex chars
	if _, err := rand.Read(b); err != nil {
		// Fallback (extremely unlikely)
		return "ytdle-fallback-token-change-me"
	}
	return hex.EncodeToString(b)
}
