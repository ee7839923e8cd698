// Package config implements configuration management for the studio RPC
// client and peer: named client profiles, console themes, peer settings and
// logging, stored in one YAML file and overridable from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/studioforge/studiorpc/internal/errors"
	"github.com/studioforge/studiorpc/internal/interfaces"
	"github.com/studioforge/studiorpc/internal/logging"
	"github.com/studioforge/studiorpc/internal/protocol"
	"github.com/studioforge/studiorpc/internal/studio"
)

// Environment variables consulted on top of the file
const (
	EnvURL                  = "STUDIORPC_URL"
	EnvRequestTimeout       = "STUDIORPC_REQUEST_TIMEOUT"
	EnvConnectTimeout       = "STUDIORPC_CONNECT_TIMEOUT"
	EnvMaxReconnectAttempts = "STUDIORPC_MAX_RECONNECT_ATTEMPTS"
	EnvListen               = "STUDIORPC_LISTEN"
	EnvDebug                = "STUDIORPC_DEBUG"
)

// DefaultServerURL is the endpoint of a locally running studiod
const DefaultServerURL = "ws://localhost:8080/rpc"

// Profile is a named set of client connection settings
type Profile struct {
	Name                 string        `yaml:"name"`
	ServerURL            string        `yaml:"server_url"`
	RequestTimeout       time.Duration `yaml:"request_timeout"`
	ConnectTimeout       time.Duration `yaml:"connect_timeout"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	MaxPending           int           `yaml:"max_pending"`
	Theme                string        `yaml:"theme"`
	AutoReconnect        *bool         `yaml:"auto_reconnect,omitempty"`
}

// Reconnects reports whether the profile enables automatic reconnection (default on)
func (p *Profile) Reconnects() bool {
	return p.AutoReconnect == nil || *p.AutoReconnect
}

// ClientOptions converts the profile into protocol client options
func (p *Profile) ClientOptions() protocol.Options {
	opts := protocol.DefaultOptions(p.ServerURL)
	opts.RequestTimeout = p.RequestTimeout
	opts.ConnectTimeout = p.ConnectTimeout
	opts.MaxPending = p.MaxPending
	opts.DisableAutoReconnect = !p.Reconnects()
	opts.Retry.MaxAttempts = p.MaxReconnectAttempts
	opts.Retry.InitialDelay = p.ReconnectBaseDelay
	opts.Retry.MaxDelay = p.ReconnectMaxDelay
	return opts
}

// Theme holds console colours
type Theme struct {
	Name    string `yaml:"name"`
	Success string `yaml:"success"`
	Error   string `yaml:"error"`
	Warning string `yaml:"warning"`
	Info    string `yaml:"info"`
	Muted   string `yaml:"muted"`
}

// ServerConfig configures the studiod peer
type ServerConfig struct {
	ListenAddr string         `yaml:"listen_addr"`
	Path       string         `yaml:"path"`
	Name       string         `yaml:"name"`
	Latency    studio.Latency `yaml:"latency"`
}

// LoggingConfig is the file form of logging.Config
type LoggingConfig struct {
	Level    string           `yaml:"level"`
	Format   string           `yaml:"format"`
	Output   string           `yaml:"output"`
	Rotation logging.Rotation `yaml:"rotation"`
}

// LoggerConfig converts the file settings for component, honouring STUDIORPC_DEBUG
func (l LoggingConfig) LoggerConfig(component string) logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Component = component
	if l.Level != "" {
		cfg.Level = logging.ParseLevel(l.Level)
	}
	if l.Format != "" {
		cfg.Format = l.Format
	}
	if l.Output != "" {
		cfg.Output = l.Output
	}
	if l.Rotation != (logging.Rotation{}) {
		cfg.Rotation = l.Rotation
	}
	if debugEnabled(os.Getenv) {
		cfg.Level = logging.DebugLevel
	}
	return cfg
}

// Config represents the complete configuration file structure
type Config struct {
	Profiles map[string]Profile `yaml:"profiles"`
	Themes   map[string]Theme   `yaml:"themes"`
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
}

// Manager implements the ConfigManager interface over a YAML file
type Manager struct {
	configPath string
	getenv     func(string) string
	logger     *logging.Logger

	mutex        sync.Mutex
	cachedConfig *Config
}

var _ interfaces.ConfigManager = (*Manager)(nil)

// NewManager creates a manager for the per-user configuration file
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to determine configuration path: %w", err)
	}
	return NewManagerAt(configPath)
}

// NewManagerAt creates a manager for the file at configPath
func NewManagerAt(configPath string) (*Manager, error) {
	m := &Manager{
		configPath: configPath,
		getenv:     os.Getenv,
		logger:     logging.GetConfigLogger(),
	}
	if err := m.ensureConfigDirectory(); err != nil {
		return nil, fmt.Errorf("failed to create configuration directory: %w", err)
	}
	return m, nil
}

// getConfigPath determines the configuration file path following XDG conventions
func getConfigPath() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "studiorpc", "profiles.yaml"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "studiorpc", "profiles.yaml"), nil
}

func (m *Manager) ensureConfigDirectory() error {
	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}
	return nil
}

// loadConfig reads and parses the configuration file, creating defaults if necessary.
// Callers hold m.mutex.
func (m *Manager) loadConfig() (*Config, error) {
	if m.cachedConfig != nil {
		return m.cachedConfig, nil
	}

	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		config := createDefaultConfig()
		if err := m.saveConfig(config); err != nil {
			return nil, fmt.Errorf("failed to create default configuration: %w", err)
		}
		m.logger.Info("Created default configuration", "path", m.configPath)
		m.cachedConfig = config
		return config, nil
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		m.logger.LogConfigError("parse", err)
		return nil, fmt.Errorf("failed to parse configuration file: %w", err)
	}
	if config.Profiles == nil {
		config.Profiles = make(map[string]Profile)
	}
	if config.Themes == nil {
		config.Themes = defaultThemes()
	}

	m.cachedConfig = &config
	return &config, nil
}

func (m *Manager) saveConfig(config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}

func createDefaultConfig() *Config {
	enabled := true
	return &Config{
		Profiles: map[string]Profile{
			"default": {
				Name:                 "default",
				ServerURL:            DefaultServerURL,
				RequestTimeout:       protocol.DefaultRequestTimeout,
				ConnectTimeout:       protocol.DefaultConnectTimeout,
				MaxReconnectAttempts: protocol.DefaultMaxReconnectAttempts,
				ReconnectBaseDelay:   protocol.DefaultReconnectBaseDelay,
				ReconnectMaxDelay:    protocol.DefaultReconnectMaxDelay,
				MaxPending:           protocol.DefaultMaxPending,
				Theme:                "github",
				AutoReconnect:        &enabled,
			},
		},
		Themes:  defaultThemes(),
		Server:  DefaultServerConfig(),
		Logging: LoggingConfig{Level: "info", Format: "text", Output: "stderr"},
	}
}

func defaultThemes() map[string]Theme {
	return map[string]Theme{
		"github": {
			Name:    "github",
			Success: "#28a745",
			Error:   "#dc3545",
			Warning: "#ffc107",
			Info:    "#17a2b8",
			Muted:   "#6a737d",
		},
		"monokai": {
			Name:    "monokai",
			Success: "#a6e22e",
			Error:   "#f92672",
			Warning: "#fd971f",
			Info:    "#66d9ef",
			Muted:   "#75715e",
		},
	}
}

// DefaultServerConfig returns the peer settings used when the file has none
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr: ":8080",
		Path:       "/rpc",
		Name:       "studiod",
		Latency:    studio.DefaultLatency(),
	}
}

// LoadProfile retrieves a profile by name with defaults and environment overrides applied
func (m *Manager) LoadProfile(name string) (*Profile, error) {
	m.mutex.Lock()
	config, err := m.loadConfig()
	m.mutex.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	profile, exists := config.Profiles[name]
	if !exists {
		return nil, fmt.Errorf("profile '%s' not found", name)
	}
	profile.Name = name
	applyProfileDefaults(&profile)

	if err := ApplyEnv(&profile, m.getenv); err != nil {
		return nil, err
	}
	if err := m.ValidateProfile(&profile); err != nil {
		return nil, fmt.Errorf("profile '%s' is invalid: %w", name, err)
	}

	m.logger.LogConfigLoad(m.configPath, name)
	return &profile, nil
}

// SaveProfile persists a profile to the configuration file
func (m *Manager) SaveProfile(profile *Profile) error {
	if err := m.ValidateProfile(profile); err != nil {
		return fmt.Errorf("cannot save invalid profile: %w", err)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	config, err := m.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	config.Profiles[profile.Name] = *profile

	if err := m.saveConfig(config); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	return nil
}

// DeleteProfile removes a profile; the default profile cannot be deleted
func (m *Manager) DeleteProfile(name string) error {
	if name == "default" {
		return fmt.Errorf("cannot delete the default profile")
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	config, err := m.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if _, exists := config.Profiles[name]; !exists {
		return fmt.Errorf("profile '%s' does not exist", name)
	}
	delete(config.Profiles, name)

	return m.saveConfig(config)
}

// ListProfiles returns all available profile names, sorted
func (m *Manager) ListProfiles() ([]string, error) {
	m.mutex.Lock()
	config, err := m.loadConfig()
	m.mutex.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	names := make([]string, 0, len(config.Profiles))
	for name := range config.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// LoadTheme retrieves theme configuration by name
func (m *Manager) LoadTheme(name string) (*Theme, error) {
	m.mutex.Lock()
	config, err := m.loadConfig()
	m.mutex.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	theme, exists := config.Themes[name]
	if !exists {
		return nil, fmt.Errorf("theme '%s' not found", name)
	}
	theme.Name = name
	return &theme, nil
}

// LoadServerConfig returns the peer settings with defaults and STUDIORPC_LISTEN applied
func (m *Manager) LoadServerConfig() (*ServerConfig, error) {
	m.mutex.Lock()
	config, err := m.loadConfig()
	m.mutex.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	server := config.Server
	defaults := DefaultServerConfig()
	if server.ListenAddr == "" {
		server.ListenAddr = defaults.ListenAddr
	}
	if server.Path == "" {
		server.Path = defaults.Path
	}
	if server.Name == "" {
		server.Name = defaults.Name
	}
	if server.Latency == (studio.Latency{}) {
		server.Latency = defaults.Latency
	}
	if listen := m.getenv(EnvListen); listen != "" {
		server.ListenAddr = listen
	}

	if !strings.HasPrefix(server.Path, "/") {
		return nil, fmt.Errorf("server path must start with '/': %q", server.Path)
	}
	return &server, nil
}

// LoadLoggingConfig returns the logging section of the file
func (m *Manager) LoadLoggingConfig() (LoggingConfig, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	config, err := m.loadConfig()
	if err != nil {
		return LoggingConfig{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	return config.Logging, nil
}

// ValidateProfile ensures profile has usable connection settings. Every
// problem is reported, combined into one configuration error.
func (m *Manager) ValidateProfile(profile *Profile) error {
	if profile == nil {
		return fmt.Errorf("profile cannot be nil")
	}

	chain := errors.NewErrorChain(nil)
	invalid := func(field, format string, args ...interface{}) {
		msg := fmt.Sprintf(format, args...)
		chain.Add(errors.NewConfigurationError("config").
			WithCode("invalid_"+field).
			WithOperation("validate profile").
			WithMessage(msg).
			WithUserMessage(fmt.Sprintf("Profile %q: %s", profile.Name, msg)).
			WithContext("field", field).
			WithHints("edit "+m.configPath).
			WithRecoverable(false).
			WithoutStackTrace().
			WithoutLogging().
			Build())
	}

	if strings.TrimSpace(profile.Name) == "" {
		invalid("name", "profile name cannot be empty")
	}

	u, err := url.Parse(profile.ServerURL)
	switch {
	case err != nil:
		invalid("server_url", "invalid server URL: %v", err)
	case u.Scheme != "ws" && u.Scheme != "wss":
		invalid("server_url", "server URL must use ws:// or wss://, got %q", profile.ServerURL)
	case u.Host == "":
		invalid("server_url", "server URL has no host: %q", profile.ServerURL)
	}

	if profile.RequestTimeout <= 0 || profile.ConnectTimeout <= 0 {
		invalid("timeout", "timeouts must be positive")
	}
	if profile.MaxReconnectAttempts < 0 {
		invalid("max_reconnect_attempts", "max reconnect attempts cannot be negative")
	}
	if profile.ReconnectBaseDelay <= 0 || profile.ReconnectMaxDelay < profile.ReconnectBaseDelay {
		invalid("reconnect_delay", "reconnect delays must satisfy 0 < base <= max")
	}

	if !chain.HasErrors() {
		return nil
	}
	return chain.ToCombinedError("config")
}

// GetConfigPath returns the path to the configuration file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// InvalidateCache clears the cached configuration, forcing a reload on next access
func (m *Manager) InvalidateCache() {
	m.mutex.Lock()
	m.cachedConfig = nil
	m.mutex.Unlock()
}

func applyProfileDefaults(p *Profile) {
	if p.ServerURL == "" {
		p.ServerURL = DefaultServerURL
	}
	if p.RequestTimeout == 0 {
		p.RequestTimeout = protocol.DefaultRequestTimeout
	}
	if p.ConnectTimeout == 0 {
		p.ConnectTimeout = protocol.DefaultConnectTimeout
	}
	if p.MaxReconnectAttempts == 0 {
		p.MaxReconnectAttempts = protocol.DefaultMaxReconnectAttempts
	}
	if p.ReconnectBaseDelay == 0 {
		p.ReconnectBaseDelay = protocol.DefaultReconnectBaseDelay
	}
	if p.ReconnectMaxDelay == 0 {
		p.ReconnectMaxDelay = protocol.DefaultReconnectMaxDelay
	}
	if p.MaxPending == 0 {
		p.MaxPending = protocol.DefaultMaxPending
	}
	if p.Theme == "" {
		p.Theme = "github"
	}
}

// ApplyEnv overlays the STUDIORPC_* variables read through getenv onto profile.
// Durations accept Go syntax ("45s") or a bare number of milliseconds.
func ApplyEnv(profile *Profile, getenv func(string) string) error {
	if v := getenv(EnvURL); v != "" {
		profile.ServerURL = v
	}
	if v := getenv(EnvRequestTimeout); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRequestTimeout, err)
		}
		profile.RequestTimeout = d
	}
	if v := getenv(EnvConnectTimeout); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvConnectTimeout, err)
		}
		profile.ConnectTimeout = d
	}
	if v := getenv(EnvMaxReconnectAttempts); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxReconnectAttempts, err)
		}
		profile.MaxReconnectAttempts = n
	}
	return nil
}

func parseDuration(v string) (time.Duration, error) {
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

func debugEnabled(getenv func(string) string) bool {
	v := strings.ToLower(getenv(EnvDebug))
	return v == "1" || v == "true" || v == "yes"
}
