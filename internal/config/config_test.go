package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/studioforge/studiorpc/internal/errors"
	"github.com/studioforge/studiorpc/internal/logging"
	"github.com/studioforge/studiorpc/internal/protocol"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManagerAt(filepath.Join(t.TempDir(), "studiorpc", "profiles.yaml"))
	if err != nil {
		t.Fatalf("NewManagerAt: %v", err)
	}
	m.getenv = func(string) string { return "" }
	return m
}

func envMap(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestDefaultConfigCreated(t *testing.T) {
	m := newTestManager(t)

	profile, err := m.LoadProfile("default")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if _, err := os.Stat(m.GetConfigPath()); err != nil {
		t.Fatalf("default file not written: %v", err)
	}

	if profile.ServerURL != DefaultServerURL || profile.RequestTimeout != 30*time.Second ||
		profile.ConnectTimeout != 10*time.Second || profile.MaxReconnectAttempts != 5 {
		t.Fatalf("unexpected default profile %+v", profile)
	}
	if !profile.Reconnects() {
		t.Fatal("auto reconnect should default to on")
	}
}

func TestProfileRoundTripThroughFile(t *testing.T) {
	m := newTestManager(t)
	off := false
	p := &Profile{
		Name:                 "staging",
		ServerURL:            "wss://studio.example.com/rpc",
		RequestTimeout:       45 * time.Second,
		ConnectTimeout:       5 * time.Second,
		MaxReconnectAttempts: 3,
		ReconnectBaseDelay:   500 * time.Millisecond,
		ReconnectMaxDelay:    8 * time.Second,
		MaxPending:           64,
		AutoReconnect:        &off,
	}
	if err := m.SaveProfile(p); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}

	m.InvalidateCache()
	loaded, err := m.LoadProfile("staging")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if loaded.RequestTimeout != 45*time.Second || loaded.ReconnectBaseDelay != 500*time.Millisecond || loaded.Reconnects() {
		t.Fatalf("profile changed on disk: %+v", loaded)
	}

	names, _ := m.ListProfiles()
	if len(names) != 2 || names[0] != "default" || names[1] != "staging" {
		t.Fatalf("ListProfiles = %v", names)
	}

	if err := m.DeleteProfile("default"); err == nil {
		t.Fatal("default profile must not be deletable")
	}
	if err := m.DeleteProfile("staging"); err != nil {
		t.Fatalf("DeleteProfile: %v", err)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	m := newTestManager(t)
	m.getenv = envMap(map[string]string{
		EnvURL:                  "ws://10.0.0.5:9000/rpc",
		EnvRequestTimeout:       "1500",
		EnvConnectTimeout:       "3s",
		EnvMaxReconnectAttempts: "8",
	})

	p, err := m.LoadProfile("default")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if p.ServerURL != "ws://10.0.0.5:9000/rpc" || p.RequestTimeout != 1500*time.Millisecond ||
		p.ConnectTimeout != 3*time.Second || p.MaxReconnectAttempts != 8 {
		t.Fatalf("overrides not applied: %+v", p)
	}

	m.getenv = envMap(map[string]string{EnvMaxReconnectAttempts: "many"})
	if _, err := m.LoadProfile("default"); err == nil {
		t.Fatal("invalid override should fail")
	}
}

func TestValidateProfile(t *testing.T) {
	m := newTestManager(t)
	valid := func() *Profile {
		p := &Profile{Name: "x", ServerURL: "ws://localhost:8080/rpc"}
		applyProfileDefaults(p)
		return p
	}

	if err := m.ValidateProfile(valid()); err != nil {
		t.Fatalf("valid profile rejected: %v", err)
	}

	tests := map[string]func(p *Profile){
		"empty name":     func(p *Profile) { p.Name = " " },
		"http scheme":    func(p *Profile) { p.ServerURL = "http://localhost:8080" },
		"no host":        func(p *Profile) { p.ServerURL = "ws:///rpc" },
		"zero timeout":   func(p *Profile) { p.RequestTimeout = 0 },
		"negative tries": func(p *Profile) { p.MaxReconnectAttempts = -1 },
		"cap below base": func(p *Profile) { p.ReconnectMaxDelay = p.ReconnectBaseDelay / 2 },
	}
	for name, mutate := range tests {
		p := valid()
		mutate(p)
		if err := m.ValidateProfile(p); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestValidateProfileReportsEveryProblem(t *testing.T) {
	m := newTestManager(t)
	p := &Profile{Name: "broken", ServerURL: "http://localhost:8080"}
	applyProfileDefaults(p)
	p.MaxReconnectAttempts = -1
	p.RequestTimeout = -time.Second

	err := m.ValidateProfile(p)
	var ce *errors.ContextualError
	if !stderrors.As(err, &ce) {
		t.Fatalf("expected a ContextualError, got %v", err)
	}
	if ce.Type != errors.ErrorTypeConfiguration || ce.Code != "invalid_server_url" || ce.Context["error_count"] != 3 {
		t.Fatalf("unexpected combined error %+v", ce)
	}
	for _, want := range []string{"ws:// or wss://", "timeouts must be positive", "cannot be negative"} {
		if !strings.Contains(ce.Message, want) {
			t.Errorf("combined message missing %q: %s", want, ce.Message)
		}
	}
	if hints := ce.GetRecoveryHints(); len(hints) != 1 || hints[0] != "edit "+m.GetConfigPath() {
		t.Fatalf("hints = %v", hints)
	}
}

func TestClientOptions(t *testing.T) {
	p := &Profile{Name: "x", ServerURL: "ws://h:1/rpc"}
	applyProfileDefaults(p)
	p.MaxReconnectAttempts = 7

	opts := p.ClientOptions()
	if opts.URL != "ws://h:1/rpc" || opts.Retry.MaxAttempts != 7 || opts.DisableAutoReconnect {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts.Retry.InitialDelay != protocol.DefaultReconnectBaseDelay {
		t.Fatalf("base delay = %s", opts.Retry.InitialDelay)
	}
}

func TestServerConfig(t *testing.T) {
	m := newTestManager(t)
	m.getenv = envMap(map[string]string{EnvListen: "127.0.0.1:9999"})

	sc, err := m.LoadServerConfig()
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if sc.ListenAddr != "127.0.0.1:9999" || sc.Path != "/rpc" || sc.Latency.Create != 300*time.Millisecond {
		t.Fatalf("unexpected server config %+v", sc)
	}
}

func TestLoggingConfig(t *testing.T) {
	m := newTestManager(t)
	lc, err := m.LoadLoggingConfig()
	if err != nil {
		t.Fatalf("LoadLoggingConfig: %v", err)
	}

	t.Setenv(EnvDebug, "")
	cfg := lc.LoggerConfig("studiod")
	if cfg.Level != logging.InfoLevel || cfg.Output != "stderr" || cfg.Component != "studiod" {
		t.Fatalf("unexpected logger config %+v", cfg)
	}

	t.Setenv(EnvDebug, "true")
	if cfg := lc.LoggerConfig("studiod"); cfg.Level != logging.DebugLevel {
		t.Fatal("STUDIORPC_DEBUG should force debug level")
	}
}

func TestMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	if err := os.WriteFile(path, []byte("profiles: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	m, err := NewManagerAt(path)
	if err != nil {
		t.Fatalf("NewManagerAt: %v", err)
	}
	if _, err := m.ListProfiles(); err == nil {
		t.Fatal("expected parse error")
	}
}
