package infra

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `
app:
  name: bitodash
  version: 0.0.1
server:
  addr: ":9090"
api:
  bitopro:
    rest_url: https://api.bitopro.com/v3
    ws_url: wss://stream.bitopro.com:443/ws/v1/pub/order-books
    pairs:
      - btc_twd
  notion:
    base_url: https://api.notion.com/v1
logging:
  level: debug
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Expected addr :9090, got %q", cfg.Server.Addr)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug level, got %q", cfg.Logging.Level)
	}
	// Unset knobs fall back to defaults
	if cfg.API.Finance.FxTTLMin != 30 || cfg.API.Finance.StockTTLMin != 5 {
		t.Errorf("Finance TTL defaults not applied: %+v", cfg.API.Finance)
	}
	if cfg.API.Finance.DefaultUsdTwd != 32.5 {
		t.Errorf("Expected default USD/TWD 32.5, got %v", cfg.API.Finance.DefaultUsdTwd)
	}
	if cfg.Server.ShutdownTimeout != 10 {
		t.Errorf("Expected default shutdown timeout, got %d", cfg.Server.ShutdownTimeout)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("BITODASH_BITOPRO_KEY", "env-key")
	t.Setenv("BITODASH_BITOPRO_SECRET", "env-secret")
	t.Setenv("BITODASH_ADDR", ":7070")

	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.API.BitoPro.APIKey != "env-key" || cfg.API.BitoPro.APISecret != "env-secret" {
		t.Errorf("Env credentials not applied: %+v", cfg.API.BitoPro)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("Env addr not applied, got %q", cfg.Server.Addr)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad rest url": `
api:
  bitopro:
    rest_url: ftp://nope
    ws_url: wss://stream.bitopro.com/ws
    pairs: [btc_twd]
`,
		"bad ws url": `
api:
  bitopro:
    rest_url: https://api.bitopro.com/v3
    ws_url: https://not-a-socket
    pairs: [btc_twd]
`,
		"no pairs": `
api:
  bitopro:
    rest_url: https://api.bitopro.com/v3
    ws_url: wss://stream.bitopro.com/ws
    pairs: []
`,
	}
	for name, yaml := range cases {
		if _, err := LoadConfig(writeConfig(t, yaml)); err == nil {
			t.Errorf("%s: expected validation error, got nil", name)
		}
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}
