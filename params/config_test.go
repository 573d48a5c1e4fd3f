package params

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// noEnvFile keeps LoadFromEnv away from any .env in the working directory.
func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv(noEnvFile(t))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Dispatch.Orders != 1000 || cfg.Dispatch.BatchSize != 100 ||
		cfg.Dispatch.TickInterval != time.Millisecond || cfg.Dispatch.Mode != ModeFireAndForget {
		t.Errorf("defaults = %+v", cfg.Dispatch)
	}
	if cfg.Target.URL != "http://127.0.0.1:8000/orders" {
		t.Errorf("target = %s", cfg.Target.URL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("TARGET_URL", "http://sink:9000/orders")
	t.Setenv("ORDER_COUNT", "5000")
	t.Setenv("BATCH_SIZE", "500")
	t.Setenv("TICK_INTERVAL_MS", "5")
	t.Setenv("DISPATCH_MODE", "await")
	t.Setenv("MAX_INFLIGHT", "64")
	t.Setenv("SEND_TIMEOUT_MS", "250")
	t.Setenv("ORDER_SEED", "1234")
	t.Setenv("VERBOSE", "true")
	t.Setenv("SINK_DELAY_MS", "15")

	cfg, err := LoadFromEnv(noEnvFile(t))
	if err != nil {
		t.Fatal(err)
	}
	d := cfg.Dispatch
	if d.Orders != 5000 || d.BatchSize != 500 || d.TickInterval != 5*time.Millisecond ||
		d.Mode != ModeAwait || d.MaxInFlight != 64 || d.Seed != 1234 {
		t.Errorf("dispatch = %+v", d)
	}
	if cfg.Target.URL != "http://sink:9000/orders" || cfg.Target.SendTimeout != 250*time.Millisecond {
		t.Errorf("target = %+v", cfg.Target)
	}
	if !cfg.Node.Verbose || cfg.Node.SinkDelay != 15*time.Millisecond {
		t.Errorf("node = %+v", cfg.Node)
	}
}

func TestLoadFromEnv_BadValues(t *testing.T) {
	tests := []struct {
		key, val string
	}{
		{"ORDER_COUNT", "many"},
		{"TICK_INTERVAL_MS", "1s"},
		{"ORDER_SEED", "x"},
		{"DISPATCH_MODE", "yolo"},
		{"SINK_DELAY_MS", "slow"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := LoadFromEnv(noEnvFile(t)); err == nil {
				t.Errorf("%s=%s should fail", tt.key, tt.val)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]DispatchMode{
		"":                ModeFireAndForget,
		"fire-and-forget": ModeFireAndForget,
		"FF":              ModeFireAndForget,
		"await":           ModeAwait,
		" Sequential ":    ModeAwait,
	} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseMode("burst"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("unknown mode err = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{"zero batch", func(c *Config) { c.Dispatch.BatchSize = 0 }},
		{"negative orders", func(c *Config) { c.Dispatch.Orders = -1 }},
		{"negative cap", func(c *Config) { c.Dispatch.MaxInFlight = -5 }},
		{"bad url", func(c *Config) { c.Target.URL = "not a url" }},
		{"bad mode", func(c *Config) { c.Dispatch.Mode = "burst" }},
		{"negative sink delay", func(c *Config) { c.Node.SinkDelay = -time.Millisecond }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mut(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
