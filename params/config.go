package params

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// DispatchMode selects how the scheduler treats sends inside a tick.
type DispatchMode string

const (
	// ModeFireAndForget starts every send on its own goroutine and never waits
	// for it inside the tick. Matches the reference client.
	ModeFireAndForget DispatchMode = "fire-and-forget"
	// ModeAwait finishes each send before the next one in the same tick,
	// so at most one request is in flight.
	ModeAwait DispatchMode = "await"
)

var ErrUnknownMode = errors.New("params: unknown dispatch mode")

// ParseMode accepts the canonical names plus a few short aliases.
func ParseMode(s string) (DispatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fire-and-forget", "fireandforget", "ff", "":
		return ModeFireAndForget, nil
	case "await", "await-each", "sequential":
		return ModeAwait, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

type Target struct {
	URL string `validate:"required,url"`
	// SendTimeout bounds a single request. Zero means no timeout.
	SendTimeout time.Duration `validate:"gte=0"`
}

type Dispatch struct {
	Orders    int `validate:"gte=0"`
	BatchSize int `validate:"gte=1"`
	// TickInterval is the cadence of batch claims. Values <= 0 run the loop
	// as fast as the runtime schedules the ticker.
	TickInterval time.Duration
	Mode         DispatchMode `validate:"oneof=fire-and-forget await"`
	// MaxInFlight caps concurrent fire-and-forget sends. Zero leaves the
	// load unbounded (stress behaviour of the reference client).
	MaxInFlight int `validate:"gte=0"`
	// Seed for the order generator. Zero seeds from the wall clock.
	Seed int64
}

type Node struct {
	StatusAddr string
	SinkAddr   string
	// SinkDelay slows every sink response down. Smoke-test knob only.
	SinkDelay time.Duration `validate:"gte=0"`
	LogFile   string
	Verbose   bool
}

type Config struct {
	Target   Target
	Dispatch Dispatch
	Node     Node
}

func Default() Config {
	return Config{
		Target: Target{
			URL: "http://127.0.0.1:8000/orders",
		},
		Dispatch: Dispatch{
			Orders:       1000,
			BatchSize:    100,
			TickInterval: time.Millisecond,
			Mode:         ModeFireAndForget,
		},
		Node: Node{
			SinkAddr: ":8000",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) (Config, error) {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Target.URL = getEnv("TARGET_URL", cfg.Target.URL)

	var err error
	if cfg.Dispatch.Orders, err = envInt("ORDER_COUNT", cfg.Dispatch.Orders); err != nil {
		return cfg, err
	}
	if cfg.Dispatch.BatchSize, err = envInt("BATCH_SIZE", cfg.Dispatch.BatchSize); err != nil {
		return cfg, err
	}
	if cfg.Dispatch.MaxInFlight, err = envInt("MAX_INFLIGHT", cfg.Dispatch.MaxInFlight); err != nil {
		return cfg, err
	}
	if cfg.Dispatch.TickInterval, err = envMillis("TICK_INTERVAL_MS", cfg.Dispatch.TickInterval); err != nil {
		return cfg, err
	}
	if cfg.Target.SendTimeout, err = envMillis("SEND_TIMEOUT_MS", cfg.Target.SendTimeout); err != nil {
		return cfg, err
	}
	if seed := os.Getenv("ORDER_SEED"); seed != "" {
		n, err := strconv.ParseInt(seed, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("ORDER_SEED: %w", err)
		}
		cfg.Dispatch.Seed = n
	}
	if mode := os.Getenv("DISPATCH_MODE"); mode != "" {
		m, err := ParseMode(mode)
		if err != nil {
			return cfg, err
		}
		cfg.Dispatch.Mode = m
	}

	cfg.Node.StatusAddr = getEnv("STATUS_ADDR", cfg.Node.StatusAddr)
	cfg.Node.SinkAddr = getEnv("SINK_ADDR", cfg.Node.SinkAddr)
	if cfg.Node.SinkDelay, err = envMillis("SINK_DELAY_MS", cfg.Node.SinkDelay); err != nil {
		return cfg, err
	}
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)
	if v := os.Getenv("VERBOSE"); v != "" {
		cfg.Node.Verbose = v == "true" || v == "1"
	}

	return cfg, nil
}

var validate = validator.New()

// Validate checks the struct tags above. Call it after flags are applied.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("params: invalid config: %w", err)
	}
	return nil
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envMillis(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
