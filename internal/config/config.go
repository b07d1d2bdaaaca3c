// Package config loads mujina's runtime configuration from environment
// variables, with an optional .env file fallback for local development.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds every MUJINA_* knob the daemon reads at startup.
type Config struct {
	SerialDevice string
	USBVendorID  uint16
	USBProductID uint16

	BoardInitTimeout    time.Duration
	BoardFailureThreshold int
	BoardMaxAutoRetries   int
	BoardRetryInterval    time.Duration
	BoardAutoRecovery     bool

	PoolURL      string
	PoolUser     string
	PoolPassword string

	APIListenAddr string
	LogLevel      string
}

var (
	cached *Config
	loaded bool
)

// defaults mirror spec.md §6's External Interfaces table.
const (
	defaultBoardInitTimeout      = 10 * time.Second
	defaultBoardFailureThreshold = 3
	defaultBoardMaxAutoRetries   = 5
	defaultBoardRetryInterval    = 30 * time.Second
	defaultAPIListenAddr         = "127.0.0.1:4028"
	defaultLogLevel              = "info"
)

// Load reads the configuration once and caches it for subsequent calls.
func Load() (*Config, error) {
	if cached != nil && loaded {
		return cached, nil
	}

	raw := map[string]string{}

	projectRoot := findProjectRoot()
	envPath := filepath.Join(projectRoot, ".env")
	if data, err := os.ReadFile(envPath); err == nil {
		parseEnvFile(string(data), raw)
	}

	for _, key := range []string{
		"MUJINA_SERIAL_DEVICE", "MUJINA_USB_VENDOR_ID", "MUJINA_USB_PRODUCT_ID",
		"MUJINA_BOARD_INIT_TIMEOUT_SECS", "MUJINA_BOARD_FAILURE_THRESHOLD",
		"MUJINA_BOARD_MAX_AUTO_RETRIES", "MUJINA_BOARD_RETRY_INTERVAL",
		"MUJINA_BOARD_AUTO_RECOVERY", "MUJINA_POOL_URL", "MUJINA_POOL_USER",
		"MUJINA_POOL_PASSWORD", "MUJINA_API_LISTEN_ADDR", "MUJINA_LOG_LEVEL",
	} {
		if v := os.Getenv(key); v != "" {
			raw[key] = v
		}
	}

	cfg := &Config{
		SerialDevice:          raw["MUJINA_SERIAL_DEVICE"],
		BoardInitTimeout:      defaultBoardInitTimeout,
		BoardFailureThreshold: defaultBoardFailureThreshold,
		BoardMaxAutoRetries:   defaultBoardMaxAutoRetries,
		BoardRetryInterval:    defaultBoardRetryInterval,
		BoardAutoRecovery:     true,
		PoolURL:               raw["MUJINA_POOL_URL"],
		PoolUser:              raw["MUJINA_POOL_USER"],
		PoolPassword:          raw["MUJINA_POOL_PASSWORD"],
		APIListenAddr:         defaultAPIListenAddr,
		LogLevel:              defaultLogLevel,
	}

	if v, ok := raw["MUJINA_USB_VENDOR_ID"]; ok {
		cfg.USBVendorID = parseHexUint16(v)
	}
	if v, ok := raw["MUJINA_USB_PRODUCT_ID"]; ok {
		cfg.USBProductID = parseHexUint16(v)
	}
	if v, ok := raw["MUJINA_BOARD_INIT_TIMEOUT_SECS"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BoardInitTimeout = time.Duration(n) * time.Second
		}
	}
	if v, ok := raw["MUJINA_BOARD_FAILURE_THRESHOLD"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BoardFailureThreshold = n
		}
	}
	if v, ok := raw["MUJINA_BOARD_MAX_AUTO_RETRIES"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BoardMaxAutoRetries = n
		}
	}
	if v, ok := raw["MUJINA_BOARD_RETRY_INTERVAL"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BoardRetryInterval = time.Duration(n) * time.Second
		}
	}
	if v, ok := raw["MUJINA_BOARD_AUTO_RECOVERY"]; ok {
		cfg.BoardAutoRecovery = v != "0" && !strings.EqualFold(v, "false")
	}
	if v, ok := raw["MUJINA_API_LISTEN_ADDR"]; ok {
		cfg.APIListenAddr = v
	}
	if v, ok := raw["MUJINA_LOG_LEVEL"]; ok {
		cfg.LogLevel = v
	}

	cached = cfg
	loaded = true
	return cfg, nil
}

func parseHexUint16(s string) uint16 {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	n, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0
	}
	return uint16(n)
}

func parseEnvFile(content string, raw map[string]string) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		raw[key] = value
	}
}

func findProjectRoot() string {
	cwd, _ := os.Getwd()
	if _, err := os.Stat(filepath.Join(cwd, ".env")); err == nil {
		return cwd
	}
	for {
		if _, err := os.Stat(filepath.Join(cwd, "go.mod")); err == nil {
			return cwd
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return cwd
		}
		cwd = parent
	}
}

// MustLoad loads the configuration, panicking if Load returns an error. An
// unset pool URL is not an error here; the caller decides what to do.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic("mujina: failed to load configuration: " + err.Error())
	}
	return cfg
}

// Reset clears the cached configuration; used by tests.
func Reset() {
	cached = nil
	loaded = false
}
