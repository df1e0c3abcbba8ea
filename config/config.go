package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/mcuadros/go-defaults"
)

const defaultConfigFile = "zkfingerprint.toml"

// Device backends selectable via configuration.
const (
	BackendEmulator = "emulator"
	BackendZKFP     = "zkfp"
)

type DeviceConfig struct {
	// Backend selects the scanner implementation: "zkfp" for the vendor SDK
	// binding, "emulator" for the software device.
	Backend string `toml:"backend" default:"emulator"`

	// SpoolDir is where the emulator looks for scan images.
	SpoolDir string `toml:"spool_dir" default:"scans"`

	// MemoryCapacity caps emulator on-board template slots.
	MemoryCapacity int `toml:"memory_capacity" default:"2000"`

	// MatchThreshold is the minimum identification score on the vendor
	// 0..100 scale, shared by on-device matching and the local fallback.
	MatchThreshold int `toml:"match_threshold" default:"55"`
}

type WorkflowConfig struct {
	// SampleCount is how many captures of the same finger an enrollment
	// merges. The zkfp backend only accepts 3; the SDK's merge takes
	// exactly three samples.
	SampleCount int `toml:"sample_count" default:"3"`

	// CaptureTimeoutSecs bounds each individual wait for a finger.
	CaptureTimeoutSecs int `toml:"capture_timeout_secs" default:"15"`
}

type Config struct {
	ListenAddr   string `toml:"listen_addr" default:":8475"`
	DatabasePath string `toml:"database_path" default:"fingerprints.db"`

	// PreviewDir receives a PNG of the final capture of each successful
	// enrollment.
	PreviewDir string `toml:"preview_dir" default:"fingerprint_images"`

	// LogDir enables daily-rotated file logging when non-empty.
	LogDir string `toml:"log_dir" default:""`

	Device   DeviceConfig   `toml:"device"`
	Workflow WorkflowConfig `toml:"workflow"`
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

// LoadConfig builds the effective configuration in three layers: struct-tag
// defaults, then an optional TOML file (ZKFP_CONFIG or ./zkfingerprint.toml),
// then environment variable overrides.
func LoadConfig() (Config, error) {
	var cfg Config
	defaults.SetDefaults(&cfg)

	path := getEnvOrDefault("ZKFP_CONFIG", defaultConfigFile)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	} else if os.Getenv("ZKFP_CONFIG") != "" {
		return Config{}, fmt.Errorf("config file %s not readable: %w", path, err)
	}

	cfg.ListenAddr = getEnvOrDefault("ZKFP_LISTEN_ADDR", cfg.ListenAddr)
	cfg.DatabasePath = getEnvOrDefault("ZKFP_DATABASE_PATH", cfg.DatabasePath)
	cfg.PreviewDir = getEnvOrDefault("ZKFP_PREVIEW_DIR", cfg.PreviewDir)
	cfg.LogDir = getEnvOrDefault("ZKFP_LOG_DIR", cfg.LogDir)
	cfg.Device.Backend = getEnvOrDefault("ZKFP_DEVICE_BACKEND", cfg.Device.Backend)
	cfg.Device.SpoolDir = getEnvOrDefault("ZKFP_SPOOL_DIR", cfg.Device.SpoolDir)
	cfg.Device.MemoryCapacity = getEnvIntOrDefault("ZKFP_MEMORY_CAPACITY", cfg.Device.MemoryCapacity)
	cfg.Device.MatchThreshold = getEnvIntOrDefault("ZKFP_MATCH_THRESHOLD", cfg.Device.MatchThreshold)
	cfg.Workflow.SampleCount = getEnvIntOrDefault("ZKFP_SAMPLE_COUNT", cfg.Workflow.SampleCount)
	cfg.Workflow.CaptureTimeoutSecs = getEnvIntOrDefault("ZKFP_CAPTURE_TIMEOUT", cfg.Workflow.CaptureTimeoutSecs)

	if cfg.Device.Backend != BackendEmulator && cfg.Device.Backend != BackendZKFP {
		return Config{}, fmt.Errorf("unknown device backend %q", cfg.Device.Backend)
	}
	if cfg.Device.Backend == BackendZKFP && cfg.Workflow.SampleCount != 3 {
		return Config{}, fmt.Errorf("zkfp backend requires sample_count 3, got %d", cfg.Workflow.SampleCount)
	}

	absPreview, err := filepath.Abs(cfg.PreviewDir)
	if err != nil {
		return Config{}, fmt.Errorf("failed to resolve preview directory %q: %w", cfg.PreviewDir, err)
	}
	cfg.PreviewDir = absPreview

	return cfg, nil
}
