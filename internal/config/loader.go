package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment overrides. VYNA_API_URL mirrors the web client's API url setting.
const (
	EnvAPIURL       = "VYNA_API_URL"
	EnvOrigin       = "VYNA_ORIGIN"
	EnvChatURL      = "VYNA_CHAT_URL"
	EnvLogLevel     = "VYNA_LOG_LEVEL"
	EnvDebugAddr    = "VYNA_DEBUG_ADDR"
	EnvAgentTimeout = "VYNA_AGENT_TIMEOUT"
)

// ConfigPath returns the default config file path.
func ConfigPath() string {
	return filepath.Join(homeDir(), ".vyna", "config.json")
}

// DataDir returns the vyna data directory.
func DataDir() string {
	dir := filepath.Join(homeDir(), ".vyna")
	os.MkdirAll(dir, 0o755)
	return dir
}

// Load reads .env files and the config file, falling back to defaults.
// Environment variables win over file values.
func Load() (*Config, error) {
	envErr := loadDotEnv(".env", filepath.Join(homeDir(), ".vyna", ".env"))
	cfg, err := LoadFrom(ConfigPath())
	applyEnv(cfg)
	return cfg, errors.Join(envErr, err)
}

// loadDotEnv loads each existing file. Variables already set are kept.
func loadDotEnv(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			errs = append(errs, fmt.Errorf("load %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// LoadFrom reads configuration from a specific path. The returned config is
// always usable; err reports unreadable files, unknown keys and invalid values.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return cfg, fmt.Errorf("apply config: %w", err)
	}

	applyZeroDefaults(cfg)

	var errs []error
	if unknown := CheckUnknownFields(raw); len(unknown) > 0 {
		errs = append(errs, fmt.Errorf("unknown config keys: %s", strings.Join(unknown, ", ")))
	}
	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	return cfg, errors.Join(errs...)
}

func applyZeroDefaults(cfg *Config) {
	d := DefaultConfig()
	if cfg.Backend.Origin == "" {
		cfg.Backend.Origin = d.Backend.Origin
	}
	if cfg.Backend.ChatURL == "" {
		cfg.Backend.ChatURL = d.Backend.ChatURL
	}
	if cfg.Session.AgentTimeoutS == 0 {
		cfg.Session.AgentTimeoutS = d.Session.AgentTimeoutS
	}
	if cfg.Session.RPCTimeoutS == 0 {
		cfg.Session.RPCTimeoutS = d.Session.RPCTimeoutS
	}
	if cfg.UI.ReadingWPM == 0 {
		cfg.UI.ReadingWPM = d.UI.ReadingWPM
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = d.Logging.File
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = d.Logging.MaxSizeMB
	}
	if cfg.Debug.Addr == "" {
		cfg.Debug.Addr = d.Debug.Addr
	}
}

// applyEnv overlays VYNA_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.Backend.ConnectionURL = v
	}
	if v := os.Getenv(EnvOrigin); v != "" {
		cfg.Backend.Origin = v
	}
	if v := os.Getenv(EnvChatURL); v != "" {
		cfg.Backend.ChatURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvDebugAddr); v != "" {
		cfg.Debug.Enabled = true
		cfg.Debug.Addr = v
	}
	if v := os.Getenv(EnvAgentTimeout); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Session.AgentTimeoutS = n
		}
	}
}

// Save writes configuration to disk.
func Save(cfg *Config) error {
	return SaveTo(cfg, ConfigPath())
}

// SaveTo writes configuration to a specific path.
func SaveTo(cfg *Config, path string) error {
	os.MkdirAll(filepath.Dir(path), 0o755)

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

// Upgrade reads the existing config file, deep-merges it on top of
// DefaultConfig (local values win), and saves the result.
func Upgrade() (*Config, error) {
	path := ConfigPath()

	defaultData, _ := json.Marshal(DefaultConfig())
	var defaultMap map[string]any
	json.Unmarshal(defaultData, &defaultMap)

	localData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var localMap map[string]any
	if err := json.Unmarshal(localData, &localMap); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	merged, _ := json.Marshal(deepMerge(defaultMap, localMap))
	cfg := DefaultConfig()
	if err := json.Unmarshal(merged, cfg); err != nil {
		return nil, fmt.Errorf("apply merged config: %w", err)
	}

	if err := Save(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// deepMerge recursively merges src into dst. Values from src take priority.
func deepMerge(dst, src map[string]any) map[string]any {
	result := make(map[string]any, len(dst))
	for k, v := range dst {
		result[k] = v
	}
	for k, srcVal := range src {
		dstVal, exists := result[k]
		if !exists {
			result[k] = srcVal
			continue
		}
		dstMap, dstOK := dstVal.(map[string]any)
		srcMap, srcOK := srcVal.(map[string]any)
		if dstOK && srcOK {
			result[k] = deepMerge(dstMap, srcMap)
		} else {
			result[k] = srcVal
		}
	}
	return result
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp"
	}
	return home
}
