package config

import (
	"path/filepath"
	"time"
)

// Config is the root configuration for vyna.
type Config struct {
	Backend BackendConfig `json:"backend"`
	Session SessionConfig `json:"session"`
	UI      UIConfig      `json:"ui"`
	Logging LoggingConfig `json:"logging"`
	Debug   DebugConfig   `json:"debug"`
}

// BackendConfig holds the HTTP endpoints vyna talks to.
type BackendConfig struct {
	// Origin is the base a relative connection endpoint is resolved against.
	Origin string `json:"origin"`
	// ConnectionURL is the connection-details endpoint (VYNA_API_URL).
	ConnectionURL string `json:"connectionUrl,omitempty"`
	// ChatURL is the base url of the chat backend.
	ChatURL string `json:"chatUrl"`
}

// SessionConfig holds real-time session settings.
type SessionConfig struct {
	AgentTimeoutS   int    `json:"agentTimeoutSeconds"`
	RPCTimeoutS     int    `json:"rpcTimeoutSeconds"`
	ParticipantName string `json:"participantName,omitempty"`
}

// AgentTimeout returns the watchdog timeout.
func (s SessionConfig) AgentTimeout() time.Duration {
	return time.Duration(s.AgentTimeoutS) * time.Second
}

// RPCTimeout returns how long a remote command may wait for the session loop.
func (s SessionConfig) RPCTimeout() time.Duration {
	return time.Duration(s.RPCTimeoutS) * time.Second
}

// UIConfig holds terminal presentation settings.
type UIConfig struct {
	// ReadingWPM paces reply playback.
	ReadingWPM int  `json:"readingWpm"`
	ShowTimes  bool `json:"showTimes"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level      string `json:"level"`
	File       string `json:"file"`
	MaxSizeMB  int    `json:"maxSizeMb"`
	MaxBackups int    `json:"maxBackups"`
	MaxAgeDays int    `json:"maxAgeDays"`
}

// FilePath returns the expanded log file path.
func (l LoggingConfig) FilePath() string {
	return expandHome(l.File)
}

// DebugConfig holds the local inspector settings.
type DebugConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			Origin:  "http://localhost:3000",
			ChatURL: "http://localhost:3000",
		},
		Session: SessionConfig{
			AgentTimeoutS: 20,
			RPCTimeoutS:   10,
		},
		UI: UIConfig{
			ReadingWPM: 200,
			ShowTimes:  true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "~/.vyna/vyna.log",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Debug: DebugConfig{
			Addr: "127.0.0.1:7468",
		},
	}
}

func expandHome(path string) string {
	if len(path) > 1 && path[:2] == "~/" {
		home := homeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
