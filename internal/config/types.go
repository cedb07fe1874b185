// Package config loads, validates and defaults the process
// configuration from YAML and environment variables.
package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Config is the root configuration for VendaZap.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway,omitempty"`
	Database DatabaseConfig `yaml:"database,omitempty"`
	Bridge   BridgeConfig   `yaml:"bridge,omitempty"`
	NLU      NLUConfig      `yaml:"nlu,omitempty"`
	Reply    ReplyConfig    `yaml:"reply,omitempty"`
	Session  SessionConfig  `yaml:"session,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// GatewayConfig controls the admin HTTP API.
type GatewayConfig struct {
	Port           int      `yaml:"port,omitempty"`
	Bind           string   `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string   `yaml:"customBindHost,omitempty"`
	AuthToken      string   `yaml:"authToken,omitempty"` // supports ${ENV_VAR}
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `yaml:"path,omitempty"` // empty means <home>/data/vendazap.db
}

// BridgeConfig points at the chat-network bridge.
type BridgeConfig struct {
	URL         string `yaml:"url,omitempty"`
	Token       string `yaml:"token,omitempty"` // supports ${ENV_VAR}
	EventBuffer int    `yaml:"eventBuffer,omitempty"`
}

// NLUConfig selects and tunes the language collaborator.
type NLUConfig struct {
	Provider       string `yaml:"provider,omitempty"` // "openai"
	APIKey         string `yaml:"apiKey,omitempty"`   // supports ${ENV_VAR}
	BaseURL        string `yaml:"baseUrl,omitempty"`
	Model          string `yaml:"model,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// ReplyConfig tunes the reply pipeline.
type ReplyConfig struct {
	WindowSize int      `yaml:"windowSize,omitempty"`
	Fallbacks  []string `yaml:"fallbacks,omitempty"`
}

// SessionConfig tunes chat-network session handling.
type SessionConfig struct {
	PairingWaitSeconds int `yaml:"pairingWaitSeconds,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port: 18790,
			Bind: "loopback",
		},
		Bridge: BridgeConfig{
			EventBuffer: 256,
		},
		NLU: NLUConfig{
			Provider:       "openai",
			TimeoutSeconds: 20,
		},
		Reply: ReplyConfig{
			WindowSize: 10,
		},
		Session: SessionConfig{
			PairingWaitSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}
