package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so tokens and keys can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Gateway.AuthToken = expandEnvVars(cfg.Gateway.AuthToken)
	cfg.Bridge.Token = expandEnvVars(cfg.Bridge.Token)
	cfg.NLU.APIKey = expandEnvVars(cfg.NLU.APIKey)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			expandSensitiveFields(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	d := Defaults()
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = d.Gateway.Port
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = d.Gateway.Bind
	}
	if cfg.Bridge.EventBuffer == 0 {
		cfg.Bridge.EventBuffer = d.Bridge.EventBuffer
	}
	if cfg.NLU.Provider == "" {
		cfg.NLU.Provider = d.NLU.Provider
	}
	if cfg.NLU.TimeoutSeconds == 0 {
		cfg.NLU.TimeoutSeconds = d.NLU.TimeoutSeconds
	}
	if cfg.Reply.WindowSize == 0 {
		cfg.Reply.WindowSize = d.Reply.WindowSize
	}
	if cfg.Session.PairingWaitSeconds == 0 {
		cfg.Session.PairingWaitSeconds = d.Session.PairingWaitSeconds
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = d.Logging.ConsoleStyle
	}
}

// applyEnvOverrides reads VENDAZAP_* environment variables and overrides
// config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VENDAZAP_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("VENDAZAP_GATEWAY_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("VENDAZAP_BRIDGE_URL"); v != "" {
		cfg.Bridge.URL = v
	}
	if v := os.Getenv("VENDAZAP_BRIDGE_TOKEN"); v != "" {
		cfg.Bridge.Token = v
	}
	if v := os.Getenv("VENDAZAP_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("VENDAZAP_NLU_API_KEY"); v != "" {
		cfg.NLU.APIKey = v
	}
	if v := os.Getenv("VENDAZAP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
