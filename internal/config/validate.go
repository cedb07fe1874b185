package config

import (
	"fmt"
	"net/url"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.customBindHost",
			Message: "required when bind is custom",
		})
	}

	if cfg.Bridge.URL != "" {
		if u, err := url.Parse(cfg.Bridge.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			issues = append(issues, ValidationIssue{
				Path:    "bridge.url",
				Message: fmt.Sprintf("must be a ws:// or wss:// URL, got %q", cfg.Bridge.URL),
			})
		}
	}
	if cfg.Bridge.EventBuffer < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "bridge.eventBuffer",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.Bridge.EventBuffer),
		})
	}

	validProviders := []string{"openai"}
	if cfg.NLU.Provider != "" && !slices.Contains(validProviders, cfg.NLU.Provider) {
		issues = append(issues, ValidationIssue{
			Path:    "nlu.provider",
			Message: fmt.Sprintf("must be one of %v, got %q", validProviders, cfg.NLU.Provider),
		})
	}
	if cfg.NLU.TimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "nlu.timeoutSeconds",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.NLU.TimeoutSeconds),
		})
	}

	if cfg.Reply.WindowSize < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "reply.windowSize",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.Reply.WindowSize),
		})
	}

	if cfg.Session.PairingWaitSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "session.pairingWaitSeconds",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.Session.PairingWaitSeconds),
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	return issues
}
