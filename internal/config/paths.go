package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".vendazap"

// Paths holds resolved filesystem paths for VendaZap data.
type Paths struct {
	Base   string // ~/.vendazap
	Config string // ~/.vendazap/config.yaml
	Logs   string // ~/.vendazap/logs
	Data   string // ~/.vendazap/data
}

// ResolvePaths computes all standard paths from the home directory.
// If VENDAZAP_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("VENDAZAP_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Logs:   filepath.Join(base, "logs"),
		Data:   filepath.Join(base, "data"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Logs, p.Data} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// DatabasePath resolves the SQLite path, defaulting under the data dir.
func (p Paths) DatabasePath(cfg DatabaseConfig) string {
	if cfg.Path != "" {
		return cfg.Path
	}
	return filepath.Join(p.Data, "vendazap.db")
}
