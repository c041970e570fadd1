package config

import (
	"fmt"

	trcerrors "github.com/c360/traceproc/errors"
	"gopkg.in/yaml.v3"
)

// Manager loads the daemon's YAML configuration and hands it out
// through a SafeConfig, the same responsibility split the source
// codebase's Manager/SafeConfig pair uses for its NATS-backed
// configuration, narrowed here to a single local file with no KV
// watch loop: this daemon is a batch driver, not a long-lived service
// with dynamic reconfiguration (§14).
type Manager struct {
	config *SafeConfig
}

// Load reads and validates a YAML config file at path, falling back
// to Default() for any field the file omits.
func Load(path string) (*Manager, error) {
	cfg := Default()

	if path != "" {
		data, err := safeReadFile(path)
		if err != nil {
			return nil, trcerrors.WrapCorrupt(err, "config", "Load")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, trcerrors.WrapCorrupt(fmt.Errorf("%w: %v", trcerrors.ErrInvalidConfig, err), "config", "Load")
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, trcerrors.WrapCorrupt(err, "config", "Load")
	}

	return &Manager{config: NewSafeConfig(cfg)}, nil
}

// GetConfig returns the manager's SafeConfig.
func (m *Manager) GetConfig() *SafeConfig {
	return m.config
}

// ApplyFlagOverrides mutates the fields the daemon's command-line
// flags are allowed to override (§14 step 1), re-validating before
// committing them.
func (m *Manager) ApplyFlagOverrides(workerConcurrency int, logLevel string) error {
	cfg := m.config.Get()
	if workerConcurrency > 0 {
		cfg.WorkerConcurrency = workerConcurrency
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return m.config.Update(cfg)
}
