// Package config loads the daemon's on-disk configuration, grounded on
// aldrin-isaac-newtron's and grimm-is-flywall's shared convention of a
// single YAML file decoded with gopkg.in/yaml.v3 at startup.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the daemon's full configuration (spec.md §6 "Persistent state"
// plus the connection/poll parameters spec.md leaves to the external
// database-client collaborator).
type Config struct {
	NBConnection string        `yaml:"nb_connection"`
	SBConnection string        `yaml:"sb_connection"`
	UnixCtl      string        `yaml:"unixctl_path"`
	PollInterval time.Duration `yaml:"poll_interval"`

	// Multicast holds the IGMP-group tunnel-key range (spec.md §4.1
	// "IGMP-group keys per datapath (from a configured multicast range)").
	Multicast MulticastRange `yaml:"multicast"`

	// LogLevel is passed straight to internal/xlog.SetLevel.
	LogLevel string `yaml:"log_level"`
}

// MulticastRange is the configured IGMP-group tunnel-key pool.
type MulticastRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Defaults mirror the OVN northd defaults: learnt IGMP groups take their
// per-datapath multicast-group tunnel keys from the upper half of the 16-bit
// key space, a 5 second poll interval, and info-level logging.
func Defaults() Config {
	return Config{
		NBConnection: "unix:/var/run/ovn/ovnnb_db.sock",
		SBConnection: "unix:/var/run/ovn/ovnsb_db.sock",
		UnixCtl:      "/var/run/ovn/ovn-xlated.ctl",
		PollInterval: 5 * time.Second,
		Multicast:    MulticastRange{Min: 32768, Max: 65280},
		LogLevel:     "info",
	}
}

// Load reads and validates a YAML config file, filling in defaults for any
// field left zero (spec.md SUPPLEMENTED FEATURES, §1).
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	// Decode onto the defaulted struct so omitted keys keep their defaults.
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the handful of invariants this engine depends on.
func (c Config) Validate() error {
	if c.NBConnection == "" {
		return fmt.Errorf("nb_connection must not be empty")
	}
	if c.SBConnection == "" {
		return fmt.Errorf("sb_connection must not be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.Multicast.Min <= 0 || c.Multicast.Max <= c.Multicast.Min {
		return fmt.Errorf("multicast range must satisfy 0 < min < max")
	}
	if c.Multicast.Max > (1<<24)-1 {
		return fmt.Errorf("multicast range max must fit in 24 bits")
	}
	return nil
}
