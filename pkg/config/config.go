// Package config loads u3vterm settings from a YAML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// PasswordEnv supplies the terminal password when no flag is given.
const PasswordEnv = "TY_TERM_PASS"

const (
	DefaultVendorID        ID       = 0x04b4
	DefaultProductID       ID       = 0x1003
	DefaultTransferTimeout Duration = Duration(10 * time.Second)
	DefaultInteractiveMode          = 2
)

type Config struct {
	VendorID        ID       `yaml:"vendor_id"`
	ProductID       ID       `yaml:"product_id"`
	Serial          string   `yaml:"serial"`
	Password        string   `yaml:"password"`
	TransferTimeout Duration `yaml:"transfer_timeout"`
	InteractiveMode int      `yaml:"interactive_mode"`
	LogLevel        string   `yaml:"log_level"`
	LogFormat       string   `yaml:"log_format"`

	// Warnings collects non-fatal problems found while loading.
	Warnings []string `yaml:"-"`
}

func Default() *Config {
	return &Config{
		VendorID:        DefaultVendorID,
		ProductID:       DefaultProductID,
		TransferTimeout: DefaultTransferTimeout,
		InteractiveMode: DefaultInteractiveMode,
		LogLevel:        "warn",
		LogFormat:       "console",
	}
}

// DefaultPath returns the default config file path: ~/.u3vterm/config.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".u3vterm", "config.yaml")
	}
	return filepath.Join(home, ".u3vterm", "config.yaml")
}

// Load reads the configuration from the given YAML file path on top of the
// defaults. A missing file is not an error. A non-empty password
// environment variable overrides the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	if p := os.Getenv(PasswordEnv); p != "" {
		cfg.Password = p
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	if perm := info.Mode().Perm(); c.Password != "" && perm&0o077 != 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("config file %s has permissions %04o, expected 0600 since it holds a password", path, perm))
	}
	return nil
}

// ID is a 16-bit USB identifier. It parses with base prefixes, so 0x04b4,
// 01264 and 1204 are the same value.
type ID uint16

func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return ID(v), nil
}

func (id ID) String() string { return fmt.Sprintf("0x%04x", uint16(id)) }

func (id *ID) Set(s string) error {
	v, err := ParseID(s)
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// Type implements pflag.Value.
func (id *ID) Type() string { return "id" }

func (id *ID) UnmarshalYAML(value *yaml.Node) error {
	return id.Set(value.Value)
}

// Duration is a time.Duration written as a Go duration string in YAML.
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	v, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }
