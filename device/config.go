// Package device binds YAML device descriptions to the client package:
// it resolves human-readable register names to descriptors and exposes
// read/write access by name.
package device

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tombolano/modbus-client/client"
)

// Config is a device description.
type Config struct {
	Name      string           `yaml:"device"`
	Station   uint8            `yaml:"station"`   // bus address, default 1
	ZeroMode  bool             `yaml:"zero_mode"` // true: addresses in the file are zero-based
	Registers []RegisterConfig `yaml:"registers"`
	Switches  []SwitchConfig   `yaml:"switches"`
}

// RegisterConfig describes one numeric register.
type RegisterConfig struct {
	Name      string  `yaml:"name"`
	Table     string  `yaml:"table"`      // "holding" (default) or "input"
	Address   uint16  `yaml:"address"`
	Type      string  `yaml:"type"`       // u16 (default), s16, u32, s32, u64, s64, f32, f64
	WordOrder string  `yaml:"word_order"` // "high_first" (default) or "low_first"
	Scale     float64 `yaml:"scale"`
	Unit      string  `yaml:"unit"`
}

// SwitchConfig describes one bit register.
type SwitchConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"` // "coil" (default) or "discrete_input"
	Address uint16 `yaml:"address"`
}

// Load reads and validates a device description file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates a device description.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("device config: %w", err)
	}
	if cfg.Station == 0 {
		cfg.Station = client.DefaultStation
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Registers))
	for _, r := range c.Registers {
		if r.Name == "" {
			return fmt.Errorf("device config: register without name")
		}
		if seen[r.Name] {
			return fmt.Errorf("device config: duplicate register %q", r.Name)
		}
		seen[r.Name] = true
		if _, err := registerTable(r.Table); err != nil {
			return fmt.Errorf("device config: register %q: %w", r.Name, err)
		}
		if _, err := client.ParseValueType(r.Type); err != nil {
			return fmt.Errorf("device config: register %q: %w", r.Name, err)
		}
		if _, err := parseWordOrder(r.WordOrder); err != nil {
			return fmt.Errorf("device config: register %q: %w", r.Name, err)
		}
		if !c.ZeroMode && r.Address == 0 {
			return fmt.Errorf("device config: register %q: address 0 invalid with one-based addressing", r.Name)
		}
	}

	seen = make(map[string]bool, len(c.Switches))
	for _, s := range c.Switches {
		if s.Name == "" {
			return fmt.Errorf("device config: switch without name")
		}
		if seen[s.Name] {
			return fmt.Errorf("device config: duplicate switch %q", s.Name)
		}
		seen[s.Name] = true
		if _, err := switchTable(s.Type); err != nil {
			return fmt.Errorf("device config: switch %q: %w", s.Name, err)
		}
		if !c.ZeroMode && s.Address == 0 {
			return fmt.Errorf("device config: switch %q: address 0 invalid with one-based addressing", s.Name)
		}
	}

	return nil
}

func registerTable(s string) (client.RegisterType, error) {
	switch strings.ToLower(s) {
	case "holding", "":
		return client.HoldingRegister, nil
	case "input":
		return client.InputRegister, nil
	}
	return 0, fmt.Errorf("unknown register table %q", s)
}

func switchTable(s string) (client.RegisterType, error) {
	switch strings.ToLower(s) {
	case "coil", "":
		return client.Coil, nil
	case "discrete_input", "discrete":
		return client.DiscreteInput, nil
	}
	return 0, fmt.Errorf("unknown switch type %q", s)
}

func parseWordOrder(s string) (client.WordOrder, error) {
	switch strings.ToLower(s) {
	case "high_first", "":
		return client.HighWordFirst, nil
	case "low_first":
		return client.LowWordFirst, nil
	}
	return 0, fmt.Errorf("unknown word order %q", s)
}
