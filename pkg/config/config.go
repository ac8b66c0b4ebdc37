// Package config loads the server and client runtime configuration from
// YAML, with defaults suitable for a local deployment.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML configs can spell lifetimes either
// as duration strings ("168h") or as integer seconds.
type Duration time.Duration

// Duration returns the wrapped value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML accepts "60s"-style strings and bare integer seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	// Integers first: an integer scalar also decodes into a string.
	var seconds int64
	if err := value.Decode(&seconds); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}

	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	return fmt.Errorf("invalid duration value")
}

// Policy holds the server-wide freshness parameters evaluated on every
// round trip with a registered client.
type Policy struct {
	// SignedCurvePrekeyLifetime is the maximum age of the signed curve
	// prekey before a rotation is requested.
	SignedCurvePrekeyLifetime Duration `yaml:"signed_curve_prekey_lifetime"`

	// LastResortPrekeyLifetime is the maximum age of the last resort
	// PQKEM prekey before a rotation is requested.
	LastResortPrekeyLifetime Duration `yaml:"last_resort_prekey_lifetime"`

	// MinOneTimeCurvePrekeys is the low-water mark of the one-time curve
	// prekey pool.
	MinOneTimeCurvePrekeys int `yaml:"min_one_time_curve_prekeys"`

	// MinOneTimePQKEMPrekeys is the low-water mark of the one-time PQKEM
	// prekey pool.
	MinOneTimePQKEMPrekeys int `yaml:"min_one_time_pqkem_prekeys"`
}

// ServerConfig is the full server runtime configuration.
type ServerConfig struct {
	// Endpoint the ROUTER socket binds to.
	Endpoint string `yaml:"endpoint"`

	// AdminAddr is the listen address of the HTTP status API. Empty
	// disables the API.
	AdminAddr string `yaml:"admin_addr"`

	// ApplicationName names the database file.
	ApplicationName string `yaml:"application_name"`

	// DataDir is the directory holding the database file.
	DataDir string `yaml:"data_dir"`

	Policy Policy `yaml:"policy"`
}

// ClientConfig is the full client runtime configuration.
type ClientConfig struct {
	// Endpoint the DEALER socket connects to.
	Endpoint string `yaml:"endpoint"`

	// ApplicationName names the database file.
	ApplicationName string `yaml:"application_name"`

	// DataDir is the directory holding the database file.
	DataDir string `yaml:"data_dir"`

	// OneTimeCurvePrekeys is the batch size for one-time curve prekey
	// generation.
	OneTimeCurvePrekeys int `yaml:"one_time_curve_prekeys"`

	// OneTimePQKEMPrekeys is the batch size for one-time PQKEM prekey
	// generation.
	OneTimePQKEMPrekeys int `yaml:"one_time_pqkem_prekeys"`

	// HeartbeatInterval between ClientHello rounds.
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
}

// DefaultServerConfig returns the configuration used when no file is given.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Endpoint:        "tcp://*:5555",
		AdminAddr:       "",
		ApplicationName: "prekey-server",
		DataDir:         ".",
		Policy: Policy{
			SignedCurvePrekeyLifetime: Duration(7 * 24 * time.Hour),
			LastResortPrekeyLifetime:  Duration(7 * 24 * time.Hour),
			MinOneTimeCurvePrekeys:    5,
			MinOneTimePQKEMPrekeys:    5,
		},
	}
}

// DefaultClientConfig returns the configuration used when no file is given.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Endpoint:            "tcp://localhost:5555",
		ApplicationName:     "prekey-client",
		DataDir:             ".",
		OneTimeCurvePrekeys: 10,
		OneTimePQKEMPrekeys: 10,
		HeartbeatInterval:   Duration(time.Second),
	}
}

// LoadServerConfig reads a YAML server configuration, filling omitted
// fields from the defaults.
func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()
	if err := loadYAML(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadClientConfig reads a YAML client configuration, filling omitted
// fields from the defaults.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := DefaultClientConfig()
	if err := loadYAML(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *ServerConfig) validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint must not be empty")
	}
	if c.Policy.SignedCurvePrekeyLifetime <= 0 || c.Policy.LastResortPrekeyLifetime <= 0 {
		return fmt.Errorf("prekey lifetimes must be positive")
	}
	if c.Policy.MinOneTimeCurvePrekeys < 0 || c.Policy.MinOneTimePQKEMPrekeys < 0 {
		return fmt.Errorf("pool low-water marks must not be negative")
	}
	return nil
}

func (c *ClientConfig) validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint must not be empty")
	}
	if c.OneTimeCurvePrekeys <= 0 || c.OneTimePQKEMPrekeys <= 0 {
		return fmt.Errorf("one-time prekey batch sizes must be positive")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}
	return nil
}
