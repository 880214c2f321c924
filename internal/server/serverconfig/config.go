// Package serverconfig loads the Manifest Service's configuration via
// spf13/viper, supporting a config file with environment-variable
// override, matching the reference architecture's config layering.
package serverconfig

import (
	"fmt"

	"github.com/spf13/viper"
)

// DefaultAddr is the Manifest Service's default bind address.
const DefaultAddr = "127.0.0.1:8080"

// Config is the full set of settings the Manifest Service needs to boot.
type Config struct {
	Addr            string
	Environment     string
	BucketName      string
	Region          string
	Endpoint        string
	AccessKey       string
	SecretKey       string
	DeviceSecret    string
	AdminSigningKey string
	RateLimit       string
}

// Load reads configuration from an optional config file (searched via
// viper's usual precedence) with VAULTSYNCD_-prefixed environment
// variables taking precedence over file values.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VAULTSYNCD")
	v.AutomaticEnv()

	v.SetDefault("addr", DefaultAddr)
	v.SetDefault("environment", "production")
	v.SetDefault("region", "auto")
	v.SetDefault("rate_limit", "100-M")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", configFile, err)
		}
	}

	cfg := &Config{
		Addr:            v.GetString("addr"),
		Environment:     v.GetString("environment"),
		BucketName:      v.GetString("bucket_name"),
		Region:          v.GetString("region"),
		Endpoint:        v.GetString("endpoint"),
		AccessKey:       v.GetString("access_key"),
		SecretKey:       v.GetString("secret_key"),
		DeviceSecret:    v.GetString("device_secret"),
		AdminSigningKey: v.GetString("admin_signing_key"),
		RateLimit:       v.GetString("rate_limit"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that every setting required to boot is present.
func (c *Config) Validate() error {
	if c.BucketName == "" {
		return fmt.Errorf("bucket_name is required")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return fmt.Errorf("access_key and secret_key are required")
	}
	if c.DeviceSecret == "" {
		return fmt.Errorf("device_secret is required")
	}
	if c.AdminSigningKey == "" {
		return fmt.Errorf("admin_signing_key is required")
	}
	return nil
}
