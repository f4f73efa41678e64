// Package config loads installer settings from file, environment and flags.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/deploymenttheory/go-emutos-install/internal/stub"
	"github.com/deploymenttheory/go-emutos-install/internal/types"
)

// Byte order settings for disk images.
const (
	ByteOrderAuto    = "auto"
	ByteOrderNative  = "native"
	ByteOrderSwapped = "swapped"
)

// Config holds the installer settings
type Config struct {
	DiskImage   string `mapstructure:"disk_image" json:"disk_image" yaml:"disk_image"`
	ByteOrder   string `mapstructure:"byte_order" json:"byte_order" yaml:"byte_order"`
	Unit        int    `mapstructure:"unit" json:"unit" yaml:"unit"`
	Variant     string `mapstructure:"variant" json:"variant" yaml:"variant"`
	BootStub    string `mapstructure:"boot_stub" json:"boot_stub" yaml:"boot_stub"`
	RootStub    string `mapstructure:"root_stub" json:"root_stub" yaml:"root_stub"`
	Destination string `mapstructure:"destination" json:"destination" yaml:"destination"`
	ChunkSize   int    `mapstructure:"chunk_size" json:"chunk_size" yaml:"chunk_size"`
	DriveDir    string `mapstructure:"drive_dir" json:"drive_dir,omitempty" yaml:"drive_dir,omitempty"`
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("disk_image", "")
	v.SetDefault("byte_order", ByteOrderAuto)
	v.SetDefault("unit", 0)
	v.SetDefault("variant", "b")
	v.SetDefault("boot_stub", stub.DefaultBootPath)
	v.SetDefault("root_stub", stub.DefaultRootPath)
	v.SetDefault("destination", types.DestinationName)
	v.SetDefault("chunk_size", types.CopyChunkSize)
	v.SetDefault("drive_dir", "")
}

// Load reads the configuration into v. An explicit file must exist; otherwise
// the usual locations are searched and a missing file leaves the defaults.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("emutos-install")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.emutos-install")
		v.AddConfigPath("/etc/emutos-install")
	}

	SetDefaults(v)

	// Allow environment variables
	v.SetEnvPrefix("EMUTOS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that have a closed set of choices and normalizes
// their case.
func (c *Config) Validate() error {
	c.ByteOrder = strings.ToLower(c.ByteOrder)
	switch c.ByteOrder {
	case ByteOrderAuto, ByteOrderNative, ByteOrderSwapped:
	default:
		return fmt.Errorf("byte_order must be auto, native or swapped, got %q", c.ByteOrder)
	}
	if _, err := types.ParseVariant(c.Variant); err != nil {
		return err
	}
	if c.Unit < 0 || c.Unit > 7 {
		return fmt.Errorf("unit must be between 0 and 7, got %d", c.Unit)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.Destination == "" {
		return fmt.Errorf("destination must not be empty")
	}
	return nil
}

// ParsedVariant returns the configured installer variant.
func (c *Config) ParsedVariant() types.Variant {
	v, err := types.ParseVariant(c.Variant)
	if err != nil {
		return types.VariantB
	}
	return v
}
