package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ServeConfig is the resolved configuration of the serve command.
//
// Values are taken from (highest precedence first) command flags,
// SCANVIEW_ environment variables and the .scanview.yaml config file.
type ServeConfig struct {
	Addr          string        `mapstructure:"addr"`
	Results       string        `mapstructure:"results"`
	MaxSize       string        `mapstructure:"max-size"`
	ShowClosed    bool          `mapstructure:"show-closed"`
	MinConfidence string        `mapstructure:"min-confidence"`
	ReadTimeout   time.Duration `mapstructure:"read-timeout"`
	WriteTimeout  time.Duration `mapstructure:"write-timeout"`
	IdleTimeout   time.Duration `mapstructure:"idle-timeout"`

	// ConfigFile is the config file that was used, if any. Not read from config itself.
	ConfigFile string `mapstructure:"-"`
}

// Validate checks the resolved values.
func (c *ServeConfig) Validate() error {
	if err := ValidateAddress(c.Addr); err != nil {
		return err
	}
	if c.Results == "" {
		return fmt.Errorf("results file cannot be empty")
	}
	if _, err := ParseMaxSize(c.MaxSize); err != nil {
		return err
	}
	return nil
}

// ViewOptions converts the serve defaults to the shared view options.
func (c *ServeConfig) ViewOptions() (ViewOptions, error) {
	size, err := ParseMaxSize(c.MaxSize)
	if err != nil {
		return ViewOptions{}, err
	}
	return ViewOptions{
		ShowClosed:     c.ShowClosed,
		MinConfidence:  c.MinConfidence,
		MaxResultsSize: size,
	}, nil
}

// LoadServe resolves the serve configuration. A fresh viper instance is used
// on every call.
func LoadServe(cmd *cobra.Command, configFile string) (*ServeConfig, error) {
	v := viper.New()

	setServeDefaults(v)
	configureEnv(v)

	if err := configureFile(v, configFile); err != nil {
		return nil, err
	}

	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	var cfg ServeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setServeDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("max-size", "50MB")
	v.SetDefault("show-closed", false)
	v.SetDefault("min-confidence", "all")
	v.SetDefault("read-timeout", 10*time.Second)
	v.SetDefault("write-timeout", 60*time.Second)
	v.SetDefault("idle-timeout", 120*time.Second)
}

func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("SCANVIEW")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

func configureFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %q: %w", configFile, err)
		}
		return nil
	}

	v.SetConfigName(".scanview")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "scanview"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}
