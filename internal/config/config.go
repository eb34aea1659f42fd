package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode               string        `mapstructure:"mode"`
	Port               int           `mapstructure:"port"`
	Secret             string        `mapstructure:"secret"`
	BackendURL         string        `mapstructure:"backend_url"`
	BackendTimeout     time.Duration `mapstructure:"backend_timeout"`
	DataDir            string        `mapstructure:"data_dir"`
	ContextTTL         time.Duration `mapstructure:"context_ttl"`
	DevicePollInterval time.Duration `mapstructure:"device_poll_interval"`
	LogLevel           string        `mapstructure:"log_level"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8090)
	v.SetDefault("secret", "callkit-dev-secret")
	v.SetDefault("backend_url", "http://localhost:8080")
	v.SetDefault("backend_timeout", "10s")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("context_ttl", "12h")
	v.SetDefault("device_poll_interval", "5s")
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Backend: %s\n", cfg.Mode, cfg.Port, cfg.BackendURL)
	return &cfg, nil
}
