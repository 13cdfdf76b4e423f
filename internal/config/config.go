package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port   string `mapstructure:"PORT"`
	Env    string `mapstructure:"ENV"`
	DBDSN  string `mapstructure:"DATABASE_URL"`
	AppName string `mapstructure:"APP_NAME"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// ClockOffsetMinutes desplaza "ahora" para demos; nunca usar en producción.
	ClockOffsetMinutes int `mapstructure:"CLOCK_OFFSET_MINUTES"`

	RxNormBaseURL   string `mapstructure:"RXNORM_BASE_URL"`
	RxNormTimeoutMS int    `mapstructure:"RXNORM_TIMEOUT_MS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("APP_NAME", "careline")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("CLOCK_OFFSET_MINUTES", 0)
	v.SetDefault("RXNORM_BASE_URL", "https://rxnav.nlm.nih.gov/REST")
	v.SetDefault("RXNORM_TIMEOUT_MS", 3000)

	// Bind explícito para que Unmarshal tome las env vars.
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("APP_NAME")
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("LOG_FORMAT")
	v.BindEnv("CLOCK_OFFSET_MINUTES")
	v.BindEnv("RXNORM_BASE_URL")
	v.BindEnv("RXNORM_TIMEOUT_MS")

	// .env es opcional; si no existe, seguimos con env + defaults.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if !cfg.IsDev() && cfg.ClockOffsetMinutes != 0 {
		return nil, fmt.Errorf("CLOCK_OFFSET_MINUTES only allowed when ENV=development")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) RxNormTimeout() time.Duration {
	if c.RxNormTimeoutMS <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.RxNormTimeoutMS) * time.Millisecond
}
