package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Database struct {
	DSN string
}

type HTTP struct {
	Listen string
}

type Engine struct {
	// CycleMs is the target scheduler cycle time in milliseconds
	CycleMs uint
	// MinSleepMs is the floor applied when a cycle overruns the target
	MinSleepMs uint
	// TelemetryEvery controls how often (in cycles) a telemetry line is emitted
	TelemetryEvery uint
	// Workers bounds the point-refresh worker pool
	Workers uint
}

type Configuration struct {
	Database Database
	HTTP     HTTP
	Engine   Engine
}

func (c *Configuration) CycleInterval() time.Duration {
	return time.Duration(c.Engine.CycleMs) * time.Millisecond
}

func (c *Configuration) MinSleep() time.Duration {
	return time.Duration(c.Engine.MinSleepMs) * time.Millisecond
}

func NewConfig() (*Configuration, error) {
	config := Configuration{}

	// application configuration
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName(".smarty")
	v.AddConfigPath("$HOME/")
	v.AddConfigPath(".")
	_ = v.SafeWriteConfig()

	v.SetDefault("database.dsn", "smarty.db")
	v.SetDefault("http.listen", "127.0.0.1:8490")
	v.SetDefault("engine.cyclems", 100)
	v.SetDefault("engine.minsleepms", 10)
	v.SetDefault("engine.telemetryevery", 10)
	v.SetDefault("engine.workers", 8)

	// environment overrides, e.g. SMARTY_DATABASE_DSN
	v.SetEnvPrefix("smarty")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return &Configuration{}, fmt.Errorf("cannot parse config: %s", err.Error())
	}
	if err := v.Unmarshal(&config); err != nil {
		return &config, fmt.Errorf("cannot parse config: %s", err.Error())
	}

	if config.Database.DSN == "" {
		return &config, fmt.Errorf("database.dsn must not be empty")
	}

	return &config, nil
}
