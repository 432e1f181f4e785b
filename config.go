package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// config carries the server settings, sourced from the environment with
// flag overrides registered in main.
type config struct {
	Addr        string        `env:"FANHUB_ADDR" envDefault:"127.0.0.1:8081"`
	Origin      string        `env:"FANHUB_ORIGIN"`
	QueueCap    int           `env:"FANHUB_QUEUE_CAP" envDefault:"1000"`
	StopTimeout time.Duration `env:"FANHUB_STOP_TIMEOUT" envDefault:"10s"`
	KillTimeout time.Duration `env:"FANHUB_KILL_TIMEOUT" envDefault:"1s"`
	Debug       bool          `env:"FANHUB_DEBUG"`
}

func loadConfig() (config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
