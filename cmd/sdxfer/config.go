package main

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/arloliu/go-sdxfer/sdxfer"
	"github.com/arloliu/go-sdxfer/transport"
)

const envPrefix = "SDXFER"

// Config is the CLI configuration. Values come from the environment (prefix
// SDXFER_, optionally loaded from a .env file) and are overridden by flags.
type Config struct {
	Port       string        `envconfig:"PORT" validate:"required_unless=Simulate true"`
	Baud       int           `envconfig:"BAUD" default:"115200" validate:"gt=0"`
	Timeout    time.Duration `envconfig:"TIMEOUT" default:"500ms" validate:"gt=0"`
	Quiescence time.Duration `envconfig:"QUIESCENCE" default:"500ms" validate:"gte=10ms,lte=1m"`
	Settle     time.Duration `envconfig:"SETTLE_DELAY" default:"50ms" validate:"gte=0,lte=10s"`
	Pacing     time.Duration `envconfig:"PACING_DELAY" default:"5ms" validate:"gte=0,lte=10s"`
	BlockSize  int           `envconfig:"BLOCK_SIZE" default:"1024" validate:"gt=0,lte=65536"`
	Strict     bool          `envconfig:"STRICT_LENGTH"`
	LogLevel   string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error fatal"`
	LogFormat  string        `envconfig:"LOG_FORMAT" default:"console" validate:"oneof=json console"`
	Simulate   bool          `envconfig:"SIMULATE"`
	Metrics    bool          `envconfig:"METRICS"`
}

// loadConfig reads envFile when it exists, then the process environment.
// An empty envFile skips the file.
func loadConfig(envFile string) (Config, error) {
	var cfg Config

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("config error: %w", err)
	}

	return cfg, nil
}

// validate checks c; noDevice skips the fields only needed to open a device.
func (c Config) validate(noDevice bool) error {
	validate := validator.New()

	var err error
	if noDevice {
		err = validate.StructExcept(c, "Port")
	} else {
		err = validate.Struct(c)
	}
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

func (c Config) serial() transport.SerialConfig {
	return transport.SerialConfig{
		Name:        c.Port,
		BaudRate:    c.Baud,
		ReadTimeout: c.Timeout,
	}
}

func (c Config) engineOptions() []sdxfer.Option {
	return []sdxfer.Option{
		sdxfer.WithQuiescence(c.Quiescence),
		sdxfer.WithSettleDelay(c.Settle),
		sdxfer.WithPacingDelay(c.Pacing),
		sdxfer.WithBlockSize(c.BlockSize),
		sdxfer.WithStrictLength(c.Strict),
	}
}
