package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/arloliu/go-sdxfer/logger"
	"github.com/arloliu/go-sdxfer/transport"
)

var (
	rootCmd = &cobra.Command{
		Use:   "sdxfer",
		Short: "Move files between this host and a device's SD card over a serial port.",
		Long: `sdxfer talks to a device running the SD file transfer firmware.
Settings are read from SDXFER_* environment variables (and an optional .env
file); flags override them.`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

// annotationNoDevice marks commands that never open a device.
const annotationNoDevice = "sdxfer/no-device"

var (
	config  Config
	envFile string

	flagPort       string
	flagBaud       int
	flagTimeout    time.Duration
	flagLogLevel   string
	flagLogFormat  string
	flagSimulate   bool
	flagStrict     bool
	flagMetrics    bool
	flagQuiescence time.Duration
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&envFile, "env-file", ".env", "Environment file to load before reading SDXFER_* variables")
	flags.StringVarP(&flagPort, "port", "p", "", "Serial port name, e.g. /dev/ttyACM0 or COM3")
	flags.IntVarP(&flagBaud, "baud", "b", transport.DefaultBaudRate, "Baud rate")
	flags.DurationVar(&flagTimeout, "timeout", transport.DefaultReadTimeout, "Serial read timeout")
	flags.DurationVar(&flagQuiescence, "quiescence", 500*time.Millisecond, "Silence that ends a multi-line reply")
	flags.StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flags.StringVar(&flagLogFormat, "log-format", "console", "Log format: console or json")
	flags.BoolVar(&flagSimulate, "simulate", false, "Talk to an in-process simulated device instead of a serial port")
	flags.BoolVar(&flagStrict, "strict", false, "Fail a receive when the device sends fewer bytes than announced")
	flags.BoolVar(&flagMetrics, "metrics", false, "Print transfer counters when the command finishes")
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// setup builds the effective configuration and installs the logger.
func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	applyFlags(cmd.Flags(), &cfg)

	if err := cfg.validate(cmd.Annotations[annotationNoDevice] == "true"); err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	format, err := logger.ParseFormat(cfg.LogFormat)
	if err != nil {
		return err
	}
	logger.SetDefault(logger.NewSlogWithFormat(os.Stderr, format, level, false))

	config = cfg

	return nil
}

// applyFlags copies explicitly set flags over cfg.
func applyFlags(flags *pflag.FlagSet, cfg *Config) {
	if flags.Changed("port") {
		cfg.Port = flagPort
	}
	if flags.Changed("baud") {
		cfg.Baud = flagBaud
	}
	if flags.Changed("timeout") {
		cfg.Timeout = flagTimeout
	}
	if flags.Changed("quiescence") {
		cfg.Quiescence = flagQuiescence
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = flagLogFormat
	}
	if flags.Changed("simulate") {
		cfg.Simulate = flagSimulate
	}
	if flags.Changed("strict") {
		cfg.Strict = flagStrict
	}
	if flags.Changed("metrics") {
		cfg.Metrics = flagMetrics
	}
}
