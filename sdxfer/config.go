package sdxfer

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-sdxfer/logger"
)

// Default protocol settings, matching the stock device firmware.
const (
	DefaultQuiescence  = 500 * time.Millisecond // silence that ends a multi-line reply
	DefaultBlockSize   = 1024                   // payload block size in both directions
	DefaultPacingDelay = 5 * time.Millisecond   // pause after each block sent to the device
	DefaultSettleDelay = 50 * time.Millisecond  // pause after each text line sent to the device
	DefaultMaxPayload  = 1<<32 - 1              // largest file on a FAT32 card
)

// Limits for configurable values.
const (
	MinQuiescence = 10 * time.Millisecond
	MaxQuiescence = time.Minute

	MaxBlockSize = 64 * 1024

	MaxDelay = 10 * time.Second
)

// Config holds the protocol settings of an Engine.
type Config struct {
	quiescence  time.Duration
	blockSize   int
	pacingDelay time.Duration
	settleDelay time.Duration

	// strictLength turns a payload shorter than announced into an aborted transfer.
	strictLength bool
	// maxPayload caps the byte count a device may announce.
	maxPayload int64

	listCommand Command

	files  FileStore
	logger logger.Logger
}

// NewConfig creates a Config with defaults, then applies opts in order.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		quiescence:  DefaultQuiescence,
		blockSize:   DefaultBlockSize,
		pacingDelay: DefaultPacingDelay,
		settleDelay: DefaultSettleDelay,
		maxPayload:  DefaultMaxPayload,
		listCommand: CmdListFiles,
		files:       OSFileStore{},
		logger:      logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Quiescence returns the silence window that ends a multi-line reply.
func (cfg *Config) Quiescence() time.Duration { return cfg.quiescence }

// BlockSize returns the payload block size.
func (cfg *Config) BlockSize() int { return cfg.blockSize }

// PacingDelay returns the pause inserted after each payload block sent to the device.
func (cfg *Config) PacingDelay() time.Duration { return cfg.pacingDelay }

// SettleDelay returns the pause inserted after each text line sent to the device.
func (cfg *Config) SettleDelay() time.Duration { return cfg.settleDelay }

// StrictLength reports whether a short payload aborts a receive.
func (cfg *Config) StrictLength() bool { return cfg.strictLength }

// MaxPayload returns the largest byte count a device may announce.
func (cfg *Config) MaxPayload() int64 { return cfg.maxPayload }

// ListCommand returns the command used by Engine.ListFiles.
func (cfg *Config) ListCommand() Command { return cfg.listCommand }

// FileStore returns the local filesystem collaborator.
func (cfg *Config) FileStore() FileStore { return cfg.files }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithQuiescence sets the silence window that ends a multi-line reply.
func WithQuiescence(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinQuiescence || d > MaxQuiescence {
			return fmt.Errorf("sdxfer: quiescence %v out of range [%v, %v]", d, MinQuiescence, MaxQuiescence)
		}
		cfg.quiescence = d

		return nil
	})
}

// WithBlockSize sets the payload block size used for reading and for send pacing.
func WithBlockSize(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 1 || n > MaxBlockSize {
			return fmt.Errorf("sdxfer: block size %d out of range [1, %d]", n, MaxBlockSize)
		}
		cfg.blockSize = n

		return nil
	})
}

// WithPacingDelay sets the pause after each block streamed to the device.
// Zero disables pacing.
func WithPacingDelay(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 || d > MaxDelay {
			return fmt.Errorf("sdxfer: pacing delay %v out of range [0, %v]", d, MaxDelay)
		}
		cfg.pacingDelay = d

		return nil
	})
}

// WithSettleDelay sets the pause after each text line sent, giving the device
// time to produce its reply. Zero disables it.
func WithSettleDelay(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 || d > MaxDelay {
			return fmt.Errorf("sdxfer: settle delay %v out of range [0, %v]", d, MaxDelay)
		}
		cfg.settleDelay = d

		return nil
	})
}

// WithStrictLength makes ReceiveFile abort, without writing the local file,
// when the device sends fewer bytes than it announced. Disabled by default:
// the short payload is persisted and the Result reports it as truncated.
//
// On abort the engine discards whatever the device sends until it goes quiet,
// such as late payload bytes or the closing status line, so the next
// operation on the same engine starts on a clean stream.
func WithStrictLength(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.strictLength = enabled

		return nil
	})
}

// WithMaxPayload sets the largest byte count ReceiveFile accepts from the
// device. A larger announcement fails with ErrParse before any payload is read.
func WithMaxPayload(n int64) Option {
	return optFunc(func(cfg *Config) error {
		if n < 0 {
			return fmt.Errorf("sdxfer: max payload %d must not be negative", n)
		}
		cfg.maxPayload = n

		return nil
	})
}

// WithListCommand overrides the command used by Engine.ListFiles.
func WithListCommand(c Command) Option {
	return optFunc(func(cfg *Config) error {
		if err := c.Validate(); err != nil {
			return err
		}
		cfg.listCommand = c

		return nil
	})
}

// WithFileStore sets the local filesystem collaborator. Defaults to OSFileStore.
func WithFileStore(fs FileStore) Option {
	return optFunc(func(cfg *Config) error {
		if fs == nil {
			return errors.New("sdxfer: file store must not be nil")
		}
		cfg.files = fs

		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("sdxfer: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
