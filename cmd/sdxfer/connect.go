package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/go-sdxfer/internal/devsim"
	"github.com/arloliu/go-sdxfer/logger"
	"github.com/arloliu/go-sdxfer/sdxfer"
	"github.com/arloliu/go-sdxfer/transport"
)

// device is an open connection: the engine plus whatever must be torn down with it.
type device struct {
	engine *sdxfer.Engine
	name   string
	port   io.Closer
	stop   func()
}

// connect opens the configured serial port, or starts a simulated device when
// cfg.Simulate is set.
func connect(ctx context.Context, cfg Config) (*device, error) {
	engCfg, err := sdxfer.NewConfig(cfg.engineOptions()...)
	if err != nil {
		return nil, err
	}

	if cfg.Simulate {
		return connectSimulated(ctx, cfg, engCfg)
	}

	port, err := transport.OpenSerial(cfg.serial())
	if err != nil {
		return nil, err
	}

	eng, err := sdxfer.NewEngine(port, engCfg)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	logger.Debug("sdxfer: port opened", "port", cfg.Port, "baud", cfg.Baud)

	return &device{engine: eng, name: cfg.Port, port: port, stop: func() {}}, nil
}

func connectSimulated(ctx context.Context, cfg Config, engCfg *sdxfer.Config) (*device, error) {
	host, dev := transport.NewPipe(cfg.Timeout)

	card := sdxfer.NewMemFileStore()
	card.Put("demo.wav", []byte("RIFF\x24\x00\x00\x00WAVEfmt "))
	card.Put("readme.txt", []byte("simulated SD card\n"))

	sim, err := devsim.New(dev, card,
		devsim.WithListPreamble("Files on SD card: "),
		devsim.WithLogger(logger.With("component", "devsim")),
	)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := sim.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("sdxfer: simulated device stopped", "error", err)
		}
	}()

	eng, err := sdxfer.NewEngine(host, engCfg)
	if err != nil {
		cancel()
		_ = host.Close()
		<-done
		return nil, err
	}

	stop := func() {
		cancel()
		<-done
	}

	return &device{engine: eng, name: "simulator", port: host, stop: stop}, nil
}

// Close closes the port and waits for a simulated device to stop.
func (d *device) Close() error {
	err := d.port.Close()
	d.stop()

	return err
}

// withDevice connects, runs fn, prints metrics when requested, and disconnects.
func withDevice(ctx context.Context, fn func(*sdxfer.Engine) error) error {
	dev, err := connect(ctx, config)
	if err != nil {
		return err
	}
	defer func() { _ = dev.Close() }()

	runErr := fn(dev.engine)

	if config.Metrics {
		if err := printMetrics(os.Stdout, dev); err != nil {
			return errors.Join(runErr, err)
		}
	}

	return runErr
}

// printMetrics renders the engine counters through a prometheus registry.
func printMetrics(w io.Writer, dev *device) error {
	reg := prometheus.NewRegistry()
	if err := dev.engine.Metrics().Register(reg, prometheus.Labels{"port": dev.name}); err != nil {
		return err
	}

	families, err := reg.Gather()
	if err != nil {
		return err
	}

	table := newTable(w, "Metric", "Value")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			table.Append([]string{
				strings.TrimPrefix(mf.GetName(), "sdxfer_"),
				fmt.Sprintf("%.0f", m.GetCounter().GetValue()),
			})
		}
	}
	table.Render()

	return nil
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	return table
}
