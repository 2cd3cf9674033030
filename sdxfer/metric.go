package sdxfer

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains atomic counters for an Engine.
type Metrics struct {
	// SendCount indicates the number of send transfers that completed.
	SendCount atomic.Uint64
	// ReceiveCount indicates the number of receive transfers that completed.
	ReceiveCount atomic.Uint64
	// AbortCount indicates the number of transfers rejected by the device.
	AbortCount atomic.Uint64
	// ErrorCount indicates the number of transfers ended by a hard failure.
	ErrorCount atomic.Uint64
	// TruncatedCount indicates the number of receives whose payload came up short.
	TruncatedCount atomic.Uint64

	// BytesSent indicates the payload bytes streamed to the device.
	BytesSent atomic.Uint64
	// BytesReceived indicates the payload bytes collected from the device.
	BytesReceived atomic.Uint64
}

func (m *Metrics) record(res *Result, err error) {
	if res == nil {
		return
	}

	switch res.Op {
	case OpSend:
		m.BytesSent.Add(uint64(max(res.Transferred, 0)))
	case OpReceive:
		m.BytesReceived.Add(uint64(max(res.Transferred, 0)))
		if res.Truncated() {
			m.TruncatedCount.Add(1)
		}
	}

	switch {
	case err != nil:
		m.ErrorCount.Add(1)
	case res.Status == StatusAborted:
		m.AbortCount.Add(1)
	case res.Op == OpSend:
		m.SendCount.Add(1)
	default:
		m.ReceiveCount.Add(1)
	}
}

// Collectors exposes the counters as prometheus CounterFuncs.
// constLabels are attached to every metric, e.g. the serial port name.
func (m *Metrics) Collectors(constLabels prometheus.Labels) []prometheus.Collector {
	counter := func(name, help string, v *atomic.Uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   "sdxfer",
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}, func() float64 { return float64(v.Load()) })
	}

	return []prometheus.Collector{
		counter("send_total", "Completed transfers to the device.", &m.SendCount),
		counter("receive_total", "Completed transfers from the device.", &m.ReceiveCount),
		counter("aborted_total", "Transfers rejected by the device.", &m.AbortCount),
		counter("errors_total", "Transfers ended by a hard failure.", &m.ErrorCount),
		counter("truncated_total", "Receives whose payload was shorter than announced.", &m.TruncatedCount),
		counter("sent_bytes_total", "Payload bytes streamed to the device.", &m.BytesSent),
		counter("received_bytes_total", "Payload bytes collected from the device.", &m.BytesReceived),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer, constLabels prometheus.Labels) error {
	for _, c := range m.Collectors(constLabels) {
		if err := reg.Register(c); err != nil {
			return err
		}
	}

	return nil
}
