package sdxfer

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	var m Metrics

	m.record(&Result{Op: OpSend, Status: StatusOK, Step: StepConfirm, Expected: 10, Transferred: 10}, nil)
	m.record(&Result{Op: OpReceive, Status: StatusOK, Step: StepPersist, Expected: 10, Transferred: 4}, nil)
	m.record(&Result{Op: OpReceive, Status: StatusAborted, Step: StepFilename}, nil)
	m.record(&Result{Op: OpSend, Status: StatusFailed, Step: StepSize}, ErrParse)
	m.record(nil, nil)

	assert.Equal(t, uint64(1), m.SendCount.Load())
	assert.Equal(t, uint64(1), m.ReceiveCount.Load())
	assert.Equal(t, uint64(1), m.AbortCount.Load())
	assert.Equal(t, uint64(1), m.ErrorCount.Load())
	assert.Equal(t, uint64(1), m.TruncatedCount.Load())
	assert.Equal(t, uint64(10), m.BytesSent.Load())
	assert.Equal(t, uint64(4), m.BytesReceived.Load())
}

func TestMetrics_Collectors(t *testing.T) {
	port := newScriptPort("a\n", "b\n", "c\n", "ok\n")
	eng, files := newTestEngine(t, port)
	files.Put("x.bin", pattern(300))

	res, err := eng.SendFile(context.Background(), CmdSendFile, "x.bin", "x.bin")
	require.NoError(t, err)
	require.True(t, res.OK())

	collectors := eng.Metrics().Collectors(prometheus.Labels{"port": "sim"})
	require.Len(t, collectors, 7)

	assert.InDelta(t, 1.0, testutil.ToFloat64(collectors[0]), 0) // send_total
	assert.InDelta(t, 0.0, testutil.ToFloat64(collectors[1]), 0) // receive_total
	assert.InDelta(t, 300.0, testutil.ToFloat64(collectors[5]), 0)

	reg := prometheus.NewRegistry()
	require.NoError(t, eng.Metrics().Register(reg, prometheus.Labels{"port": "sim"}))

	count, err := testutil.GatherAndCount(reg, "sdxfer_send_total", "sdxfer_sent_bytes_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// registering the same names twice is rejected
	require.Error(t, eng.Metrics().Register(reg, prometheus.Labels{"port": "sim"}))
}
