package observability

import (
	"testing"
	"time"

	"github.com/danmuck/webbridge/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("GET", "/health", 200, 12*time.Millisecond)
	RecordForward(200, "ok", 24*time.Millisecond)
	RecordPipeBytes(DirectionWrite, 0)
}

func TestRecordEvalCountsByOutcome(t *testing.T) {
	testlog.Start(t)
	before := testutil.ToFloat64(evalCommands.WithLabelValues(EvalTimeout))
	RecordEval(EvalTimeout)
	RecordEval(EvalTimeout)
	if got := testutil.ToFloat64(evalCommands.WithLabelValues(EvalTimeout)); got != before+2 {
		t.Fatalf("timeout count: got %v want %v", got, before+2)
	}
}

func TestRecordPipeBytes(t *testing.T) {
	testlog.Start(t)
	before := testutil.ToFloat64(pipeBytes.WithLabelValues(DirectionRead))
	RecordPipeBytes(DirectionRead, 512)
	RecordPipeBytes(DirectionRead, -1)
	if got := testutil.ToFloat64(pipeBytes.WithLabelValues(DirectionRead)); got != before+512 {
		t.Fatalf("read bytes: got %v want %v", got, before+512)
	}
}
