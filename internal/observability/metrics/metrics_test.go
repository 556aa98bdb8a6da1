package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordTurn_Degraded(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordTurn("done", 1.2)
	m.RecordTurn("degraded", 0.8)
	m.RecordTurn("degraded", 0.9)

	if got := testutil.ToFloat64(m.TurnsTotal.WithLabelValues("degraded")); got != 2 {
		t.Errorf("expected 2 degraded turns, got %v", got)
	}
	if got := testutil.ToFloat64(m.DegradedTurns); got != 2 {
		t.Errorf("expected degraded counter 2, got %v", got)
	}
	if got := testutil.ToFloat64(m.TurnsTotal.WithLabelValues("done")); got != 1 {
		t.Errorf("expected 1 done turn, got %v", got)
	}
}

func TestRecordStage_CountsErrors(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordStage(StageGeneration, "gemini", nil, 0.3)
	m.RecordStage(StageGeneration, "gemini", errors.New("boom"), 0.1)

	if got := testutil.ToFloat64(m.StageErrors.WithLabelValues(StageGeneration, "gemini")); got != 1 {
		t.Errorf("expected 1 stage error, got %v", got)
	}
}

func TestSessions_Gauge(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordSessionStart()
	m.RecordSessionStart()
	m.RecordSessionEnd(true)

	if got := testutil.ToFloat64(m.SessionsActive); got != 1 {
		t.Errorf("expected 1 active session, got %v", got)
	}
	if got := testutil.ToFloat64(m.SessionsExpired); got != 1 {
		t.Errorf("expected 1 expired session, got %v", got)
	}
}
