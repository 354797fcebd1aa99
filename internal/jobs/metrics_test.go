package jobmetrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	boom := errors.New("boom")
	if err := m.Track("ledger:integrity").End(boom); !errors.Is(err, boom) {
		t.Fatalf("expected error passthrough, got %v", err)
	}
	_ = m.Track("ledger:integrity").End(nil)

	if got := testutil.ToFloat64(m.runs.WithLabelValues("ledger:integrity", "failure")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("ledger:integrity", "success")); got != 1 {
		t.Fatalf("expected 1 success, got %v", got)
	}
}

func TestScopeLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	branch := int64(7)

	m.AddAnomalies("trial_balance", &branch, 2)
	m.AddAnomalies("trial_balance", nil, 0)
	m.SkipScope("ledger:report_warmup", nil)
	m.MarkClean("ledger:integrity", &branch, time.Unix(1717200000, 0))

	expected := `
# HELP odyssey_ledger_anomalies_total Ledger integrity anomalies grouped by check and branch.
# TYPE odyssey_ledger_anomalies_total counter
odyssey_ledger_anomalies_total{branch="7",check="trial_balance"} 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "odyssey_ledger_anomalies_total"); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(m.skipped.WithLabelValues("ledger:report_warmup", "all")); got != 1 {
		t.Fatalf("expected skipped scope, got %v", got)
	}
	if got := testutil.ToFloat64(m.lastClean.WithLabelValues("ledger:integrity", "7")); got != 1717200000 {
		t.Fatalf("unexpected clean stamp %v", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.AddAnomalies("rollup", nil, 1)
	m.SkipScope("ledger:integrity", nil)
	m.MarkClean("ledger:integrity", nil, time.Now())
	if err := m.Track("x").End(nil); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}
