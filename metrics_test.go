package corekit

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsCollectorRecordRequestSnapshot(t *testing.T) {
	mc := NewMetricsCollector()
	mc.RecordRequest("GET", "/users", 200, 10*time.Millisecond, 100)
	mc.RecordRequest("GET", "/users", 500, 30*time.Millisecond, 50)

	snap := mc.Snapshot()
	if snap.Total != 2 {
		t.Fatalf("Total = %d, want 2", snap.Total)
	}
	if snap.Success != 1 || snap.Fail != 1 {
		t.Fatalf("Success=%d Fail=%d, want 1/1", snap.Success, snap.Fail)
	}
	if snap.Bytes != 150 {
		t.Fatalf("Bytes = %d, want 150", snap.Bytes)
	}
	if snap.AverageLatency != 20*time.Millisecond {
		t.Fatalf("AverageLatency = %v, want 20ms", snap.AverageLatency)
	}
	if snap.SuccessRate != 0.5 {
		t.Fatalf("SuccessRate = %v, want 0.5", snap.SuccessRate)
	}
}

func TestMetricsCollectorEmptySnapshot(t *testing.T) {
	mc := NewMetricsCollector()
	snap := mc.Snapshot()
	if snap.Total != 0 || snap.SuccessRate != 0 || snap.AverageLatency != 0 {
		t.Fatalf("expected a zero-valued snapshot, got %+v", snap)
	}
}

func TestMetricsCollectorNilReceiverIsSafe(t *testing.T) {
	var mc *MetricsCollector
	mc.RecordRequest("GET", "/x", 200, time.Millisecond, 1)
	mc.RecordCacheHit("GET", "/x")
	mc.RecordError("Timeout", "GET", "/x")
}

func TestNewMetricsCollectorWithRegistryUsesGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	mc := NewMetricsCollectorWithRegistry(reg)
	if mc.GetRegistry() != reg {
		t.Fatal("expected collector to retain the supplied registry")
	}

	mc.RecordRequest("GET", "/x", 200, time.Millisecond, 1)
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected at least one registered metric family")
	}
}

func TestTwoCollectorsDoNotShareRegistries(t *testing.T) {
	a := NewMetricsCollector()
	b := NewMetricsCollector()
	a.RecordRequest("GET", "/x", 200, time.Millisecond, 1)

	if a.Snapshot().Total == b.Snapshot().Total {
		t.Fatal("expected independently instantiated collectors to have independent counters")
	}
}
