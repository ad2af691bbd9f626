package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)
	r.RecordTableBuild("ok", 0.01)
	r.RecordTableBuild("ok", 0.02)
	r.RecordCacheHit("memory")
	r.RecordCacheMiss("redis")
	r.RecordIngested("vol", 20)
	r.RecordDatasetLoad(100, 40)

	if got := testutil.ToFloat64(r.tableBuilds.WithLabelValues("ok")); got != 2 {
		t.Fatalf("builds=%v", got)
	}
	if got := testutil.ToFloat64(r.cacheLookups.WithLabelValues("memory", "hit")); got != 1 {
		t.Fatalf("hits=%v", got)
	}
	if got := testutil.ToFloat64(r.ingested.WithLabelValues("vol")); got != 20 {
		t.Fatalf("ingested=%v", got)
	}
	if got := testutil.ToFloat64(r.datasetPoints.WithLabelValues("rate")); got != 40 {
		t.Fatalf("rates=%v", got)
	}
}
