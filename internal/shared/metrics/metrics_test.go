package metrics

import (
	"strings"
	"testing"
)

func TestRenderIncludesLabeledRoutingCounters(t *testing.T) {
	IncRoutingAction("enviado")
	IncRoutingAction("enviado")
	IncRoutingAction("recibido")

	out := Render()
	if !strings.Contains(out, `routing_actions_total{action="recibido"}`) {
		t.Fatalf("missing recibido counter:\n%s", out)
	}
	if !strings.Contains(out, "# TYPE routing_duration_ms histogram") {
		t.Fatalf("missing histogram:\n%s", out)
	}
}

func TestHistogramBucketsAreCumulative(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)

	snap := h.Snapshot()
	if snap.count != 3 {
		t.Fatalf("expected count 3, got %d", snap.count)
	}
	if snap.counts[0] != 1 || snap.counts[1] != 1 {
		t.Fatalf("unexpected bucket counts %v", snap.counts)
	}

	out := Render()
	if !strings.Contains(out, `routing_duration_ms_bucket{le="+Inf"}`) {
		t.Fatalf("missing +Inf bucket")
	}
}
