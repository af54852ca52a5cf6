package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveStoreEvents(t *testing.T) {
	m := New()

	m.ObserveLookup("words", "hit")
	m.ObserveLookup("words", "hit")
	m.ObserveLookup("words", "miss")
	m.ObserveWrite("blanks", "written")

	if got := testutil.ToFloat64(m.lookups.WithLabelValues("words", "hit")); got != 2 {
		t.Errorf("hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.lookups.WithLabelValues("words", "miss")); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.writes.WithLabelValues("blanks", "written")); got != 1 {
		t.Errorf("writes = %v, want 1", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveRequest("POST", "/", 200, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{"http_requests_total", "http_request_duration_seconds", "go_goroutines"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestNewIsRepeatable(t *testing.T) {
	// Each instance has its own registry, so a second New must not panic.
	New()
	New()
}
