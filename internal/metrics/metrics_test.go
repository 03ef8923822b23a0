package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveGenerator(time.Now(), nil)
	m.ObserveDocs("resolve-library-id", errors.New("x"))
	m.ObserveRegistry(nil)
	m.ObserveStore("created")
	if m.Registry() != nil {
		t.Error("nil metrics should have nil registry")
	}
}

func TestObserveCounters(t *testing.T) {
	m := New()
	m.ObserveGenerator(time.Now(), nil)
	m.ObserveGenerator(time.Now(), errors.New("boom"))
	m.ObserveDocs("get-library-docs", nil)
	m.ObserveRegistry(errors.New("404"))
	m.ObserveStore("updated")
	m.ObserveStore("updated")

	if got := testutil.ToFloat64(m.GeneratorCalls.WithLabelValues(OutcomeOK)); got != 1 {
		t.Errorf("generator ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.GeneratorCalls.WithLabelValues(OutcomeError)); got != 1 {
		t.Errorf("generator error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.DocsRequests.WithLabelValues("get-library-docs", OutcomeOK)); got != 1 {
		t.Errorf("docs ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RegistryLookups.WithLabelValues(OutcomeError)); got != 1 {
		t.Errorf("registry error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.StoreMutations.WithLabelValues("updated")); got != 2 {
		t.Errorf("store updated = %v, want 2", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveStore("created")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "planner_store_mutations_total") {
		t.Errorf("metrics output missing store counter:\n%s", body)
	}
}
