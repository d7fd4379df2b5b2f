package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestCounters(t *testing.T) {
	m := New()

	m.LedgerOperation("create", OutcomeSuccess)
	m.LedgerOperation("create", OutcomeSuccess)
	m.LedgerOperation("create", OutcomeInvalid)
	m.MemberCacheLookup(true)
	m.MemberCacheLookup(false)
	m.MemberCacheLookup(false)

	out := scrape(t, m)
	for _, want := range []string{
		`roomies_ledger_operations_total{operation="create",outcome="success"} 2`,
		`roomies_ledger_operations_total{operation="create",outcome="invalid"} 1`,
		`roomies_cache_member_lookups_total{result="miss"} 2`,
		`roomies_cache_member_lookups_total{result="hit"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.LedgerOperation("create", OutcomeSuccess)
	m.EventPublished("transaction.created", OutcomeError)
	m.ExportOperation("upsert", OutcomeSuccess)
	m.ObserveHTTPRequest(http.MethodGet, 200, time.Millisecond)
	m.MemberCacheLookup(true)
	m.RateLimited()
	m.SuspiciousRequest()
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveHTTPRequest(http.MethodPost, 201, 15*time.Millisecond)
	m.ExportOperation("reconcile", OutcomeSuccess)
	m.RateLimited()

	body := scrape(t, m)
	for _, want := range []string{
		`roomies_http_request_duration_seconds_count{method="POST",status="201"} 1`,
		`roomies_export_operations_total{operation="reconcile",outcome="success"} 1`,
		"roomies_http_rate_limited_total 1",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
