package metric

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
)

func TestObserveDecision(t *testing.T) {
	m := New()

	m.ObserveDecision(domain.Result{Decision: domain.DecisionAllowed, Reason: domain.ReasonGranted}, time.Millisecond)
	m.ObserveDecision(domain.Result{Decision: domain.DecisionAllowed, Reason: domain.ReasonGranted}, time.Millisecond)
	m.ObserveDecision(domain.Deny(domain.ReasonStoreError, nil), 2*time.Second)

	if got := testutil.ToFloat64(m.decisions.WithLabelValues("allowed", "granted")); got != 2 {
		t.Errorf("allowed/granted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.decisions.WithLabelValues("denied", "store_error")); got != 1 {
		t.Errorf("denied/store_error = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.decisionDuration); n != 1 {
		t.Errorf("decision histogram series = %d, want 1", n)
	}
}

func TestObserveLogin(t *testing.T) {
	m := New()
	for _, r := range []string{LoginSuccess, LoginFailure, LoginFailure, LoginRateLimited} {
		m.ObserveLogin(r)
	}

	tests := []struct {
		result string
		want   float64
	}{
		{LoginSuccess, 1},
		{LoginFailure, 2},
		{LoginRateLimited, 1},
		{LoginError, 0},
	}
	for _, tt := range tests {
		t.Run(tt.result, func(t *testing.T) {
			if got := testutil.ToFloat64(m.logins.WithLabelValues(tt.result)); got != tt.want {
				t.Errorf("logins{%s} = %v, want %v", tt.result, got, tt.want)
			}
		})
	}
}

func TestObserveCollection(t *testing.T) {
	m := New()
	m.ObserveCollection(3, 10)
	m.ObserveCollection(0, 7)
	m.ObserveCollection(2, -1)

	if got := testutil.ToFloat64(m.sessionsCollected); got != 5 {
		t.Errorf("collected = %v, want 5", got)
	}
	if got := testutil.ToFloat64(m.sessionsActive); got != 7 {
		t.Errorf("active = %v, want 7 (negative remaining keeps the last value)", got)
	}
}

func TestObserveHTTP(t *testing.T) {
	m := New()
	m.ObserveHTTP("GET", "GET /auth/api/is-authorized/", 200, time.Millisecond)
	m.ObserveHTTP("GET", "", 404, time.Millisecond)

	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "GET /auth/api/is-authorized/", "200")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Errorf("unmatched requests = %v, want 1", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	m.ObserveDecision(domain.Result{}, time.Second)
	m.ObserveLogin(LoginSuccess)
	m.ObserveCollection(1, 1)
	m.ObserveHTTP("GET", "/", 200, time.Second)

	if m.Registerer() != nil {
		t.Error("nil Metrics should have no registerer")
	}
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("nil Handler status = %d, want 404", rec.Code)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveLogin(LoginSuccess)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`wwwhisper_logins_total{result="success"} 1`,
		"wwwhisper_build_info{",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
