package service

import (
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
)

func TestRateLimiterRegistry_Allow(t *testing.T) {
	r := NewRateLimiterRegistry(1, 3)
	now := time.Unix(1_700_000_000, 0)
	r.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if err := r.Allow("192.0.2.1"); err != nil {
			t.Fatalf("attempt %d rejected: %v", i, err)
		}
	}
	if err := r.Allow("192.0.2.1"); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("burst exceeded, error = %v, want ErrRateLimited", err)
	}
	if err := r.Allow("192.0.2.2"); err != nil {
		t.Fatalf("other key should have its own bucket: %v", err)
	}

	now = now.Add(time.Second)
	if err := r.Allow("192.0.2.1"); err != nil {
		t.Fatalf("bucket did not refill: %v", err)
	}
}

func TestRateLimiterRegistry_Disabled(t *testing.T) {
	r := NewRateLimiterRegistry(0, 0)
	for i := 0; i < 100; i++ {
		if err := r.Allow("k"); err != nil {
			t.Fatalf("disabled limiter rejected: %v", err)
		}
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0 for a disabled registry", r.Len())
	}
}

func TestRateLimiterRegistry_Sweep(t *testing.T) {
	r := NewRateLimiterRegistry(1, 1)
	now := time.Unix(1_700_000_000, 0)
	r.now = func() time.Time { return now }

	_ = r.Allow("old")
	now = now.Add(10 * time.Minute)
	_ = r.Allow("new")

	if n := r.Sweep(5 * time.Minute); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	r.Delete("new")
	if r.Len() != 0 {
		t.Errorf("Len() after Delete = %d, want 0", r.Len())
	}
}

func TestIPAllowlist(t *testing.T) {
	l, err := NewIPAllowlist([]string{"10.0.0.0/8", "192.0.2.7", " ", "::1"})
	if err != nil {
		t.Fatalf("NewIPAllowlist failed: %v", err)
	}

	tests := []struct {
		ip string
		ok bool
	}{
		{"10.1.2.3", true},
		{"192.0.2.7", true},
		{"::ffff:192.0.2.7", true},
		{"::1", true},
		{"192.0.2.8", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		err := l.Check(tt.ip)
		if tt.ok && err != nil {
			t.Errorf("Check(%s) = %v, want nil", tt.ip, err)
		}
		if !tt.ok && !errors.Is(err, domain.ErrIPNotAllowed) {
			t.Errorf("Check(%s) = %v, want ErrIPNotAllowed", tt.ip, err)
		}
	}

	empty, _ := NewIPAllowlist(nil)
	if err := empty.Check("203.0.113.1"); err != nil {
		t.Errorf("empty allowlist should admit everyone: %v", err)
	}
	if _, err := NewIPAllowlist([]string{"10.0.0.0/99"}); err == nil {
		t.Error("invalid CIDR accepted")
	}
}

func TestCSRFService(t *testing.T) {
	s := NewCSRFService([]byte("secret"), 0)
	tok, err := s.Issue("wwss-abc")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if err := s.Verify(tok, "wwss-abc"); err != nil {
		t.Errorf("Verify() = %v", err)
	}
	if err := s.Verify(tok, "wwss-other"); !errors.Is(err, domain.ErrCSRFInvalid) {
		t.Errorf("Verify(other binding) = %v, want ErrCSRFInvalid", err)
	}
}

func TestRateLimiterRegistry_Nil(t *testing.T) {
	var r *RateLimiterRegistry
	if err := r.Allow("192.0.2.1"); err != nil {
		t.Errorf("nil registry Allow() = %v, want nil", err)
	}
	if n := r.Sweep(time.Minute); n != 0 {
		t.Errorf("nil registry Sweep() = %d, want 0", n)
	}
	r.Delete("192.0.2.1")
	if r.Len() != 0 {
		t.Errorf("nil registry Len() = %d, want 0", r.Len())
	}
}

func TestRateLimiterRegistry_DeleteRefillsBucket(t *testing.T) {
	r := NewRateLimiterRegistry(0.001, 1)
	if err := r.Allow("192.0.2.1"); err != nil {
		t.Fatalf("first Allow() = %v", err)
	}
	if err := r.Allow("192.0.2.1"); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("second Allow() = %v, want ErrRateLimited", err)
	}
	r.Delete("192.0.2.1")
	if err := r.Allow("192.0.2.1"); err != nil {
		t.Errorf("Allow() after Delete = %v, want nil", err)
	}
}

func TestIPAllowlist_Contains(t *testing.T) {
	l, err := NewIPAllowlist([]string{"10.0.0.0/8", "2001:db8::/32"})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		ip   string
		want bool
	}{
		{"10.9.9.9", true},
		{"::ffff:10.0.0.1", true},
		{"2001:db8::5", true},
		{"203.0.113.50", false},
	}
	for _, tt := range tests {
		if got := l.Contains(netip.MustParseAddr(tt.ip)); got != tt.want {
			t.Errorf("Contains(%s) = %v, want %v", tt.ip, got, tt.want)
		}
	}
	if l.Contains(netip.Addr{}) {
		t.Error("Contains(invalid) = true")
	}

	empty, _ := NewIPAllowlist(nil)
	if empty.Contains(netip.MustParseAddr("10.0.0.1")) {
		t.Error("empty list should contain nothing")
	}
	var none *IPAllowlist
	if none.Contains(netip.MustParseAddr("10.0.0.1")) {
		t.Error("nil list should contain nothing")
	}
}
