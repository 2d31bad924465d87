package domain

import (
	"errors"
	"testing"
	"time"
)

func TestCSRFToken(t *testing.T) {
	key := []byte("test-key-test-key-test-key-32byt")
	now := time.Unix(1_700_000_000, 0)

	tok, err := IssueCSRFToken(key, "wwss-session-a", now, time.Hour)
	if err != nil {
		t.Fatalf("IssueCSRFToken() error = %v", err)
	}

	tests := []struct {
		name    string
		key     []byte
		token   string
		binding string
		now     time.Time
		ok      bool
	}{
		{"same binding", key, tok, "wwss-session-a", now.Add(time.Minute), true},
		{"other session", key, tok, "wwss-session-b", now, false},
		{"expired", key, tok, "wwss-session-a", now.Add(time.Hour), false},
		{"rotated key", []byte("another-key"), tok, "wwss-session-a", now, false},
		{"empty binding", key, tok, "", now, false},
		{"garbage", key, "not-a-token", "wwss-session-a", now, false},
		{"empty token", key, "", "wwss-session-a", now, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyCSRFToken(tt.key, tt.token, tt.binding, tt.now)
			if tt.ok && err != nil {
				t.Fatalf("VerifyCSRFToken() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrCSRFInvalid) {
				t.Fatalf("VerifyCSRFToken() error = %v, want ErrCSRFInvalid", err)
			}
		})
	}
}

func TestCSRFToken_Fresh(t *testing.T) {
	key := []byte("k")
	now := time.Now()
	a, _ := IssueCSRFToken(key, "b", now, 0)
	b, _ := IssueCSRFToken(key, "b", now, 0)
	if a == b {
		t.Error("tokens issued for the same binding should differ")
	}
	if err := VerifyCSRFToken(key, a, "b", now.Add(DefaultCSRFTTL-time.Second)); err != nil {
		t.Errorf("default TTL token rejected: %v", err)
	}
}
