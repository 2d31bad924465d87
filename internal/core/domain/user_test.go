package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"alice@example.com", "alice@example.com", false},
		{"  Alice@Example.COM ", "alice@example.com", false},
		{"", "", true},
		{"alice", "", true},
		{"Alice <alice@example.com>", "", true},
		{"a@" + strings.Repeat("x", MaxEmailLength) + ".com", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := NormalizeEmail(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidEmail) {
					t.Fatalf("NormalizeEmail(%q) error = %v, want ErrInvalidEmail", tt.raw, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("NormalizeEmail(%q) = %q, %v; want %q", tt.raw, got, err, tt.want)
			}
		})
	}
}

func TestParseID(t *testing.T) {
	u := NewUser("a@example.com", "", false, time.Now())

	for _, raw := range []string{u.ID, URN(u.ID), strings.ToUpper(u.ID)} {
		got, ok := ParseID(raw)
		if !ok || got != u.ID {
			t.Errorf("ParseID(%q) = %q, %v; want %q", raw, got, ok, u.ID)
		}
	}
	if _, ok := ParseID("not-a-uuid"); ok {
		t.Error("ParseID should reject garbage")
	}
}

func TestUser_Clone(t *testing.T) {
	u := NewUser("a@example.com", "hash", true, time.Now())
	c := u.Clone()
	c.Email = "b@example.com"
	if u.Email != "a@example.com" {
		t.Error("Clone() shares state with the original")
	}
}
