package domain

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestNormalizePattern(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"/", "/", false},
		{"/docs", "/docs", false},
		{"/docs/", "/docs", false},
		{"/a/b/c/", "/a/b/c", false},
		{"/%7Euser", "/%7Euser", false},
		{"", "", true},
		{"docs", "", true},
		{"/a//b", "", true},
		{"//", "", true},
		{"/a/./b", "", true},
		{"/a/../b", "", true},
		{"/..", "", true},
		{"/a/%2e%2e/b", "", true},
		{"/a?x=1", "", true},
		{"/a#frag", "", true},
		{"/a b", "", true},
		{"/a\tb", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := NormalizePattern(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPattern) {
					t.Fatalf("NormalizePattern(%q) error = %v, want ErrInvalidPattern", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizePattern(%q) error = %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("NormalizePattern(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"/", "/", false},
		{"/docs/readme", "/docs/readme", false},
		{"/docs/", "/docs", false},
		{"/a//b", "/a/b", false},
		{"/a/b?q=/c", "/a/b", false},
		{"/a#x", "/a", false},
		{"/a/../secret", "", true},
		{"/a/./b", "", true},
		{"relative", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := NormalizePath(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPath) {
					t.Fatalf("NormalizePath(%q) error = %v, want ErrInvalidPath", tt.raw, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, %v; want %q", tt.raw, got, err, tt.want)
			}
		})
	}
}

func TestLocation_Matches(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/", "/", true},
		{"/", "/anything/at/all", true},
		{"/a", "/a", true},
		{"/a", "/a/b", true},
		{"/a", "/ab", false},
		{"/a/b", "/a", false},
		{"/a/b", "/a/b/x", true},
		{"/a/b", "/a/bc", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.path, func(t *testing.T) {
			l := &Location{Path: tt.pattern}
			if got := l.Matches(tt.path); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCandidatePaths(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"/", []string{"/"}},
		{"/a", []string{"/a", "/"}},
		{"/a/b/c", []string{"/a/b/c", "/a/b", "/a", "/"}},
	}
	for _, tt := range tests {
		if got := CandidatePaths(tt.path); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("CandidatePaths(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestMatchLocations_LongestPrefixWins(t *testing.T) {
	now := time.Now()
	a := NewLocation("/a", true, now)
	a.Seq = 1
	ab := NewLocation("/a/b", false, now)
	ab.Seq = 2
	root := NewLocation("/", false, now)
	root.Seq = 3

	got := MatchLocations([]*Location{a, root, ab}, "/a/b/x")
	if len(got) != 3 {
		t.Fatalf("MatchLocations() returned %d locations, want 3", len(got))
	}
	if got[0] != ab || got[1] != a || got[2] != root {
		t.Errorf("order = %s, %s, %s; want /a/b, /a, /", got[0].Path, got[1].Path, got[2].Path)
	}

	got = MatchLocations([]*Location{a, ab}, "/ab")
	if len(got) != 0 {
		t.Errorf("/ab should match nothing, got %d", len(got))
	}
}

func TestSortBySpecificity_TieGoesToFirstRegistered(t *testing.T) {
	first := &Location{ID: "first", Path: "/x", Seq: 7}
	second := &Location{ID: "second", Path: "/y", Seq: 9}

	locs := []*Location{second, first}
	SortBySpecificity(locs)
	if locs[0].ID != "first" {
		t.Errorf("winner = %s, want first", locs[0].ID)
	}
}
