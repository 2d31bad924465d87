package domain

import (
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode"
)

// MaxPathLength bounds both location patterns and request paths.
const MaxPathLength = 2048

// Location is a protected path prefix on the guarded site.
type Location struct {
	ID string `json:"id"`

	// Path is the normalized pattern (see NormalizePattern).
	Path string `json:"path"`

	// OpenAccess admits any authenticated user.
	OpenAccess bool `json:"open_access"`

	// Seq is the store-assigned insertion sequence. Lower is older.
	Seq uint64 `json:"seq"`

	CreatedAt int64 `json:"created_at"`
}

// NewLocation builds a location with a fresh ID. Seq is left for the store.
func NewLocation(path string, openAccess bool, now time.Time) *Location {
	return &Location{
		ID:         NewID(),
		Path:       path,
		OpenAccess: openAccess,
		CreatedAt:  now.UnixMilli(),
	}
}

// Clone creates a copy of the location.
func (l *Location) Clone() *Location {
	clone := *l
	return &clone
}

// Depth is the number of non-empty segments in the path. "/" has depth 0.
func (l *Location) Depth() int {
	return pathDepth(l.Path)
}

// Matches reports whether the location covers the normalized request path.
// Matching is by whole segments: /a covers /a and /a/b but not /ab.
func (l *Location) Matches(path string) bool {
	if l.Path == "/" {
		return true
	}
	if !strings.HasPrefix(path, l.Path) {
		return false
	}
	return len(path) == len(l.Path) || path[len(l.Path)] == '/'
}

// NormalizePattern validates and normalizes a location path pattern.
//
// Patterns must be absolute and must not carry a query, fragment, "." or
// ".." segments, empty segments, whitespace or control characters. A single
// trailing slash is dropped, so "/docs/" and "/docs" are the same location.
func NormalizePattern(raw string) (string, error) {
	if strings.ContainsAny(raw, "?#") {
		return "", ErrInvalidPattern.WithDetails("query and fragment are not allowed")
	}
	p, reason := normalize(raw, false)
	if reason != "" {
		return "", ErrInvalidPattern.WithDetails(reason)
	}
	return p, nil
}

// NormalizePath normalizes a request path for matching. Query and fragment
// are cut and repeated slashes collapse; dot segments are rejected.
func NormalizePath(raw string) (string, error) {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	p, reason := normalize(raw, true)
	if reason != "" {
		return "", ErrInvalidPath.WithDetails(reason)
	}
	return p, nil
}

func normalize(raw string, collapse bool) (string, string) {
	if raw == "" || raw[0] != '/' {
		return "", "path must start with /"
	}
	if len(raw) > MaxPathLength {
		return "", "path too long"
	}
	for _, r := range raw {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return "", "path contains whitespace or control characters"
		}
	}

	segments := strings.Split(raw[1:], "/")
	out := make([]string, 0, len(segments))
	for i, seg := range segments {
		switch decodeSegment(seg) {
		case ".", "..":
			return "", "dot segments are not allowed"
		case "":
			// A single trailing slash is always fine.
			if i == len(segments)-1 || collapse {
				continue
			}
			return "", "empty path segment"
		}
		out = append(out, seg)
	}
	return "/" + strings.Join(out, "/"), ""
}

// CandidatePaths returns every pattern that could match the normalized path,
// most specific first: "/a/b" yields "/a/b", "/a", "/".
func CandidatePaths(path string) []string {
	candidates := []string{path}
	for p := path; p != "/"; {
		i := strings.LastIndexByte(p, '/')
		if i == 0 {
			p = "/"
		} else {
			p = p[:i]
		}
		candidates = append(candidates, p)
	}
	return candidates
}

// SortBySpecificity orders locations so the winner comes first: deepest
// path first, then lowest Seq.
func SortBySpecificity(locs []*Location) {
	sort.SliceStable(locs, func(i, j int) bool {
		di, dj := locs[i].Depth(), locs[j].Depth()
		if di != dj {
			return di > dj
		}
		return locs[i].Seq < locs[j].Seq
	})
}

// MatchLocations filters locs to those covering path and orders them with
// SortBySpecificity. The input slice is not modified.
func MatchLocations(locs []*Location, path string) []*Location {
	var out []*Location
	for _, l := range locs {
		if l.Matches(path) {
			out = append(out, l)
		}
	}
	SortBySpecificity(out)
	return out
}

// decodeSegment undoes percent-encoding so "%2e%2e" is treated as "..".
func decodeSegment(seg string) string {
	if !strings.Contains(seg, "%") {
		return seg
	}
	if d, err := url.PathUnescape(seg); err == nil {
		return d
	}
	return seg
}

func pathDepth(p string) int {
	if p == "/" {
		return 0
	}
	return strings.Count(p, "/")
}
