package service

import (
	"net/netip"
	"strings"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
)

// IPAllowlist restricts a surface to a set of addresses and CIDR ranges.
// An empty list admits everyone.
type IPAllowlist struct {
	prefixes []netip.Prefix
}

// NewIPAllowlist parses entries, each either an address or a CIDR range.
// Invalid entries fail with ErrBadRequest.
func NewIPAllowlist(entries []string) (*IPAllowlist, error) {
	l := &IPAllowlist{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, domain.ErrBadRequest.WithDetails("invalid cidr " + entry).WithCause(err)
			}
			l.prefixes = append(l.prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, domain.ErrBadRequest.WithDetails("invalid ip " + entry).WithCause(err)
		}
		addr = addr.Unmap()
		l.prefixes = append(l.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return l, nil
}

// Check returns nil when clientIP is admitted, ErrIPNotAllowed otherwise.
func (l *IPAllowlist) Check(clientIP string) error {
	if l == nil || len(l.prefixes) == 0 {
		return nil
	}

	addr, err := netip.ParseAddr(clientIP)
	if err != nil {
		return domain.ErrIPNotAllowed.WithDetails("invalid client IP format")
	}
	addr = addr.Unmap()

	for _, p := range l.prefixes {
		if p.Contains(addr) {
			return nil
		}
	}
	return domain.ErrIPNotAllowed.WithDetails("client IP not in allowlist")
}

// Contains reports whether ip falls in one of the listed ranges. Unlike
// Check, an empty list contains nothing.
func (l *IPAllowlist) Contains(ip netip.Addr) bool {
	if l == nil || !ip.IsValid() {
		return false
	}
	ip = ip.Unmap()
	for _, p := range l.prefixes {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}
