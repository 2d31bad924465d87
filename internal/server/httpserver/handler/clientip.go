package handler

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/nguyendn/wwwhisper/internal/core/service"
)

type clientIPKey struct{}

// WithClientIP records the resolved client address in ctx.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIP returns the client address resolved by the router, or the peer
// address when none was recorded. Forwarding headers are never read here.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok && ip != "" {
		return ip
	}
	return peerIP(r)
}

// ResolveClientIP determines the visitor's address. Forwarding headers are
// honored only when the peer is a trusted proxy; X-Forwarded-For is then
// walked right to left, skipping trusted hops, and the first untrusted
// address wins. A malformed entry stops the walk at the last good hop.
func ResolveClientIP(r *http.Request, trusted *service.IPAllowlist) string {
	peer := peerIP(r)
	addr, err := netip.ParseAddr(peer)
	if err != nil || !trusted.Contains(addr) {
		return peer
	}

	hops := forwardedFor(r.Header)
	if len(hops) == 0 {
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			if a, err := netip.ParseAddr(xri); err == nil {
				return a.Unmap().String()
			}
		}
		return peer
	}

	client := peer
	for i := len(hops) - 1; i >= 0; i-- {
		a, err := netip.ParseAddr(hops[i])
		if err != nil {
			break
		}
		client = a.Unmap().String()
		if !trusted.Contains(a) {
			break
		}
	}
	return client
}

// forwardedFor flattens every X-Forwarded-For header into hop order.
func forwardedFor(h http.Header) []string {
	var hops []string
	for _, v := range h.Values("X-Forwarded-For") {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				hops = append(hops, part)
			}
		}
	}
	return hops
}

func peerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
