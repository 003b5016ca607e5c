package identity

import (
	"net/netip"
	"strings"
)

// canonicalLoopback is the single form every loopback address collapses to,
// so an anonymous respondent testing over ::1 and 127.0.0.1 resolves to the
// same instance.
const canonicalLoopback = "127.0.0.1"

// NormalizeAddr canonicalizes a requester network address for use as an
// anonymous-instance key:
//
//   - a trailing ":port" is stripped when present
//   - IPv4-mapped IPv6 forms collapse to plain IPv4
//   - every loopback form ("127.0.0.1", "::1", "localhost") becomes one
//     canonical loopback string
//   - zone identifiers are dropped
//
// The empty string is returned when no usable address can be derived; the
// anonymous collector flow treats that as a client error.
func NormalizeAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	if strings.EqualFold(addr, "localhost") {
		return canonicalLoopback
	}

	if ap, err := netip.ParseAddrPort(addr); err == nil {
		return normalizeIP(ap.Addr())
	}
	if ip, err := netip.ParseAddr(addr); err == nil {
		return normalizeIP(ip)
	}
	// Host:port without brackets where host is not an IP, or a bare
	// hostname. A hostname is not a stable respondent key.
	if host, _, found := strings.Cut(addr, ":"); found && !strings.Contains(host, ":") {
		if strings.EqualFold(host, "localhost") {
			return canonicalLoopback
		}
		if ip, err := netip.ParseAddr(host); err == nil {
			return normalizeIP(ip)
		}
	}
	return ""
}

func normalizeIP(ip netip.Addr) string {
	ip = ip.Unmap().WithZone("")
	if ip.IsLoopback() {
		return canonicalLoopback
	}
	return ip.String()
}
