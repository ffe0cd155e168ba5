package notify

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
)

var (
	ErrInvalidURL       = errors.New("invalid URL format")
	ErrInvalidScheme    = errors.New("only HTTPS allowed")
	ErrEmptyHost        = errors.New("URL must have a host")
	ErrLocalhostBlocked = errors.New("localhost not allowed")
	ErrPrivateIP        = errors.New("private IP addresses not allowed")
)

// Ranges netip has no predicate for.
var extraBlocked = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
}

// blockedAddr reports whether addr is loopback, private, link-local,
// unspecified, multicast or carrier-grade NAT space.
func blockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() || addr.IsMulticast() {
		return true
	}
	for _, p := range extraBlocked {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func localHostname(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	return host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local")
}

// ValidateTargetURL checks a contact webhook URL at startup. allowInsecure
// admits plain http and local hosts for development receivers.
func ValidateTargetURL(raw string, allowInsecure bool) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if u.Scheme != "https" && !(allowInsecure && u.Scheme == "http") {
		return ErrInvalidScheme
	}

	host := u.Hostname()
	switch {
	case host == "":
		return ErrEmptyHost
	case allowInsecure:
		return nil
	case localHostname(host):
		return ErrLocalhostBlocked
	}
	if addr, err := netip.ParseAddr(host); err == nil && blockedAddr(addr) {
		return ErrPrivateIP
	}
	return nil
}

// dialGuard is a net.Dialer Control hook. It runs after DNS resolution, so
// a public hostname that resolves to a private address is refused too.
func dialGuard(_, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", address, ErrInvalidURL)
	}
	if blockedAddr(ap.Addr()) {
		return fmt.Errorf("dial %s: %w", address, ErrPrivateIP)
	}
	return nil
}

// ExtractHost returns only the host of targetURL. Paths and queries may
// carry secrets and are never logged.
func ExtractHost(targetURL string) string {
	u, err := url.Parse(targetURL)
	if err != nil {
		return "(invalid)"
	}
	return u.Host
}
