// Package security provides validation helpers for user-supplied input.
package security

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// ErrBlockedAddress is returned when a connection would reach a local or
// private address that the policy does not allow.
var ErrBlockedAddress = errors.New("address is local or private")

const maxRedirects = 10

// URLPolicy controls which remote image URLs are acceptable.
type URLPolicy struct {
	// AllowHTTP permits plain http:// in addition to https://.
	AllowHTTP bool

	// AllowPrivate permits loopback, link-local and private hosts.
	AllowPrivate bool
}

// ValidateHTTPURL validates an HTTP(S) URL for safe downloads.
// By default only HTTPS from non-local hosts is allowed.
func ValidateHTTPURL(urlStr string, policy URLPolicy) error {
	if urlStr == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	switch {
	case scheme == "https":
	case scheme == "http" && policy.AllowHTTP:
	default:
		return fmt.Errorf("only HTTPS URLs are allowed (got %q)", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a hostname")
	}

	// Block localhost and private IPs to prevent SSRF
	host := strings.ToLower(parsed.Hostname())
	if !policy.AllowPrivate && isLocalOrPrivateHost(host) {
		return fmt.Errorf("URL cannot point to local or private hosts: %s", host)
	}

	return nil
}

// Client returns an HTTP client that enforces the policy on every hop.
// Addresses are checked after DNS resolution, so a public hostname that
// resolves to a private address is refused, and every redirect target is
// validated like the original URL.
func (p URLPolicy) Client(timeout time.Duration) *http.Client {
	return p.client(timeout, func(ap netip.AddrPort) bool {
		return isBlockedAddr(ap.Addr())
	})
}

func (p URLPolicy) client(timeout time.Duration, blocked func(netip.AddrPort) bool) *http.Client {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: func(_, address string, _ syscall.RawConn) error {
			if p.AllowPrivate {
				return nil
			}
			ap, err := netip.ParseAddrPort(address)
			if err != nil {
				return fmt.Errorf("%w: unparseable address %q", ErrBlockedAddress, address)
			}
			if blocked(ap) {
				return fmt.Errorf("%w: %s", ErrBlockedAddress, ap.Addr())
			}
			return nil
		},
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	// A proxy would be dialled instead of the target, hiding it from Control.
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if err := ValidateHTTPURL(req.URL.String(), p); err != nil {
				return fmt.Errorf("redirect refused: %w", err)
			}
			return nil
		},
	}
}

// SafeUint8 safely converts an integer to uint8 with bounds checking.
// Values outside 0-255 are clamped to the valid range.
func SafeUint8(val int) uint8 {
	if val < 0 {
		return 0
	}
	if val > 255 {
		return 255
	}
	return uint8(val)
}

// isLocalOrPrivateHost checks if a hostname is localhost or a private IP.
func isLocalOrPrivateHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}

	addr, err := netip.ParseAddr(strings.Trim(host, "[]"))
	if err != nil {
		return false
	}
	return isBlockedAddr(addr)
}

func isBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsUnspecified()
}
