// Package security validates where the bearer token may be sent.
package security

import (
	"net/netip"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// NodeAddressOptions configures node address validation.
type NodeAddressOptions struct {
	// AllowInsecureRemote permits plain HTTP to hosts outside the local
	// machine and private networks. HTTPS is always allowed.
	AllowInsecureRemote bool
}

// ValidateNodeAddress checks that rawURL is a usable node address. Plain HTTP
// is only accepted for loopback, private and link-local targets unless
// AllowInsecureRemote is set, since every request carries the API token.
func ValidateNodeAddress(rawURL string, opts NodeAddressOptions) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrap(err, "invalid node address")
	}

	switch parsed.Scheme {
	case "https":
	case "http":
	default:
		return errors.Errorf("unsupported node address scheme %q", parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return errors.New("node address host is required")
	}
	if parsed.RawQuery != "" || parsed.Fragment != "" {
		return errors.New("node address must not carry a query or fragment")
	}

	if parsed.Scheme == "http" && !opts.AllowInsecureRemote && !IsLocalHost(host) {
		return errors.Errorf("refusing plain http to remote host %q", host)
	}
	return nil
}

// IsLocalHost reports whether host names the local machine or a private
// network address. Names are not resolved.
func IsLocalHost(host string) bool {
	host = strings.ToLower(host)
	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
		return true
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast()
}
