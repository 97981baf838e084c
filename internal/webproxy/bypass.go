package webproxy

import (
	"net/netip"
	"net/url"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/looplj/webproxy/internal/pkg/xregexp"
)

// Bypass patterns are matched case-insensitively, with the subject taken as a single line.
const matchOptions = regexp2.IgnoreCase | regexp2.Singleline

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ws":    "80",
	"wss":   "443",
	"ftp":   "21",
}

// IsBypassed decides whether host skips the proxy described by p. A nil p is treated as
// a configuration without a proxy. The rules are checked in order and the first one that
// decides wins:
//
//  1. a nil host is an ErrInvalidArgument;
//  2. loopback hosts bypass when bypass-on-local is set;
//  3. without a proxy address everything bypasses;
//  4. single-label host names bypass when bypass-on-local is set;
//  5. with bypass-on-local unset, "localhost", "loopback" and loopback IP literals bypass;
//  6. an empty bypass list never bypasses;
//  7. otherwise "scheme://authority" is matched against the bypass list.
//
// Rule 5 only applies when bypass-on-local is off. That asymmetry is intended.
func IsBypassed(p *Proxy, host *url.URL) (bool, error) {
	if host == nil {
		return false, ErrInvalidArgument
	}

	if p == nil {
		return true, nil
	}

	server := host.Hostname()

	if p.bypassOnLocal && isLoopbackHost(server) {
		return true, nil
	}

	if p.address == nil {
		return true, nil
	}

	if p.bypassOnLocal && !strings.Contains(server, ".") {
		return true, nil
	}

	if !p.bypassOnLocal {
		if strings.EqualFold(server, "localhost") || strings.EqualFold(server, "loopback") {
			return true, nil
		}

		if addr, ok := parseIP(server); ok && addr.IsLoopback() {
			return true, nil
		}
	}

	if len(p.bypassList) == 0 {
		return false, nil
	}

	return matchBypassList(p.bypassList, host.Scheme+"://"+authority(host)), nil
}

// matchBypassList scans patterns in order for one matching subject. After a match the
// remaining patterns are still compiled: a malformed entry anywhere from the match onward,
// or any failure while scanning, turns the answer into "no bypass".
func matchBypassList(patterns []string, subject string) bool {
	matched := -1

	for i, pattern := range patterns {
		regex, err := xregexp.Compile(pattern, matchOptions)
		if err != nil {
			return false
		}

		ok, err := regex.MatchString(subject)
		if err != nil {
			return false
		}

		if ok {
			matched = i
			break
		}
	}

	if matched < 0 {
		return false
	}

	for _, pattern := range patterns[matched:] {
		if err := xregexp.Validate(pattern); err != nil {
			return false
		}
	}

	return true
}

// authority returns host[:port] with the port left out when it is the scheme default.
func authority(u *url.URL) string {
	host := u.Hostname()
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	port := u.Port()
	if port == "" || defaultPorts[strings.ToLower(u.Scheme)] == port {
		return host
	}

	return host + ":" + port
}

func isLoopbackHost(host string) bool {
	if host == "" {
		return false
	}

	if strings.EqualFold(host, "localhost") || strings.EqualFold(host, "loopback") {
		return true
	}

	addr, ok := parseIP(host)

	return ok && addr.IsLoopback()
}

// parseIP accepts standard IPv4/IPv6 literals and the legacy IPv4 forms (127.1,
// 0x7f.0.0.1, 2130706433) that resolvers still honour.
func parseIP(host string) (netip.Addr, bool) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.Unmap(), true
	}

	return parseLegacyIPv4(host)
}

func parseLegacyIPv4(host string) (netip.Addr, bool) {
	parts := strings.Split(host, ".")
	if len(parts) == 0 || len(parts) > 4 {
		return netip.Addr{}, false
	}

	values := make([]uint64, len(parts))

	for i, part := range parts {
		v, ok := parseLegacyIPv4Part(part)
		if !ok {
			return netip.Addr{}, false
		}

		values[i] = v
	}

	// The last part fills every remaining byte.
	last := len(values) - 1
	if values[last] >= 1<<(8*(4-last)) {
		return netip.Addr{}, false
	}

	ip := values[last]

	for i := 0; i < last; i++ {
		if values[i] > 0xff {
			return netip.Addr{}, false
		}

		ip |= values[i] << (8 * (3 - i))
	}

	return netip.AddrFrom4([4]byte{byte(ip >> 24), byte(ip >> 16), byte(ip >> 8), byte(ip)}), true
}

// parseLegacyIPv4Part follows inet_aton: 0x prefix is hex, a leading 0 is octal,
// anything else is decimal.
func parseLegacyIPv4Part(part string) (uint64, bool) {
	base := 10

	switch {
	case len(part) > 2 && (part[:2] == "0x" || part[:2] == "0X"):
		part, base = part[2:], 16
	case len(part) > 1 && part[0] == '0':
		part, base = part[1:], 8
	}

	// ParseUint only honours underscores with base 0.
	v, err := strconv.ParseUint(part, base, 32)
	if err != nil {
		return 0, false
	}

	return v, true
}
