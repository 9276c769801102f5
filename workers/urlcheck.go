package workers

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// reservedNets holds private/reserved ranges the stdlib ip checks miss.
var reservedNets []*net.IPNet

func init() {
	for _, cidr := range []string{
		"100.64.0.0/10", // carrier-grade NAT
		"fc00::/7",      // IPv6 unique local
		"fe80::/10",     // IPv6 link-local
	} {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("bad reserved CIDR " + cidr + ": " + err.Error())
		}
		reservedNets = append(reservedNets, network)
	}
}

// validateURL screens a URL before the fetcher touches the network: HTTPS
// only, and no localhost, local-domain, or private-address targets.
func validateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "https" {
		return fmt.Errorf("only HTTPS URLs are allowed")
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return fmt.Errorf("localhost URLs are not allowed")
	}
	if strings.HasSuffix(host, ".local") || strings.HasSuffix(host, ".internal") {
		return fmt.Errorf("local domain URLs are not allowed")
	}

	if ip := net.ParseIP(host); ip != nil && isPrivateIP(ip) {
		return fmt.Errorf("private IP addresses are not allowed")
	}

	return nil
}

// isPrivateIP reports whether ip is loopback, private, link-local, or in
// a reserved range. IPv6-mapped IPv4 addresses are checked as IPv4.
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}

	// ::ffff:x.x.x.x needs the IPv4 checks run against the mapped address.
	if v4 := ip.To4(); v4 != nil {
		ip = v4
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() {
			return true
		}
	}

	for _, network := range reservedNets {
		if network.Contains(ip) {
			return true
		}
	}

	return false
}
