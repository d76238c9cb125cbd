package hospital

import (
	"net"
	"strings"
)

// SplitHost separates host into a lower-cased hostname and port. The port
// is empty when host carries none.
func SplitHost(host string) (hostname, port string) {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, p, err := net.SplitHostPort(host); err == nil {
		return strings.Trim(h, "[]"), p
	}
	return strings.Trim(host, "[]"), ""
}

func isLocalhost(hostname string) bool {
	return hostname == "localhost"
}

func isIP(hostname string) bool {
	return net.ParseIP(hostname) != nil
}

func labels(hostname string) []string {
	return strings.Split(strings.Trim(hostname, "."), ".")
}

// ExtractSubdomain returns the hospital subdomain named by host, or "" when
// host names no hospital. mainDomain is the bare configured domain, such as
// "meg.www".
func ExtractSubdomain(host, mainDomain string) string {
	hostname, _ := SplitHost(host)
	mainDomain = strings.ToLower(mainDomain)

	if hostname == "" || isLocalhost(hostname) || isIP(hostname) {
		return ""
	}
	if hostname == mainDomain {
		return ""
	}

	parts := labels(hostname)
	mainParts := labels(mainDomain)
	if len(parts) == len(mainParts)+1 && strings.Join(parts[1:], ".") == mainDomain {
		return parts[0]
	}
	if len(parts) <= 2 {
		return ""
	}
	return parts[0]
}

// MainDomain collapses host to the domain that serves the non-hospital
// site. It is idempotent.
func MainDomain(host, mainDomain string) string {
	hostname, _ := SplitHost(host)
	mainDomain = strings.ToLower(mainDomain)

	switch {
	case isLocalhost(hostname), isIP(hostname):
		return hostname
	case hostname == mainDomain, strings.HasSuffix(hostname, "."+mainDomain):
		return mainDomain
	}

	parts := labels(hostname)
	if len(parts) <= 2 {
		return hostname
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

// MainDomainURL is the redirect target that leaves any hospital context.
// Only localhost keeps the request port. IPv6 literals are bracketed.
func MainDomainURL(host, mainDomain string, secure bool) string {
	_, port := SplitHost(host)
	target := MainDomain(host, mainDomain)
	if strings.Contains(target, ":") {
		target = "[" + target + "]"
	}

	switch {
	case isLocalhost(target):
		if port == "" {
			return "http://localhost"
		}
		return "http://localhost:" + port
	case target == strings.ToLower(mainDomain):
		return "http://" + target
	case secure:
		return "https://" + target
	}
	return "http://" + target
}

// overrideHostAllowed limits the development override to localhost and the
// configured main domain or its subdomains.
func overrideHostAllowed(host, mainDomain string) bool {
	hostname, _ := SplitHost(host)
	return isLocalhost(hostname) || InDomain(host, mainDomain)
}

// InDomain reports whether host is mainDomain or one of its subdomains.
func InDomain(host, mainDomain string) bool {
	hostname, _ := SplitHost(host)
	mainDomain = strings.ToLower(mainDomain)
	return hostname == mainDomain || strings.HasSuffix(hostname, "."+mainDomain)
}
