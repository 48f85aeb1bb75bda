package middleware

import (
	"net"
	"net/http"
	"strings"
)

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

var countryHeaders = []string{"CF-IPCountry", "X-Country-Code", "X-IP-Country"}

// ClientIP returns the best-effort client IP address for the request. The
// first valid X-Forwarded-For entry wins over RemoteAddr.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && net.ParseIP(host) != nil {
		return host
	}
	return r.RemoteAddr
}

// ResolveCountry returns an upper-case ISO country code for the request, or ""
// when neither the proxy headers nor the lookup know it. "XX" and "T1" are
// Cloudflare placeholders and are ignored.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	for _, key := range countryHeaders {
		val := strings.ToUpper(strings.TrimSpace(r.Header.Get(key)))
		if len(val) == 2 && val != "XX" && val != "T1" {
			return val
		}
	}
	if lookup == nil {
		return ""
	}
	ip := ClientIP(r)
	if ip == "" {
		return ""
	}
	country, err := lookup(ip)
	if err != nil {
		return ""
	}
	return strings.ToUpper(country)
}
