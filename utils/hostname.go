package utils

import (
	"os"
	"strings"
)

// UnknownHostname is reported when the operating system cannot name the host.
const UnknownHostname = "unknown"

// LookupHostname asks the operating system for the host name on every call.
// Nothing is cached so a renamed host is reflected immediately.
func LookupHostname() string {
	return HostnameOrDefault(os.Hostname)
}

// HostnameOrDefault returns the name reported by lookup, or UnknownHostname
// when lookup fails or reports a blank name.
func HostnameOrDefault(lookup func() (string, error)) string {
	hostname, err := lookup()
	if err != nil {
		return UnknownHostname
	}
	hostname = strings.TrimSpace(hostname)
	if hostname == "" {
		return UnknownHostname
	}
	return hostname
}
