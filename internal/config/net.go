package config

import "net"

func splitHostPort(address string) (string, string, error) {
	return net.SplitHostPort(address)
}

func isIPv6Literal(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && ip.To4() == nil
}
