package addr

import (
	"errors"
	"fmt"
	"net"
)

var (
	defaultPrivateBlocks []*net.IPNet

	ErrorInvalidAddr = errors.New("ip addr is invalid")
	ErrorIPNotFound  = errors.New("no IP address found, and explicit IP not provided")
)

func init() {
	for _, b := range []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "100.64.0.0/10", "fd00::/8"} {
		if _, block, err := net.ParseCIDR(b); err == nil {
			defaultPrivateBlocks = append(defaultPrivateBlocks, block)
		}
	}
}

func isPrivateIP(ip net.IP) bool {
	for _, priv := range defaultPrivateBlocks {
		if priv.Contains(ip) {
			return true
		}
	}

	return false
}

// Advertise turns a listen address into one other hosts can dial. An empty
// or unspecified host is replaced by an interface address, private ones
// first; the port is kept.
func Advertise(listen string) (string, error) {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "", fmt.Errorf("failed to split %q %w", listen, err)
	}

	host, err = Extract(host)
	if err != nil {
		return "", err
	}

	return net.JoinHostPort(host, port), nil
}

// Extract returns addr unless it is empty or unspecified, in which case it
// picks an interface address.
func Extract(addr string) (string, error) {
	if len(addr) > 0 && (addr != "0.0.0.0" && addr != "[::]" && addr != "::") {
		return addr, nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("failed to get interfaces, err: %w", err)
	}

	addrs := []net.Addr{}
	loAddrs := []net.Addr{}

	for _, iface := range ifaces {
		ifaceAddrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		if iface.Flags&net.FlagLoopback != 0 {
			loAddrs = append(loAddrs, ifaceAddrs...)

			continue
		}

		addrs = append(addrs, ifaceAddrs...)
	}

	addrs = append(addrs, loAddrs...)

	var private, public net.IP

	for _, rawAddr := range addrs {
		var ip net.IP
		switch a := rawAddr.(type) {
		case *net.IPAddr:
			ip = a.IP
		case *net.IPNet:
			ip = a.IP
		default:
			continue
		}

		if isPrivateIP(ip) {
			private = ip

			break
		}

		if public == nil {
			public = ip
		}
	}

	switch {
	case private != nil:
		return private.String(), nil
	case public != nil:
		return public.String(), nil
	}

	return "", ErrorIPNotFound
}
