package config

import (
	"fmt"
	"net"
)

// Interface is the subset of a network interface used to pick a local address
type Interface struct {
	Name     string
	Up       bool
	Loopback bool
	Addrs    []net.Addr
}

// LocalIPv4 returns the first IPv4 address of an up, non-loopback interface,
// falling back to a loopback IPv4 address.
func LocalIPv4() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("failed to list network interfaces: %w", err)
	}

	candidates := make([]Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		candidates = append(candidates, Interface{
			Name:     iface.Name,
			Up:       iface.Flags&net.FlagUp != 0,
			Loopback: iface.Flags&net.FlagLoopback != 0,
			Addrs:    addrs,
		})
	}

	return FirstIPv4(candidates)
}

// FirstIPv4 picks an IPv4 address from the given interfaces
func FirstIPv4(ifaces []Interface) (string, error) {
	var loopback string
	for _, iface := range ifaces {
		if !iface.Up {
			continue
		}
		for _, addr := range iface.Addrs {
			ip := addrIP(addr)
			if ip == nil {
				continue
			}
			ip4 := ip.To4()
			if ip4 == nil {
				continue
			}
			if iface.Loopback || ip4.IsLoopback() {
				if loopback == "" {
					loopback = ip4.String()
				}
				continue
			}
			return ip4.String(), nil
		}
	}

	if loopback != "" {
		return loopback, nil
	}
	return "", ErrNoNetworkAdapter
}

func addrIP(addr net.Addr) net.IP {
	switch v := addr.(type) {
	case *net.IPNet:
		return v.IP
	case *net.IPAddr:
		return v.IP
	default:
		return nil
	}
}
