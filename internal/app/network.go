package app

import (
	"net"
)

// networkInterface is the part of net.Interface used to pick an address
type networkInterface interface {
	Flags() net.Flags
	Addrs() ([]net.Addr, error)
}

type systemInterface struct {
	iface net.Interface
}

func (s systemInterface) Flags() net.Flags { return s.iface.Flags }

func (s systemInterface) Addrs() ([]net.Addr, error) { return s.iface.Addrs() }

// networkProvider lists interfaces; tests substitute a fake
type networkProvider interface {
	Interfaces() ([]networkInterface, error)
}

type systemNetwork struct{}

func (systemNetwork) Interfaces() ([]networkInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	out := make([]networkInterface, len(ifaces))
	for i, iface := range ifaces {
		out[i] = systemInterface{iface: iface}
	}
	return out, nil
}

// lanIP picks the address the survey QR code should point at: the first
// private IPv4 address on an up, non-loopback interface, else any such
// IPv4 address, else localhost.
func lanIP(provider networkProvider) string {
	ifaces, err := provider.Interfaces()
	if err != nil {
		return "localhost"
	}

	var fallback net.IP
	for _, iface := range ifaces {
		flags := iface.Flags()
		if flags&net.FlagUp == 0 || flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.To4() == nil || ip.IsLoopback() {
				continue
			}
			if ip.IsPrivate() {
				return ip.String()
			}
			if fallback == nil {
				fallback = ip
			}
		}
	}

	if fallback != nil {
		return fallback.String()
	}
	return "localhost"
}
