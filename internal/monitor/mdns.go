// ABOUTME: mDNS advertisement of the monitor endpoint
// ABOUTME: Lets tools on the LAN find a running retroaudio instance
package monitor

import (
	"fmt"
	"log"
	"net"

	"github.com/hashicorp/mdns"
)

// ServiceType is the advertised mDNS service
const ServiceType = "_retroaudio._tcp"

type advertiser struct {
	name   string
	port   int
	server *mdns.Server
}

func newAdvertiser(name string, port int) *advertiser {
	return &advertiser{name: name, port: port}
}

// Advertise starts answering mDNS queries for the monitor
func (a *advertiser) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		a.name,
		ServiceType,
		"",
		"",
		a.port,
		ips,
		[]string{"path=" + Path},
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}
	a.server = server

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", a.name, a.port, ServiceType)
	return nil
}

// Stop withdraws the advertisement
func (a *advertiser) Stop() {
	if a.server == nil {
		return
	}
	if err := a.server.Shutdown(); err != nil {
		log.Printf("mDNS shutdown error: %v", err)
	}
	a.server = nil
}

// getLocalIPs returns the IPv4 addresses of the up, non-loopback interfaces
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil && !ipnet.IP.IsLoopback() {
				ips = append(ips, ipnet.IP)
			}
		}
	}

	return ips, nil
}
