// ABOUTME: mDNS service discovery for Talkwire relays
// ABOUTME: Servers advertise; clients browse and report discovered relays
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"

	"github.com/hashicorp/mdns"
)

const (
	serverService = "_talkwire-server._tcp"
	clientService = "_talkwire._tcp"

	// Seconds per mDNS query round; the browse loop repeats until stopped.
	browseTimeoutSec = 3
)

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	ServerMode  bool // Advertise as a relay server instead of a client
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan *ServerInfo
}

// ServerInfo describes a discovered relay server
type ServerInfo struct {
	Name string
	Host string
	Port int
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		servers: make(chan *ServerInfo, 10),
	}
}

// Advertise announces this process via mDNS until Stop
func (m *Manager) Advertise() error {
	ips, err := advertiseAddrs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	serviceType := clientService
	if m.config.ServerMode {
		serviceType = serverService
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		serviceType,
		"",
		"",
		m.config.Port,
		ips,
		[]string{"path=/talkwire"},
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, serviceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for relay servers in the background. Each distinct relay is
// reported once on the Servers channel; repeated query rounds that turn up
// the same relay are silent.
func (m *Manager) Browse() error {
	go m.browseLoop()
	return nil
}

func (m *Manager) browseLoop() {
	seen := make(map[string]bool)

	for m.ctx.Err() == nil {
		entries := make(chan *mdns.ServiceEntry, 10)
		collected := make(chan struct{})

		go func() {
			defer close(collected)
			for entry := range entries {
				m.reportEntry(entry, seen)
			}
		}()

		mdns.Query(&mdns.QueryParam{
			Service: serverService,
			Domain:  "local",
			Timeout: browseTimeoutSec,
			Entries: entries,
		})
		close(entries)
		<-collected
	}
}

// reportEntry forwards one query hit, skipping address-less records and
// relays already reported.
func (m *Manager) reportEntry(entry *mdns.ServiceEntry, seen map[string]bool) {
	if entry.AddrV4 == nil {
		return
	}

	server := &ServerInfo{
		Name: entry.Name,
		Host: entry.AddrV4.String(),
		Port: entry.Port,
	}

	key := fmt.Sprintf("%s:%d", server.Host, server.Port)
	if seen[key] {
		return
	}
	seen[key] = true

	log.Printf("Discovered relay: %s at %s", server.Name, key)

	select {
	case m.servers <- server:
	case <-m.ctx.Done():
	}
}

// Servers returns the channel of discovered relay servers
func (m *Manager) Servers() <-chan *ServerInfo {
	return m.servers
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

// advertiseAddrs collects the IPv4 addresses worth publishing: up,
// non-loopback interfaces only.
func advertiseAddrs() ([]net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var ips []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok || ipnet.IP.IsLoopback() {
				continue
			}
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				ips = append(ips, ip4)
			}
		}
	}
	return ips, nil
}
