// ABOUTME: mDNS advertisement and browsing for SDR consoles
// ABOUTME: Publishes the websocket, control and I/Q ports as TXT records
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"

	"github.com/hashicorp/mdns"
)

const (
	ServiceType = "_sdrconsole._tcp"

	// Seconds per browse query
	browseTimeout = 3
)

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int // websocket feed
	Path        string
	ControlPort int
	IQPort      int
	Version     string
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan *ServerInfo
}

// ServerInfo describes a discovered console
type ServerInfo struct {
	Name        string
	Host        string
	Port        int
	Path        string
	ControlPort int
	IQPort      int
	Version     string
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

// TXTRecords returns the TXT strings advertised for config
func TXTRecords(config Config) []string {
	path := config.Path
	if path == "" {
		path = "/ws"
	}
	txt := []string{"path=" + path}
	if config.ControlPort > 0 {
		txt = append(txt, fmt.Sprintf("control=%d", config.ControlPort))
	}
	if config.IQPort > 0 {
		txt = append(txt, fmt.Sprintf("iq=%d", config.IQPort))
	}
	if config.Version != "" {
		txt = append(txt, "version="+config.Version)
	}
	return txt
}

// Advertise advertises this console via mDNS until Stop
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		TXTRecords(m.config),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for consoles until Stop
func (m *Manager) Browse() error {
	go m.browseLoop()
	return nil
}

// browseLoop continuously browses for consoles
func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)

		go func() {
			for entry := range entries {
				server := fromEntry(entry)
				log.Printf("Discovered console: %s at %s:%d", server.Name, server.Host, server.Port)

				select {
				case m.servers <- server:
				case <-m.ctx.Done():
					return
				}
			}
		}()

		params := &mdns.QueryParam{
			Service: ServiceType,
			Domain:  "local",
			Timeout: browseTimeout,
			Entries: entries,
		}

		if err := mdns.Query(params); err != nil {
			log.Printf("mDNS query failed: %v", err)
		}
		close(entries)
	}
}

func fromEntry(entry *mdns.ServiceEntry) *ServerInfo {
	info := &ServerInfo{
		Name: entry.Name,
		Port: entry.Port,
	}
	if entry.AddrV4 != nil {
		info.Host = entry.AddrV4.String()
	} else if entry.AddrV6 != nil {
		info.Host = entry.AddrV6.String()
	}
	applyTXT(info, entry.InfoFields)
	return info
}

// applyTXT fills info from key=value TXT strings, ignoring unknown keys
func applyTXT(info *ServerInfo, fields []string) {
	for _, field := range fields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "path":
			info.Path = value
		case "control":
			info.ControlPort, _ = strconv.Atoi(value)
		case "iq":
			info.IQPort, _ = strconv.Atoi(value)
		case "version":
			info.Version = value
		}
	}
}

// Servers returns the channel of discovered consoles
func (m *Manager) Servers() <-chan *ServerInfo {
	return m.servers
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

// getLocalIPs returns local IP addresses
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
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
