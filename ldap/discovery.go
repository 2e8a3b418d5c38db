package ldap

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// ServerInfo describes one discovered or configured directory server.
type ServerInfo struct {
	Host     string
	Port     int
	UseSSL   bool // ldaps:// scheme
	Priority int
	Weight   int
	Source   string // "srv", "config", "fallback"
}

// HostDiscovery resolves directory servers for a domain via DNS SRV
// records.
type HostDiscovery struct {
	logger   hclog.Logger
	resolver *net.Resolver
}

// NewHostDiscovery creates a new discovery instance.
func NewHostDiscovery(logger hclog.Logger) *HostDiscovery {
	return &HostDiscovery{
		logger:   logger,
		resolver: net.DefaultResolver,
	}
}

// DiscoverServers discovers directory servers for a domain using SRV
// records, preferring the secure service:
//  1. _ldaps._tcp.<domain>
//  2. _ldap._tcp.<domain>
//
// When no SRV records exist, the bare domain on the default ports is
// returned as a fallback.
func (d *HostDiscovery) DiscoverServers(ctx context.Context, domain string) ([]*ServerInfo, error) {
	if domain == "" {
		return nil, fmt.Errorf("domain cannot be empty")
	}

	srvRecords := []struct {
		service string
		useSSL  bool
	}{
		{"_ldaps._tcp." + domain, true},
		{"_ldap._tcp." + domain, false},
	}

	var allServers []*ServerInfo
	for _, record := range srvRecords {
		servers, err := d.lookupSRV(ctx, record.service, record.useSSL)
		if err != nil {
			d.logger.Debug("SRV lookup failed, continuing to next service",
				"service", record.service, "error", err.Error())
			continue
		}
		allServers = append(allServers, servers...)

		// Secure servers found; don't mix in plaintext fallbacks.
		if record.useSSL && len(servers) > 0 {
			break
		}
	}

	if len(allServers) == 0 {
		d.logger.Debug("no SRV records found, using fallback servers", "domain", domain)
		return d.createFallbackServers(domain), nil
	}

	d.sortServersByPriority(allServers)

	d.logger.Debug("server discovery completed",
		"domain", domain, "server_count", len(allServers))
	return allServers, nil
}

// lookupSRV performs the SRV record lookup for a specific service.
func (d *HostDiscovery) lookupSRV(ctx context.Context, service string, useSSL bool) ([]*ServerInfo, error) {
	_, srvRecords, err := d.resolver.LookupSRV(ctx, "", "", service)
	if err != nil {
		return nil, fmt.Errorf("SRV lookup failed for %s: %w", service, err)
	}

	if len(srvRecords) == 0 {
		return nil, fmt.Errorf("no SRV records found for %s", service)
	}

	servers := make([]*ServerInfo, 0, len(srvRecords))
	for _, srv := range srvRecords {
		servers = append(servers, &ServerInfo{
			Host:     strings.TrimSuffix(srv.Target, "."),
			Port:     int(srv.Port),
			UseSSL:   useSSL,
			Priority: int(srv.Priority),
			Weight:   int(srv.Weight),
			Source:   "srv",
		})
	}

	return servers, nil
}

// createFallbackServers returns the bare domain on the standard ports.
func (d *HostDiscovery) createFallbackServers(domain string) []*ServerInfo {
	return []*ServerInfo{
		{
			Host:     domain,
			Port:     636,
			UseSSL:   true,
			Priority: 0,
			Weight:   100,
			Source:   "fallback",
		},
		{
			Host:     domain,
			Port:     389,
			UseSSL:   false,
			Priority: 1,
			Weight:   100,
			Source:   "fallback",
		},
	}
}

// sortServersByPriority sorts servers by priority and weight per RFC 2782.
func (d *HostDiscovery) sortServersByPriority(servers []*ServerInfo) {
	sort.SliceStable(servers, func(i, j int) bool {
		if servers[i].Priority != servers[j].Priority {
			return servers[i].Priority < servers[j].Priority
		}
		return servers[i].Weight > servers[j].Weight
	})
}

// ValidateServerInfo validates server information.
func ValidateServerInfo(server *ServerInfo) error {
	if server == nil {
		return fmt.Errorf("server info cannot be nil")
	}

	if server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	if server.Port <= 0 || server.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", server.Port)
	}

	if server.Priority < 0 {
		return fmt.Errorf("priority cannot be negative: %d", server.Priority)
	}

	if server.Weight < 0 {
		return fmt.Errorf("weight cannot be negative: %d", server.Weight)
	}

	return nil
}

// ServerInfoToURL converts a ServerInfo to a directory URL.
func ServerInfoToURL(server *ServerInfo) string {
	protocol := ProtocolPlain
	if server.UseSSL {
		protocol = ProtocolSSL
	}

	return fmt.Sprintf("%s%s:%d", protocol, server.Host, server.Port)
}

// ParseLDAPURL parses a directory URL into a ServerInfo.
func ParseLDAPURL(url string) (*ServerInfo, error) {
	if url == "" {
		return nil, fmt.Errorf("URL cannot be empty")
	}

	var useSSL bool
	switch {
	case strings.HasPrefix(url, ProtocolSSL):
		useSSL = true
		url = strings.TrimPrefix(url, ProtocolSSL)
	case strings.HasPrefix(url, ProtocolPlain):
		url = strings.TrimPrefix(url, ProtocolPlain)
	default:
		return nil, fmt.Errorf("unsupported scheme, must be ldap:// or ldaps://")
	}

	host := url
	if idx := strings.Index(host, "/"); idx >= 0 {
		host = host[:idx]
	}

	var port int
	if idx := strings.Index(host, ":"); idx >= 0 {
		portStr := host[idx+1:]
		host = host[:idx]

		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid port number: %s", portStr)
		}
	} else if useSSL {
		port = 636
	} else {
		port = 389
	}

	server := &ServerInfo{
		Host:     host,
		Port:     port,
		UseSSL:   useSSL,
		Priority: 0,
		Weight:   100,
		Source:   "config",
	}

	return server, ValidateServerInfo(server)
}
