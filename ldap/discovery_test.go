package ldap

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
)

func TestParseLDAPURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    *ServerInfo
		wantErr bool
	}{
		{
			name: "ldaps URL with port",
			url:  "ldaps://dc1.example.com:636",
			want: &ServerInfo{Host: "dc1.example.com", Port: 636, UseSSL: true},
		},
		{
			name: "ldap URL with port",
			url:  "ldap://dc1.example.com:389",
			want: &ServerInfo{Host: "dc1.example.com", Port: 389, UseSSL: false},
		},
		{
			name: "ldaps URL without port uses default",
			url:  "ldaps://dc1.example.com",
			want: &ServerInfo{Host: "dc1.example.com", Port: 636, UseSSL: true},
		},
		{
			name: "ldap URL without port uses default",
			url:  "ldap://dc1.example.com",
			want: &ServerInfo{Host: "dc1.example.com", Port: 389, UseSSL: false},
		},
		{
			name: "URL with trailing path",
			url:  "ldap://dc1.example.com:389/dc=example,dc=com",
			want: &ServerInfo{Host: "dc1.example.com", Port: 389, UseSSL: false},
		},
		{
			name:    "empty URL",
			url:     "",
			wantErr: true,
		},
		{
			name:    "unsupported scheme",
			url:     "http://dc1.example.com",
			wantErr: true,
		},
		{
			name:    "invalid port",
			url:     "ldap://dc1.example.com:notaport",
			wantErr: true,
		},
		{
			name:    "port out of range",
			url:     "ldap://dc1.example.com:70000",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLDAPURL(tt.url)

			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseLDAPURL(%q) expected error", tt.url)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseLDAPURL(%q) unexpected error: %v", tt.url, err)
			}

			if got.Host != tt.want.Host || got.Port != tt.want.Port || got.UseSSL != tt.want.UseSSL {
				t.Errorf("ParseLDAPURL(%q) = %+v, want %+v", tt.url, got, tt.want)
			}

			if got.Source != "config" {
				t.Errorf("Source = %q, want config", got.Source)
			}
		})
	}
}

func TestServerInfoToURL(t *testing.T) {
	tests := []struct {
		name   string
		server *ServerInfo
		want   string
	}{
		{
			name:   "plaintext server",
			server: &ServerInfo{Host: "dc1.example.com", Port: 389},
			want:   "ldap://dc1.example.com:389",
		},
		{
			name:   "secure server",
			server: &ServerInfo{Host: "dc1.example.com", Port: 636, UseSSL: true},
			want:   "ldaps://dc1.example.com:636",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ServerInfoToURL(tt.server); got != tt.want {
				t.Errorf("ServerInfoToURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateServerInfo(t *testing.T) {
	tests := []struct {
		name    string
		server  *ServerInfo
		wantErr bool
	}{
		{name: "valid", server: &ServerInfo{Host: "dc1", Port: 389}, wantErr: false},
		{name: "nil", server: nil, wantErr: true},
		{name: "empty host", server: &ServerInfo{Port: 389}, wantErr: true},
		{name: "zero port", server: &ServerInfo{Host: "dc1"}, wantErr: true},
		{name: "port too high", server: &ServerInfo{Host: "dc1", Port: 70000}, wantErr: true},
		{name: "negative priority", server: &ServerInfo{Host: "dc1", Port: 389, Priority: -1}, wantErr: true},
		{name: "negative weight", server: &ServerInfo{Host: "dc1", Port: 389, Weight: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateServerInfo(tt.server)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateServerInfo() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHostDiscovery_SortServersByPriority(t *testing.T) {
	discovery := NewHostDiscovery(hclog.NewNullLogger())

	servers := []*ServerInfo{
		{Host: "low-weight", Priority: 0, Weight: 10},
		{Host: "second-priority", Priority: 1, Weight: 100},
		{Host: "high-weight", Priority: 0, Weight: 100},
	}

	discovery.sortServersByPriority(servers)

	want := []string{"high-weight", "low-weight", "second-priority"}
	for i, host := range want {
		if servers[i].Host != host {
			t.Errorf("servers[%d].Host = %q, want %q", i, servers[i].Host, host)
		}
	}
}

func TestHostDiscovery_DiscoverServers(t *testing.T) {
	discovery := NewHostDiscovery(hclog.NewNullLogger())

	t.Run("empty domain", func(t *testing.T) {
		if _, err := discovery.DiscoverServers(context.Background(), ""); err == nil {
			t.Error("DiscoverServers(\"\") expected error")
		}
	})

	t.Run("unresolvable domain falls back to standard ports", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		servers, err := discovery.DiscoverServers(ctx, "nonexistent.invalid")
		if err != nil {
			t.Fatalf("DiscoverServers() unexpected error: %v", err)
		}

		if len(servers) != 2 {
			t.Fatalf("got %d fallback servers, want 2", len(servers))
		}

		if !servers[0].UseSSL || servers[0].Port != 636 {
			t.Errorf("first fallback = %+v, want secure server on 636", servers[0])
		}
		if servers[1].UseSSL || servers[1].Port != 389 {
			t.Errorf("second fallback = %+v, want plaintext server on 389", servers[1])
		}

		for i, server := range servers {
			if err := ValidateServerInfo(server); err != nil {
				t.Errorf("fallback server %d validation failed: %v", i, err)
			}
		}
	})
}
