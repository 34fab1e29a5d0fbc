// ABOUTME: Tests for mDNS discovery
// ABOUTME: Covers manager lifecycle, TXT records and answer parsing
package discovery

import (
	"net"
	"reflect"
	"testing"

	"github.com/hashicorp/mdns"
)

func TestNewManager(t *testing.T) {
	mgr := NewManager(Config{ServiceName: "Test Server", Port: 8927})
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
	if mgr.Servers() == nil {
		t.Fatal("expected servers channel")
	}

	mgr.Stop()
	mgr.Stop()

	if mgr.ctx.Err() == nil {
		t.Error("context should be cancelled after Stop")
	}
}

func TestTXTRecords(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   []string
	}{
		{"defaults", Config{}, []string{"path=/blockq"}},
		{"with format", Config{Path: "/q", Format: "pcm 48000Hz/24bit/2ch"}, []string{"path=/q", "format=pcm 48000Hz/24bit/2ch"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := txtRecords(tt.config); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("txtRecords = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestServerFromEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry *mdns.ServiceEntry
		want  *ServerInfo
	}{
		{
			name: "full entry",
			entry: &mdns.ServiceEntry{
				Name:       "Living Room._blockq._tcp.local.",
				AddrV4:     net.IPv4(192, 168, 1, 20),
				Port:       8927,
				InfoFields: []string{"path=/stream", "format=opus 48000Hz/16bit/2ch", "junk"},
			},
			want: &ServerInfo{Name: "Living Room", Host: "192.168.1.20", Port: 8927, Path: "/stream", Format: "opus 48000Hz/16bit/2ch"},
		},
		{
			name:  "default path",
			entry: &mdns.ServiceEntry{Name: "Den", AddrV4: net.IPv4(10, 0, 0, 2), Port: 9000},
			want:  &ServerInfo{Name: "Den", Host: "10.0.0.2", Port: 9000, Path: "/blockq"},
		},
		{
			name:  "no ipv4 address",
			entry: &mdns.ServiceEntry{Name: "v6 only", Port: 9000},
		},
		{
			name: "nil entry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := serverFromEntry(tt.entry)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("serverFromEntry = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestServerInfoAddr(t *testing.T) {
	s := &ServerInfo{Host: "192.168.1.20", Port: 8927}
	if got := s.Addr(); got != "192.168.1.20:8927" {
		t.Errorf("Addr = %s", got)
	}
}
