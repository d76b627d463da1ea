package discovery

import (
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func TestScanner_parseServiceEntry(t *testing.T) {
	scanner := NewScanner()

	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantIP   string
		wantPort int
	}{
		{
			name: "head unit with IPv4",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Headunit Revived"},
				HostName:      "carpc.local.",
				Port:          5277,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.4.16")},
				Text:          []string{"version=v0.4.0", "protocol=1.2"},
			},
			wantIP:   "192.168.4.16",
			wantPort: 5277,
		},
		{
			name: "custom port",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Bench"},
				HostName:      "bench.local.",
				Port:          5288,
				AddrIPv4:      []net.IP{net.ParseIP("10.0.0.5")},
			},
			wantIP:   "10.0.0.5",
			wantPort: 5288,
		},
		{
			name: "no port specified (should default to 5277)",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Bench"},
				HostName:      "bench.local.",
				AddrIPv4:      []net.IP{net.ParseIP("172.16.0.1")},
			},
			wantIP:   "172.16.0.1",
			wantPort: DefaultPort,
		},
		{
			name: "empty instance",
			entry: &zeroconf.ServiceEntry{
				HostName: "carpc.local.",
				Port:     5277,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.1")},
			},
			wantNil: true,
		},
		{
			name: "no IP address",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Headunit Revived"},
				HostName:      "carpc.local.",
				Port:          5277,
			},
			wantNil: true,
		},
		{
			name: "IPv6 only",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Headunit Revived"},
				HostName:      "carpc.local.",
				Port:          5277,
				AddrIPv6:      []net.IP{net.ParseIP("fe80::1")},
			},
			wantIP:   "fe80::1",
			wantPort: 5277,
		},
		{
			name: "both IPv4 and IPv6 (should prefer IPv4)",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Headunit Revived"},
				HostName:      "carpc.local.",
				Port:          5277,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.1.50")},
				AddrIPv6:      []net.IP{net.ParseIP("fe80::2")},
			},
			wantIP:   "192.168.1.50",
			wantPort: 5277,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peer := scanner.parseServiceEntry(tt.entry)

			if tt.wantNil {
				if peer != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", peer)
				}
				return
			}

			if peer == nil {
				t.Fatal("parseServiceEntry() = nil, want non-nil peer")
			}
			if peer.Instance != tt.entry.Instance {
				t.Errorf("peer.Instance = %v, want %v", peer.Instance, tt.entry.Instance)
			}
			if peer.IP != tt.wantIP {
				t.Errorf("peer.IP = %v, want %v", peer.IP, tt.wantIP)
			}
			if peer.Port != tt.wantPort {
				t.Errorf("peer.Port = %v, want %v", peer.Port, tt.wantPort)
			}
			if peer.Hostname != tt.entry.HostName {
				t.Errorf("peer.Hostname = %v, want %v", peer.Hostname, tt.entry.HostName)
			}
			if time.Since(peer.DiscoveredAt) > time.Second {
				t.Errorf("peer.DiscoveredAt is not recent: %v", peer.DiscoveredAt)
			}
		})
	}
}

func TestScanner_parseServiceEntry_Nil(t *testing.T) {
	if peer := NewScanner().parseServiceEntry(nil); peer != nil {
		t.Errorf("parseServiceEntry(nil) = %v, want nil", peer)
	}
}

func TestDecodeTXT(t *testing.T) {
	got := DecodeTXT([]string{"version=v0.4.0", "path=/aa", "flag", "=orphan", "expr=a=b"})
	want := map[string]string{
		"version": "v0.4.0",
		"path":    "/aa",
		"flag":    "", // Key without value
		"expr":    "a=b",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DecodeTXT() = %v, want %v", got, want)
	}
}

func TestEncodeTXT(t *testing.T) {
	got := EncodeTXT(map[string]string{
		TxtVersion:  "v0.4.0",
		TxtProtocol: "1.2",
		TxtPath:     "/",
	})
	want := []string{"path=/", "protocol=1.2", "version=v0.4.0"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("EncodeTXT() = %v, want %v", got, want)
	}

	if got := DecodeTXT(EncodeTXT(map[string]string{"a": "1"})); got["a"] != "1" {
		t.Errorf("round trip lost value: %v", got)
	}
}

func TestAdvertiseValidates(t *testing.T) {
	if _, err := Advertise("", DefaultPort, nil); err == nil {
		t.Error("Advertise() with empty instance succeeded, want error")
	}
	if _, err := Advertise("Headunit", 0, nil); err == nil {
		t.Error("Advertise() with port 0 succeeded, want error")
	}
	if _, err := Advertise("Headunit", 70000, nil); err == nil {
		t.Error("Advertise() with port 70000 succeeded, want error")
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()

	if scanner == nil {
		t.Fatal("NewScanner() = nil, want scanner")
	}

	if scanner.Timeout != DefaultScanTimeout {
		t.Errorf("scanner.Timeout = %v, want %v", scanner.Timeout, DefaultScanTimeout)
	}
}

// Live advertise/browse round trips need multicast and are left to manual
// runs against a real network.
