package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Peer is a head unit endpoint found on the local network.
type Peer struct {
	// Instance is the advertised service instance name (e.g., "Headunit Revived")
	Instance string

	// Hostname is the mDNS hostname (e.g., "carpc.local.")
	Hostname string

	// IP is the address to dial, IPv4 when one was advertised
	IP string

	// Port is the listening port (typically 5277)
	Port int

	// Metadata holds the TXT record entries, see TxtVersion and TxtProtocol
	Metadata map[string]string

	// DiscoveredAt is when the peer was resolved
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the peer
func (p *Peer) String() string {
	return fmt.Sprintf("%s (%s) at %s", p.Instance, p.Hostname, p.Addr())
}

// Addr returns the host:port to dial.
func (p *Peer) Addr() string {
	return net.JoinHostPort(p.IP, strconv.Itoa(p.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (p *Peer) GetMetadata(key string) string {
	if p.Metadata == nil {
		return ""
	}
	return p.Metadata[key]
}
