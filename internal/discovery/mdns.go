package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/tsabaia/headunit-revived-sub000/internal/logging"
	"go.uber.org/zap"
)

const (
	// ServiceType is the mDNS service type of a listening head unit
	ServiceType = "_headunit._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for peer discovery
	DefaultScanTimeout = 10 * time.Second

	// DefaultPort is the head unit listening port
	DefaultPort = 5277
)

// TXT record keys published by an Advertiser.
const (
	TxtVersion  = "version"
	TxtProtocol = "protocol"
	TxtPath     = "path"
)

// Advertiser publishes a listening head unit over mDNS.
type Advertiser struct {
	server *zeroconf.Server
	once   sync.Once
}

// Advertise registers instance on port with the given TXT metadata. The
// record stays published until Shutdown.
func Advertise(instance string, port int, metadata map[string]string) (*Advertiser, error) {
	if instance == "" {
		return nil, errors.New("discovery: instance name is required")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("discovery: invalid port %d", port)
	}

	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, EncodeTXT(metadata), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	logging.Info("Advertising head unit over mDNS",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)
	return &Advertiser{server: server}, nil
}

// Shutdown withdraws the record. It is safe to call more than once.
func (a *Advertiser) Shutdown() {
	a.once.Do(func() {
		a.server.Shutdown()
		logging.Debug("mDNS advertisement withdrawn")
	})
}

// EncodeTXT renders metadata as sorted key=value TXT entries.
func EncodeTXT(metadata map[string]string) []string {
	txt := make([]string, 0, len(metadata))
	for key, value := range metadata {
		txt = append(txt, key+"="+value)
	}
	sort.Strings(txt)
	return txt
}

// Scanner handles mDNS peer discovery
type Scanner struct {
	// Timeout is the maximum time to wait for peer discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan collects every head unit that answers within the timeout.
func (s *Scanner) Scan(ctx context.Context) ([]*Peer, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var (
		mu    sync.Mutex
		peers = make([]*Peer, 0)
	)
	err := s.browse(ctx, func(peer *Peer) bool {
		mu.Lock()
		peers = append(peers, peer)
		mu.Unlock()
		return true
	})
	if err != nil {
		return nil, err
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]*Peer(nil), peers...), nil
}

// First waits for the first head unit to answer.
func (s *Scanner) First(ctx context.Context) (*Peer, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	found := make(chan *Peer, 1)
	err := s.browse(ctx, func(peer *Peer) bool {
		select {
		case found <- peer:
		default:
		}
		return false
	})
	if err != nil {
		return nil, err
	}

	select {
	case peer := <-found:
		return peer, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("no head unit answered within %s", s.Timeout)
	}
}

// browse feeds parsed peers to fn until ctx ends or fn returns false.
func (s *Scanner) browse(ctx context.Context, fn func(*Peer) bool) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-entries:
				if !ok {
					return
				}
				peer := s.parseServiceEntry(entry)
				if peer == nil {
					continue
				}
				logging.Debug("Discovered head unit", zap.String("peer", peer.String()))
				if !fn(peer) {
					return
				}
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	return nil
}

// parseServiceEntry converts a zeroconf service entry to a Peer.
// Returns nil if the entry has no usable address.
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Peer {
	if entry == nil || entry.Instance == "" {
		return nil
	}

	// Prefer IPv4
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	return &Peer{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     DecodeTXT(entry.Text),
		DiscoveredAt: time.Now(),
	}
}

// DecodeTXT parses key=value TXT entries. A key without '=' maps to "".
func DecodeTXT(txt []string) map[string]string {
	metadata := make(map[string]string, len(txt))
	for _, entry := range txt {
		key, value, _ := strings.Cut(entry, "=")
		if key == "" {
			continue
		}
		metadata[key] = value
	}
	return metadata
}
