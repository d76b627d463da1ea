package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tsabaia/headunit-revived-sub000/internal/discovery"
	"github.com/tsabaia/headunit-revived-sub000/internal/logging"
	"github.com/tsabaia/headunit-revived-sub000/internal/protocol"
	"github.com/tsabaia/headunit-revived-sub000/internal/server"
	"github.com/tsabaia/headunit-revived-sub000/internal/ui"
	"github.com/tsabaia/headunit-revived-sub000/internal/version"
)

// Listen command flags
var (
	listenHost      string
	listenPort      int
	listenWebSocket bool
	listenPath      string
	listenMDNS      bool
	listenOutDir    string
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Accept phones that dial the head unit",
	Long: `Listen for phone connections and run one session at a time. Phones that
connect while a session is active are turned away.

The listener is advertised over mDNS as a _headunit._tcp service unless
--mdns=false is given.`,
	Example: `  # Listen on the default port
  headunit listen

  # Accept WebSocket bridges on /aa and record media
  headunit listen --port 8080 --ws --path /aa --out ./capture`,
	RunE: runListen,
}

func init() {
	listenCmd.Flags().StringVar(&listenHost, "host", "", "Interface to listen on (empty = all interfaces)")
	listenCmd.Flags().IntVar(&listenPort, "port", discovery.DefaultPort, "Port to listen on")
	listenCmd.Flags().BoolVar(&listenWebSocket, "ws", false, "Accept WebSocket upgrades instead of raw TCP")
	listenCmd.Flags().StringVar(&listenPath, "path", "/", "WebSocket upgrade path")
	listenCmd.Flags().BoolVar(&listenMDNS, "mdns", true, "Advertise the listener over mDNS")
	listenCmd.Flags().StringVar(&listenOutDir, "out", "", "Directory for video.h264 and raw audio files (discarded if empty)")
}

func runListen(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	h, err := newHost(settings, listenOutDir)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	srv, err := server.New(&server.Config{
		Host:      listenHost,
		Port:      listenPort,
		WebSocket: listenWebSocket,
		Path:      listenPath,
	}, h.newSession)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	printer := ui.NewPrinter(cmd.OutOrStdout())
	printer.PrintHeader("Head unit listening", cmd.CommandPath(), map[string]string{
		"Address":   srv.Addr().String(),
		"WebSocket": strconv.FormatBool(listenWebSocket),
		"mDNS":      strconv.FormatBool(listenMDNS),
	})

	if listenMDNS {
		adv, err := advertise(settings.HeadUnit.Name, srv.Addr())
		if err != nil {
			// The listener still works without the advertisement.
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			defer adv.Shutdown()
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Start(ctx)
}

func advertise(name string, addr net.Addr) (*discovery.Advertiser, error) {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil, fmt.Errorf("cannot advertise non-TCP address %s", addr)
	}
	metadata := map[string]string{
		discovery.TxtVersion:  version.Version,
		discovery.TxtProtocol: fmt.Sprintf("%d.%d", protocol.VersionMajor, protocol.VersionMinor),
	}
	if listenWebSocket {
		metadata[discovery.TxtPath] = listenPath
	}
	return discovery.Advertise(name, tcp.Port, metadata)
}
