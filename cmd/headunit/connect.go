package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tsabaia/headunit-revived-sub000/internal/session"
	"github.com/tsabaia/headunit-revived-sub000/internal/transport"
	"github.com/tsabaia/headunit-revived-sub000/internal/ui"
)

// Connect command flags, shared with console
var (
	connectAddr string
	connectWS   string
	outDir      string
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Dial a phone and run a session",
	Long: `Dial a phone head unit server and run one projection session until the
phone ends it or the process is interrupted.

Use --addr for a raw TCP connection or --ws for a WebSocket bridge that
carries one frame per message.`,
	Example: `  # Dial a phone on the local network
  headunit connect --addr 192.168.1.20:5277

  # Dial through a WebSocket bridge and record media
  headunit connect --ws ws://localhost:8080/aa --out ./capture`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd, false)
	},
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Dial a phone and drive it from an interactive console",
	Long: `Like connect, but shows the session state and counters in an
interactive console. Keys typed into the console are sent to the phone.`,
	Example: `  headunit console --addr 192.168.1.20:5277`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd, true)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{connectCmd, consoleCmd} {
		cmd.Flags().StringVar(&connectAddr, "addr", "", "Phone address (host:port) to dial over TCP")
		cmd.Flags().StringVar(&connectWS, "ws", "", "WebSocket URL to dial instead of TCP")
		cmd.Flags().StringVar(&outDir, "out", "", "Directory for video.h264 and raw audio files (discarded if empty)")
		cmd.MarkFlagsMutuallyExclusive("addr", "ws")
		cmd.MarkFlagsOneRequired("addr", "ws")
	}
}

// newPort picks the transport from the connect flags.
func newPort(addr, wsURL string) (transport.Port, error) {
	switch {
	case addr != "" && wsURL != "":
		return nil, errors.New("--addr and --ws are mutually exclusive")
	case addr != "":
		return transport.NewTCPPort(addr), nil
	case wsURL != "":
		return transport.NewWebSocketPort(wsURL), nil
	default:
		return nil, errors.New("one of --addr or --ws is required")
	}
}

func runSession(cmd *cobra.Command, console bool) error {
	if console && !ui.IsTerminal() {
		return errors.New("console needs an interactive terminal, use connect instead")
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	port, err := newPort(connectAddr, connectWS)
	if err != nil {
		return err
	}
	h, err := newHost(settings, outDir)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	sess, err := h.newSession(port)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer := ui.NewPrinter(cmd.OutOrStdout())
	target := port.RemoteAddr()
	if !console {
		printer.PrintHeader("Head unit", cmd.CommandPath(), map[string]string{
			"Phone":  target,
			"Video":  fmt.Sprintf("%s@%d", settings.Video.Resolution, settings.Video.FPS),
			"Engine": settings.Security.Engine,
		})
	}

	if err := sess.Start(ctx); err != nil {
		printer.PrintError("Connect failed", err, connectTroubleshooting(err))
		return err
	}

	var reason error
	if console {
		reason = ui.RunConsole(sess, "Head unit console", cmd.CommandPath(), map[string]string{
			"Phone": target,
		})
		_ = sess.Stop()
	} else {
		reason = waitSession(ctx, sess)
	}

	if reason != nil && !errors.Is(reason, session.ErrByeBye) {
		printer.PrintError("Session ended", reason, connectTroubleshooting(reason))
		return nil
	}
	stats := sess.Stats()
	printer.PrintSuccess("Session ended", map[string]string{
		"Phone":        target,
		"Video frames": fmt.Sprintf("%d", stats.VideoFrames),
		"Audio chunks": fmt.Sprintf("%d", stats.AudioChunks),
		"Frames in":    fmt.Sprintf("%d", stats.Inbound.Frames),
		"Frames out":   fmt.Sprintf("%d", stats.FramesOut),
	})
	return nil
}

// waitSession blocks until the session ends or ctx is cancelled, and
// returns the end reason.
func waitSession(ctx context.Context, sess *session.Session) error {
	select {
	case <-sess.Done():
	case <-ctx.Done():
		_ = sess.Stop()
	}
	return sess.Err()
}

func connectTroubleshooting(err error) []string {
	kind, isFault := session.KindOf(err)
	switch {
	case errors.Is(err, session.ErrPeerClosed):
		return []string{"The phone closed the connection", "Check that projection is still enabled on the phone"}
	case isFault && kind == session.FaultTransport:
		return []string{
			"Check that the phone is reachable at the given address",
			"Make sure the head unit server is running on the phone",
		}
	case isFault && kind == session.FaultCrypto:
		return []string{
			"The TLS handshake failed",
			"Try the other TLS engine with --engine",
			"Regenerate the identity with 'headunit cert generate'",
		}
	default:
		return nil
	}
}
