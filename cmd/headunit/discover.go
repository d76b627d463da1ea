package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tsabaia/headunit-revived-sub000/internal/discovery"
	"github.com/tsabaia/headunit-revived-sub000/internal/ui"
)

var discoverTimeout time.Duration

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List head units advertised on the local network",
	RunE: func(cmd *cobra.Command, args []string) error {
		scanner := discovery.NewScanner()
		scanner.Timeout = discoverTimeout

		peers, err := scanner.Scan(cmd.Context())
		if err != nil {
			return err
		}

		printer := ui.NewPrinter(cmd.OutOrStdout())
		if len(peers) == 0 {
			printer.PrintError("No head units found", nil, []string{
				"Start one with 'headunit listen'",
				"Make sure multicast (UDP 5353) is allowed on this network",
			})
			return nil
		}
		details := make(map[string]string, len(peers))
		for _, peer := range peers {
			details[peer.Instance] = fmt.Sprintf("%s (version %s)", peer.Addr(), peer.GetMetadata(discovery.TxtVersion))
		}
		printer.PrintSuccess(fmt.Sprintf("Found %d head unit(s)", len(peers)), details)
		return nil
	},
}

func init() {
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", 3*time.Second, "How long to wait for answers")
}
