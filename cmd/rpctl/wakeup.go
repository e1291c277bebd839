package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/duskline/rpcore/internal/discovery"
)

func newWakeupCmd() *cobra.Command {
	var host, registKeyHex string
	var ps4 bool

	cmd := &cobra.Command{
		Use:   "wakeup",
		Short: "send a WAKEUP datagram to a console in standby",
		RunE: func(cmd *cobra.Command, args []string) error {
			if host == "" {
				return fmt.Errorf("--host is required")
			}
			if registKeyHex == "" {
				return fmt.Errorf("--registkey is required")
			}
			return runWakeup(host, registKeyHex, ps4)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "console address")
	cmd.Flags().StringVar(&registKeyHex, "registkey", "", "paired regist-key, hex encoded")
	cmd.Flags().BoolVar(&ps4, "ps4", false, "target the PS4 discovery port instead of PS5")
	cmd.Flags().Bool("ps5", false, "target the PS5 discovery port (default)")
	return cmd
}

func runWakeup(host, registKeyHex string, ps4 bool) error {
	svc, err := discovery.NewService()
	if err != nil {
		return fmt.Errorf("starting discovery service: %w", err)
	}
	defer svc.Stop()

	port := discovery.PortPS5
	if ps4 {
		port = discovery.PortPS4
	}

	if err := svc.Wakeup(host, port, registKeyHex); err != nil {
		return fmt.Errorf("sending wakeup to %s: %w", host, err)
	}
	fmt.Printf("wakeup sent to %s:%d\n", host, port)
	return nil
}
