package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/duskline/rpcore/internal/bufpool"
	"github.com/duskline/rpcore/internal/session"
)

func newConnectCmd() *cobra.Command {
	var host, pin, registrationAddr string
	var ps5, dualsense bool
	var width, height, fps, bitrateKbps int

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "open a remote-play session against a console and stream until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if host == "" {
				return fmt.Errorf("--host is required")
			}
			return runConnect(host, pin, registrationAddr, ps5, dualsense, width, height, fps, bitrateKbps)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "console address")
	cmd.Flags().StringVar(&pin, "pin", "", "pairing PIN, required only for first-time registration")
	cmd.Flags().StringVar(&registrationAddr, "registration-addr", "", "console registration listener host:port, required only for first-time registration")
	cmd.Flags().BoolVar(&ps5, "ps5", false, "target a PS5 console")
	cmd.Flags().BoolVar(&dualsense, "dualsense", false, "enable DualSense feedback extensions")
	cmd.Flags().IntVar(&width, "width", 1280, "stream width")
	cmd.Flags().IntVar(&height, "height", 720, "stream height")
	cmd.Flags().IntVar(&fps, "fps", 60, "stream max fps")
	cmd.Flags().IntVar(&bitrateKbps, "bitrate", 10000, "stream bitrate in kbps")
	return cmd
}

func runConnect(host, pin, registrationAddr string, ps5, dualsense bool, width, height, fps, bitrateKbps int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	platform := session.PlatformPS4
	if ps5 {
		platform = session.PlatformPS5
	}

	deps := session.NewDefaultDependencies(bufpool.New(), nil, nil, func() []byte { return []byte(pin) }, registrationAddr)
	info := session.ConnectInfo{
		Platform:        platform,
		Host:            host,
		LoginPIN:        []byte(pin),
		EnableDualsense: dualsense,
		Profile: session.VideoProfile{
			Width:   width,
			Height:  height,
			MaxFPS:  fps,
			Bitrate: bitrateKbps,
		},
	}

	s := session.New(info, deps)
	s.Start(ctx)

	<-s.Done()
	reason := s.QuitReason()
	fmt.Printf("session %s ended: %s\n", s.ID(), reason)
	if reason != session.QuitStopped {
		return fmt.Errorf("session did not complete cleanly: %s", reason)
	}
	return nil
}
