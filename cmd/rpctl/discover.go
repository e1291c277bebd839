package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/duskline/rpcore/internal/discovery"
	"github.com/duskline/rpcore/internal/logger"
)

func newDiscoverCmd() *cobra.Command {
	var host string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "broadcast an SRCH probe and print responding hosts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(host, timeout)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "probe a single host directly instead of broadcasting")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "how long to listen for responses")
	return cmd
}

func runDiscover(host string, timeout time.Duration) error {
	log := logger.Logger().With("component", "cli", "verb", "discover")

	svc, err := discovery.NewService()
	if err != nil {
		return fmt.Errorf("starting discovery service: %w", err)
	}
	defer svc.Stop()

	var found atomic.Int64
	svc.OnHost = func(addr string, h *discovery.TrackedHost, dropped bool) {
		if dropped {
			return
		}
		found.Add(1)
		fmt.Printf("%s\tid=%s\tname=%q\thost-id=%s\tstate=%s\n", addr, h.ID, h.Host.HostName, h.Host.HostID, h.Host.State)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go svc.Run()

	if host != "" {
		if err := svc.SendTo(host, discovery.PortPS5); err != nil {
			return fmt.Errorf("sending SRCH to %s: %w", host, err)
		}
		if err := svc.SendTo(host, discovery.PortPS4); err != nil {
			log.Warn("SRCH to PS4 port failed", "error", err)
		}
	} else {
		if err := svc.Broadcast(discovery.PortPS5); err != nil {
			return fmt.Errorf("broadcasting SRCH: %w", err)
		}
		if err := svc.Broadcast(discovery.PortPS4); err != nil {
			log.Warn("broadcast to PS4 port failed", "error", err)
		}
	}

	select {
	case <-time.After(timeout):
	case <-ctx.Done():
	}

	if found.Load() == 0 {
		fmt.Println("no hosts responded")
	}
	return nil
}
