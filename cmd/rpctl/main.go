// Command rpctl is the CLI front end described in spec.md §6: discover
// and wakeup consoles on the LAN, or drive a full session with
// connect, each exiting 0 on success and 1 on argument or I/O error.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/duskline/rpcore/internal/logger"
)

var logLevel string

func main() {
	root := &cobra.Command{
		Use:           "rpctl",
		Short:         "discover and wake remote-play consoles on the LAN",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log.level", "info", "log level (debug, info, warn, error)")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logger.Init()
		if err := logger.SetLevel(logLevel); err != nil {
			fmt.Fprintf(os.Stderr, "warning: invalid log level %q, using default\n", logLevel)
		}
	}

	root.AddCommand(newDiscoverCmd(), newWakeupCmd(), newConnectCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
