// Command yaqc-rgb is a client for rgb-qmini yaq daemons.
//
// It calls messages, reads and writes properties, triggers measurements,
// lists daemons advertised over mDNS and offers an interactive shell.
//
// Examples:
//
//	# Identify the daemon on port 39876
//	yaqc-rgb -p 39876 id
//
//	# Set the exposure time to 250 ms and read it back
//	yaqc-rgb -p 39876 set exposure_time 0.25
//	yaqc-rgb -p 39876 get exposure_time
//
//	# Take one spectrum
//	yaqc-rgb --name qmini measure
//
//	# Interactive session
//	yaqc-rgb -p 39876 shell
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}
