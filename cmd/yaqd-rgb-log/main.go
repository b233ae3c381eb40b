// Command yaqd-rgb-log reads the protocol captures that yaqd-rgb-qmini and
// yaqc-rgb write with --protocol-log.
//
//	yaqd-rgb-log view --layer device qmini.ylog
//	yaqd-rgb-log view --method set_exposure_time qmini.ylog
//	yaqd-rgb-log export --format csv -o qmini.csv qmini.ylog
//	yaqd-rgb-log filter --daemon qmini -o qmini-only.ylog all.ylog
//	yaqd-rgb-log stats qmini.ylog
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

