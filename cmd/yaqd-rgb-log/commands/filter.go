package commands

import (
	"fmt"

	"github.com/yaq-go/yaqd-rgb/pkg/log"
)

// RunFilter appends the selected events of the log at path to the log at
// output and returns how many it copied.
func RunFilter(path string, sel Selection, output string) (int, error) {
	if output == "" {
		return 0, fmt.Errorf("output file required")
	}
	if _, err := sel.Filter(); err != nil {
		return 0, err
	}

	out, err := log.NewFileLogger(output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output log: %w", err)
	}
	defer out.Close()

	n := 0
	err = each(path, sel, func(e log.Event) error {
		out.Log(e)
		n++
		return nil
	})
	return n, err
}
