package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Dunky-Z/FitSync/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a returned error to §6's exit code contract. cobra
// itself can't distinguish these, so the driver commands return plain
// errors and this is the one place that inspects them.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return cli.ExitSuccess
	case errors.Is(err, cli.ErrUsage):
		return cli.ExitUsageError
	case errors.Is(err, cli.ErrRateLimitedStop):
		return cli.ExitRateLimited
	default:
		return cli.ExitOperationalFail
	}
}
