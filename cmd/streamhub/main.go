// Command streamhub is the operator CLI of the streams and events core.
package main

import (
	"os"

	"github.com/roach88/streamhub/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
