// Command barqctl runs operator tasks against a barq deployment.
package main

import (
	"os"

	"github.com/barq-desk/barq/cmd/barqctl/cli"
)

var version = "dev"

func main() {
	if err := cli.NewRootCmd(cli.DefaultDeps(), version).Execute(); err != nil {
		os.Exit(1)
	}
}
