// Command authcore runs the authentication and session security service.
package main

import (
	"fmt"
	"os"

	"github.com/nebulium/authcore/cmd/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
