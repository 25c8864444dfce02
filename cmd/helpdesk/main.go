// Command helpdesk is the entry point for the school support desk
// question-answering service. It provides a CLI interface (via Cobra) and an
// HTTP server exposing the REST API.
package main

import (
	"fmt"
	"os"

	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/cmd/helpdesk/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
