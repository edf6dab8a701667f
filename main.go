// ABOUTME: Entry point for the propdesk CLI
// ABOUTME: Terminal client for the property management service

package main

import (
	"fmt"
	"os"

	"github.com/markalston/propdesk/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
