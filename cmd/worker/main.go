// Background worker entry point: consumes invoice events and runs the
// decision pipeline without serving the REST API.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/apclear/invoicegate/internal/interfaces/cli"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	flag.Parse()

	path := *configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}

	if err := cli.RunWorker(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
