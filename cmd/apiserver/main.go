// API server entry point for invoicegate.
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
	withConsumer := flag.Bool("with-consumer", true, "also consume invoice events from Kafka")
	flag.Parse()

	path := *configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}

	if err := cli.RunServe(path, *withConsumer); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
