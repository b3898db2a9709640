package main

import (
	"fmt"
	"os"
)

// Version is injected at build time.
var Version = "dev"

func main() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
