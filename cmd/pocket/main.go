package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print styled error with token scrubbing
		outputError(os.Stderr, err)
		os.Exit(1)
	}
}
