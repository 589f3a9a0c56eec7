package main

import (
	"os"

	appLog "smartcal/internal/log"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		appLog.Error("command failed", err)
		os.Exit(1)
	}
}
