package main

import (
	"os"

	"coinwatch/internal/logs"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logs.Logger.Error(err)
		os.Exit(1)
	}
}
