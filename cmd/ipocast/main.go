package main

import (
	"os"

	"github.com/wonny/ipocast/cmd/ipocast/commands"
)

// main is the entry point for the ipocast CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/ipocast [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
