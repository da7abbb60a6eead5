package main

import (
	"os"

	"github.com/aygp-dr/gdb-game-ai/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
