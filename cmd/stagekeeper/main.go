package main

import (
	"os"

	"github.com/solatis/stagekeeper/cmd/stagekeeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
