package main

import (
	"os"

	"github.com/refjudge/refjudge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
