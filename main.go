package main

import (
	"os"

	"github.com/kenzatoreis/hiringbuddy/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
