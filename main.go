package main

import (
	"os"

	"github.com/leftmike/sortkv/cmd"
)

func main() {
	if cmd.Execute() != nil {
		os.Exit(1)
	}
}
