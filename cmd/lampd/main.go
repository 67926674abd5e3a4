package main

import (
	"fmt"
	"os"

	"github.com/lamp-blog/lamp/cmd/lampd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
