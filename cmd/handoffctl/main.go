package main

import (
	"os"

	handoffcmd "github.com/handoff-sh/handoff/pkg/handoffctl/cmd"
)

func main() {
	root := handoffcmd.NewRootCommand(handoffcmd.DefaultConfig())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
