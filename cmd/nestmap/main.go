package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/roach88/nestmap/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("nestmap:"), err)
		os.Exit(cli.GetExitCode(err))
	}
}
