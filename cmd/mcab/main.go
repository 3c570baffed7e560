package main

import (
	"errors"
	"os"

	internal "github.com/ZanzyTHEbar/mca-batch/mcab"

	"github.com/urfave/cli/v2"
)

func main() {
	err := newApp().Run(os.Args)
	if err == nil {
		return
	}
	logger := internal.GetLogger()
	logger.Error().Err(err).Msg("mcab failed")

	var exit cli.ExitCoder
	if errors.As(err, &exit) {
		os.Exit(exit.ExitCode())
	}
	os.Exit(1)
}
