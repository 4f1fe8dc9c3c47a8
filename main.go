package main

import (
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/regrun/regrun/cmd"
	"github.com/regrun/regrun/cmd/runcmd"
)

func main() {
	err := cmd.NewRoot().Execute()
	if err == nil {
		os.Exit(0)
	}

	var exitErr *runcmd.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}

	log.Error(err)
	os.Exit(2)
}
