// Package cmd wires the cobra root command: flag/env binding, logging
// setup, and dispatch into cmd/runcmd.
package cmd

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/regrun/regrun/cmd/runcmd"
	"github.com/regrun/regrun/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const Name = "regrun"

func NewRoot() *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:   Name + " <root-dir>",
		Short: "Discover, run, and assert regression test tasks under a directory tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runE(v, cmd, args)
		},
	}

	config.SetFlags(cmd.Flags())

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		cobra.CheckErr(fmt.Errorf("failed to bind flags to viper: %w", err))
	}

	return cmd
}

func runE(v *viper.Viper, cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	log.SetReportTimestamp(false)

	flags := config.FromViper(v)
	if flags.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}

	return runcmd.Run(cmd.Context(), flags, args[0])
}
