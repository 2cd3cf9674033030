package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-sdxfer/sdxfer"
)

var (
	cmdExec = &cobra.Command{
		Use:   "exec <command>",
		Short: "Send a one-character command and print the device reply",
		Long: `Sends a single command character (h for help, d to create a demo file, ...)
and prints everything the device replies until it goes quiet.`,
		Args: cobra.ExactArgs(1),
		RunE: runExec,
	}
)

func init() {
	rootCmd.AddCommand(cmdExec)
}

func runExec(cmd *cobra.Command, args []string) error {
	c, err := sdxfer.ParseCommand(args[0])
	if err != nil {
		return err
	}

	return withDevice(cmd.Context(), func(eng *sdxfer.Engine) error {
		reply, err := eng.Exec(cmd.Context(), c)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), reply)

		return nil
	})
}
