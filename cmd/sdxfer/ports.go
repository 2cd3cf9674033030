package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-sdxfer/transport"
)

var (
	cmdPorts = &cobra.Command{
		Use:         "ports",
		Short:       "List the serial ports on this host",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoDevice: "true"},
		RunE:        runPorts,
	}
)

func init() {
	rootCmd.AddCommand(cmdPorts)
}

func runPorts(cmd *cobra.Command, _ []string) error {
	ports, err := transport.ListSerialPorts()
	if err != nil {
		return err
	}

	if len(ports) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no serial ports found")
		return nil
	}

	table := newTable(cmd.OutOrStdout(), "Port")
	for _, p := range ports {
		table.Append([]string{p})
	}
	table.Render()

	return nil
}
