package main

import (
	"github.com/spf13/cobra"

	"github.com/arloliu/go-sdxfer/sdxfer"
)

var (
	cmdList = &cobra.Command{
		Use:   "list",
		Short: "List the files on the device's SD card",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
)

var listExtensions []string

func init() {
	rootCmd.AddCommand(cmdList)
	cmdList.Flags().StringSliceVarP(&listExtensions, "ext", "e", nil, "Only show files with these extensions, e.g. --ext wav,txt")
}

func runList(cmd *cobra.Command, _ []string) error {
	return withDevice(cmd.Context(), func(eng *sdxfer.Engine) error {
		names, err := eng.ListFiles(cmd.Context())
		if err != nil {
			return err
		}
		if len(listExtensions) > 0 {
			names = sdxfer.FilterByExtension(names, listExtensions...)
		}

		table := newTable(cmd.OutOrStdout(), "File")
		for _, name := range names {
			table.Append([]string{name})
		}
		table.Render()

		return nil
	})
}
