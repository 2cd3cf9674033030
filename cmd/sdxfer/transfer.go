package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-sdxfer/sdxfer"
)

var (
	cmdSend = &cobra.Command{
		Use:   "send <local-file> [remote-name]",
		Short: "Copy a local file to the device's SD card",
		Long: `Copies a local file to the SD card. The remote name defaults to the base
name of the local file.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runSend,
	}

	cmdReceive = &cobra.Command{
		Use:   "receive <remote-name> [local-file]",
		Short: "Copy a file from the device's SD card to this host",
		Long: `Copies a file from the SD card. The local file defaults to the remote name
in the current directory.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runReceive,
	}
)

var (
	sendCommand    string
	receiveCommand string
)

// errTransferAborted reports a transfer the device refused.
var errTransferAborted = errors.New("transfer aborted by device")

func init() {
	rootCmd.AddCommand(cmdSend)
	rootCmd.AddCommand(cmdReceive)
	cmdSend.Flags().StringVar(&sendCommand, "cmd", sdxfer.CmdSendFile.String(), "Device command that starts a host-to-device transfer")
	cmdReceive.Flags().StringVar(&receiveCommand, "cmd", sdxfer.CmdReceiveFile.String(), "Device command that starts a device-to-host transfer")
}

func runSend(cmd *cobra.Command, args []string) error {
	c, err := sdxfer.ParseCommand(sendCommand)
	if err != nil {
		return err
	}
	local, remote := args[0], filepath.Base(args[0])
	if len(args) == 2 {
		remote = args[1]
	}

	return withDevice(cmd.Context(), func(eng *sdxfer.Engine) error {
		res, err := eng.SendFile(cmd.Context(), c, local, remote)
		return report(cmd, res, err)
	})
}

func runReceive(cmd *cobra.Command, args []string) error {
	c, err := sdxfer.ParseCommand(receiveCommand)
	if err != nil {
		return err
	}
	remote, local := args[0], args[0]
	if len(args) == 2 {
		local = args[1]
	}

	return withDevice(cmd.Context(), func(eng *sdxfer.Engine) error {
		res, err := eng.ReceiveFile(cmd.Context(), c, remote, local)
		return report(cmd, res, err)
	})
}

// report prints the transfer outcome and turns an aborted transfer into an error.
func report(cmd *cobra.Command, res *sdxfer.Result, err error) error {
	if res != nil {
		fmt.Fprintln(cmd.OutOrStdout(), res.String())
		if res.Truncated() && res.OK() {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d of %d bytes missing\n", res.Expected-res.Transferred, res.Expected)
		}
	}
	if err != nil {
		return err
	}
	if res.Status == sdxfer.StatusAborted {
		return fmt.Errorf("%w at %s step", errTransferAborted, res.Step)
	}

	return nil
}
