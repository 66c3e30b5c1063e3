package main

import (
	"os"

	cmd "github.com/mosaicnetworks/paychan/cmd/paychan/commands"
)

func main() {
	rootCmd := cmd.RootCmd

	rootCmd.AddCommand(
		cmd.VersionCmd,
		cmd.NewKeygenCmd(),
		cmd.NewRunCmd(),
		cmd.NewInfoCmd(),
		cmd.NewChannelsCmd(),
		cmd.NewPayCmd(),
		cmd.NewPaymentsCmd(),
	)

	//Do not print usage when error occurs
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
