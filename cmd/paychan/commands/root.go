package commands

import (
	"github.com/mosaicnetworks/paychan/src/config"
	"github.com/spf13/cobra"
)

var (
	_config = config.NewDefaultConfig()
)

//RootCmd is the root command for paychan
var RootCmd = &cobra.Command{
	Use:              "paychan",
	Short:            "offline bitcoin payment channels",
	TraverseChildren: true,
}
