package commands

import (
	"fmt"
	"path/filepath"

	"github.com/mosaicnetworks/paychan/src/config"
	"github.com/mosaicnetworks/paychan/src/paychan"
	"github.com/spf13/cobra"
)

var (
	privKeyFile           string
	defaultPrivateKeyFile = filepath.Join(_config.DataDir, config.DefaultKeyfile)
)

// NewKeygenCmd produces a KeygenCmd which create a key pair
func NewKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create new key pair",
		RunE:  keygen,
	}

	AddKeygenFlags(cmd)

	return cmd
}

//AddKeygenFlags adds flags to the keygen command
func AddKeygenFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&privKeyFile, "priv", defaultPrivateKeyFile, "File where the private key will be written")
}

func keygen(cmd *cobra.Command, args []string) error {
	id, err := paychan.Keygen(privKeyFile)
	if err != nil {
		return err
	}

	fmt.Printf("Your private key has been saved to: %s\n", privKeyFile)
	fmt.Printf("Node ID:            %s\n", id.NodeID())
	fmt.Printf("Public key:         %s\n", id.PublicKeyHex())
	fmt.Printf("Settlement address: %s\n", id.SettlementAddress())

	return nil
}
