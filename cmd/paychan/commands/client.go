package commands

import (
	"fmt"
	"time"

	"github.com/mosaicnetworks/paychan/src/channel"
	"github.com/mosaicnetworks/paychan/src/identity"
	"github.com/mosaicnetworks/paychan/src/service"
	"github.com/spf13/cobra"
)

var (
	serverAddr    = "127.0.0.1:3000"
	clientTimeout = 10 * time.Second
	inSats        bool
)

func init() {
	RootCmd.PersistentFlags().StringVar(&serverAddr, "server", serverAddr, "HTTP API address of a running node")
	RootCmd.PersistentFlags().DurationVar(&clientTimeout, "client-timeout", clientTimeout, "HTTP API request timeout")
}

func newClient() *service.Client {
	return service.NewClient(serverAddr, clientTimeout)
}

// NewInfoCmd prints the identity and peers of a running node
func NewInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show node identity and connected peers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := newClient().Info()
			if err != nil {
				return err
			}

			fmt.Printf("Node ID:            %s\n", info.NodeID)
			fmt.Printf("Public key:         %s\n", info.PublicKey)
			fmt.Printf("Settlement address: %s\n", info.SettlementAddress)
			fmt.Printf("Overlay ID:         %s\n", info.OverlayID)
			if info.Moniker != "" {
				fmt.Printf("Moniker:            %s\n", info.Moniker)
			}
			fmt.Printf("State:              %s\n", info.State)
			fmt.Printf("Peers:              %d\n", len(info.Peers))
			for _, p := range info.Peers {
				nodeID := "?"
				if pub, err := p.PubKeyBytes(); err == nil {
					nodeID = identity.NodeID(pub)
				}
				fmt.Printf("  %s %s %s %s\n", p.OverlayID, p.NetAddr, nodeID, p.Moniker)
			}
			return nil
		},
	}
}

// NewChannelsCmd groups the channel list, open and close commands
func NewChannelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "List, open and close payment channels",
		RunE:  listChannels,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List channels",
		Args:  cobra.NoArgs,
		RunE:  listChannels,
	}

	open := &cobra.Command{
		Use:   "open [peer] [capacity]",
		Short: "Open a channel with a peer (hex public key or overlay id)",
		Args:  cobra.ExactArgs(2),
		RunE:  openChannel,
	}
	open.Flags().BoolVar(&inSats, "sats", false, "Read the capacity in satoshis instead of BTC")

	closeCmd := &cobra.Command{
		Use:   "close [channel]",
		Short: "Close a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().CloseChannel(args[0]); err != nil {
				return err
			}
			fmt.Printf("Channel %s closed\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, open, closeCmd)

	return cmd
}

// NewPayCmd sends an offline payment on a channel
func NewPayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pay [channel] [amount]",
		Short: "Send a payment on a channel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1], inSats)
			if err != nil {
				return err
			}

			p, err := newClient().SendPayment(args[0], amount)
			if err != nil {
				return err
			}

			fmt.Printf("Payment %s sent: %s BTC (sequence %d)\n", p.ID, FormatBTC(p.Amount), p.Sequence)
			return nil
		},
	}
	cmd.Flags().BoolVar(&inSats, "sats", false, "Read the amount in satoshis instead of BTC")
	return cmd
}

// NewPaymentsCmd lists the payment history of a channel
func NewPaymentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "payments [channel]",
		Short: "List the payments of a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payments, err := newClient().Payments(args[0])
			if err != nil {
				return err
			}

			for _, p := range payments {
				printPayment(p)
			}
			return nil
		},
	}
}

func listChannels(cmd *cobra.Command, args []string) error {
	channels, err := newClient().Channels()
	if err != nil {
		return err
	}

	for _, c := range channels {
		printChannel(c)
	}
	return nil
}

func openChannel(cmd *cobra.Command, args []string) error {
	capacity, err := parseAmount(args[1], inSats)
	if err != nil {
		return err
	}

	c, err := newClient().OpenChannel(args[0], capacity)
	if err != nil {
		return err
	}

	printChannel(c)
	return nil
}

func printChannel(c *channel.Channel) {
	status := "open"
	if !c.IsOpen {
		status = "closed"
	}
	fmt.Printf("%s %s peer=%s capacity=%s mine=%s theirs=%s seq=%d joint=%s\n",
		c.ID,
		status,
		c.PeerID,
		FormatBTC(c.Capacity),
		FormatBTC(c.MyBalance),
		FormatBTC(c.PeerBalance),
		c.Sequence,
		c.JointAddress)
}

func printPayment(p *channel.Payment) {
	fmt.Printf("%d %s %s %s BTC %s\n",
		p.Sequence,
		p.ID,
		p.Direction,
		FormatBTC(p.Amount),
		p.Timestamp.Format(time.RFC3339))
}
