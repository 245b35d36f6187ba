package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/rugmarket/rugmarket/service/wallet"
)

func walletCommands() *cli.Command {
	return &cli.Command{
		Name:  "wallet",
		Usage: "Wallet session commands",
		Subcommands: []*cli.Command{
			connectWalletCommand(),
			disconnectWalletCommand(),
			walletSessionCommand(),
		},
	}
}

func connectWalletCommand() *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Connect a wallet session on the server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "wallet",
				Value: wallet.WalletMetaMask,
				Usage: "Wallet id (metamask, walletconnect, coinbase)",
			},
			jqFlag(),
		},
		Action: func(c *cli.Context) error {
			sess, err := serviceClient(c).ConnectWallet(c.Context, c.String("wallet"))
			if err != nil {
				return fmt.Errorf("failed to connect wallet: %w", err)
			}

			return printOutput(os.Stdout, sess, c.String("jq"))
		},
	}
}

func disconnectWalletCommand() *cli.Command {
	return &cli.Command{
		Name:  "disconnect",
		Usage: "Disconnect the wallet session on the server",
		Flags: []cli.Flag{jqFlag()},
		Action: func(c *cli.Context) error {
			sess, err := serviceClient(c).DisconnectWallet(c.Context)
			if err != nil {
				return fmt.Errorf("failed to disconnect wallet: %w", err)
			}

			return printOutput(os.Stdout, sess, c.String("jq"))
		},
	}
}

func walletSessionCommand() *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Show the current wallet session",
		Flags: []cli.Flag{jqFlag()},
		Action: func(c *cli.Context) error {
			sess, err := serviceClient(c).GetSession(c.Context)
			if err != nil {
				return fmt.Errorf("failed to get wallet session: %w", err)
			}

			return printOutput(os.Stdout, sess, c.String("jq"))
		},
	}
}
