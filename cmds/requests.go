package cmds

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/keepkey-community/wallet-gateway/store"
)

var clientFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "listen",
		Usage: "gateway api address",
		Value: "/ip4/127.0.0.1/tcp/45132",
	},
	&cli.StringFlag{
		Name: "token",
	},
}

var RequestCmds = &cli.Command{
	Name:        "request",
	Usage:       "inspect routed wallet requests",
	Subcommands: []*cli.Command{listRequestCmds, discardRequestCmds, chainsCmds},
}

var listRequestCmds = &cli.Command{
	Name:      "list",
	Usage:     "list records in one queue",
	ArgsUsage: "[pending|awaiting-approval|completed]",
	Flags:     clientFlags,
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewGatewayClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		queue := cctx.Args().Get(0)
		if queue == "" {
			queue = store.QueuePending
		}
		var records []*store.Event
		switch queue {
		case store.QueuePending:
			records, err = api.ListPending(cctx.Context)
		case store.QueueAwaitingApproval:
			records, err = api.ListAwaitingApproval(cctx.Context)
		case store.QueueCompleted:
			records, err = api.ListCompleted(cctx.Context)
		default:
			return errors.Errorf("unknown queue %s", queue)
		}
		if err != nil {
			return err
		}
		recordBytes, err := json.MarshalIndent(records, " ", "\t")
		if err != nil {
			return err
		}
		fmt.Println(string(recordBytes))
		return nil
	},
}

var discardRequestCmds = &cli.Command{
	Name:      "discard",
	Usage:     "drop a pending record",
	ArgsUsage: "record-id",
	Flags:     clientFlags,
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewGatewayClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		return api.DiscardPending(cctx.Context, cctx.Args().Get(0))
	},
}

var chainsCmds = &cli.Command{
	Name:  "chains",
	Usage: "list registered chain handlers",
	Flags: clientFlags,
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewGatewayClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		chains, err := api.Chains(cctx.Context)
		if err != nil {
			return err
		}
		for _, chain := range chains {
			fmt.Println(chain)
		}
		return nil
	},
}
