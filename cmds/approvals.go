package cmds

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"
)

var ApprovalCmds = &cli.Command{
	Name:        "approval",
	Usage:       "settle requests waiting for user approval",
	Subcommands: []*cli.Command{listApprovalCmds, approveCmds, rejectCmds},
}

var listApprovalCmds = &cli.Command{
	Name:  "list",
	Usage: "list records waiting for approval",
	Flags: clientFlags,
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewGatewayClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		records, err := api.ListPending(cctx.Context)
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

var approveCmds = &cli.Command{
	Name:      "approve",
	ArgsUsage: "record-id",
	Flags:     clientFlags,
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewGatewayClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		return api.Resolve(cctx.Context, cctx.Args().Get(0), true)
	},
}

var rejectCmds = &cli.Command{
	Name:      "reject",
	ArgsUsage: "record-id",
	Flags:     clientFlags,
	Action: func(cctx *cli.Context) error {
		api, closer, err := NewGatewayClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		return api.Resolve(cctx.Context, cctx.Args().Get(0), false)
	},
}
