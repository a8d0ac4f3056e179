package main

import (
	"fmt"
	"os"

	"github.com/mwantia/loadoutsync/cmd/loadoutsync/cli"
	"github.com/mwantia/loadoutsync/cmd/loadoutsync/cli/client"
	"github.com/mwantia/loadoutsync/cmd/loadoutsync/cli/server"
)

var (
	version = "0.0.1-dev"
	commit  = "main"
)

func main() {
	info := cli.VersionInfo{
		Version: version,
		Commit:  commit,
	}
	root := cli.NewRootCommand(info)

	root.AddCommand(cli.NewVersionCommand(info))

	root.AddCommand(server.NewAgentCommand())
	root.AddCommand(server.NewConfigCommand())

	root.AddCommand(client.NewBankTagCommand())
	root.AddCommand(client.NewLoadoutsCommand())

	if err := root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
