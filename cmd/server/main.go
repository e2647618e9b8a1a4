package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func main() {
	ctl := newApp()

	if err := ctl.Run(os.Args); err != nil {
		fmt.Fprintln(ctl.ErrWriter, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	ctl := cli.NewApp()
	ctl.Name = "fundme"
	ctl.Usage = "funding ledger service"
	ctl.ErrWriter = os.Stderr
	ctl.Commands = []cli.Command{
		newServeCommand(),
		newNetworksCommand(),
	}
	return ctl
}
