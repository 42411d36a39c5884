// Command cas runs the connection-accepting front end of a channel access
// server.
package main

import (
	"context"
	"dominicbreuker/cas/cmd/serve"
	"dominicbreuker/cas/cmd/version"
	"dominicbreuker/cas/pkg/log"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "cas",
		Usage: "Accept channel access client connections",
		Commands: []*cli.Command{
			serve.GetCommand(),
			version.GetCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.ErrorMsg("%s", err)
		os.Exit(1)
	}
}
