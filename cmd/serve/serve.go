// Package serve implements the serve command, which binds the listening
// endpoint and serves accepted clients until interrupted.
package serve

import (
	"context"
	"dominicbreuker/cas/cmd/shared"
	"dominicbreuker/cas/pkg/config"
	"dominicbreuker/cas/pkg/log"
	"dominicbreuker/cas/pkg/server"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
)

// GetCommand returns the CLI command for serve mode.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:        "serve",
		Usage:       "Listen for clients and serve them",
		Description: shared.GetBaseDescription(),
		ArgsUsage:   shared.GetArgsUsage(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}

			if errs := config.Validate(cfg); len(errs) > 0 {
				log.ErrorMsg("Argument validation errors:")
				for _, err := range errs {
					log.ErrorMsg(" - %s", err)
				}
				return fmt.Errorf("exiting")
			}

			cfg.Logger = log.NewLogger(cfg.LogLevel())

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			shared.SetupSignalHandling(cancel, shutdownGrace(cfg), cfg.Logger)

			return run(ctx, cfg)
		},
		Flags: getFlags(),
	}
}

func configFrom(cmd *cli.Command) (*config.Server, error) {
	args := cmd.Args()
	if args.Len() != 1 {
		return nil, fmt.Errorf("must provide exactly one argument, got %d (%s)", args.Len(), strings.Join(args.Slice(), ", "))
	}

	host, port, err := shared.ParseAddr(args.Get(0))
	if err != nil {
		return nil, fmt.Errorf("parsing address: %s", err)
	}

	return &config.Server{
		Host:         host,
		Port:         port,
		Verbose:      cmd.Bool(shared.VerboseFlag),
		DebugLevel:   int(cmd.Int(shared.DebugFlag)),
		PollInterval: time.Duration(cmd.Int(shared.PollFlag)) * time.Millisecond,
		MaxClients:   int(cmd.Int(shared.MaxClientsFlag)),
		Timeout:      time.Duration(cmd.Int(shared.TimeoutFlag)) * time.Millisecond,
		Mux:          cmd.Bool(shared.MuxFlag),
	}, nil
}

func run(ctx context.Context, cfg *config.Server) error {
	if cfg.Logger == nil {
		cfg.Logger = log.NewLogger(cfg.LogLevel())
	}

	s, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("server.New(): %s", err)
	}

	return s.Serve(ctx)
}

// shutdownGrace leaves the server its client timeout plus a margin to
// close the endpoint before the process is forced down.
func shutdownGrace(cfg *config.Server) time.Duration {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = server.DefaultShutdownTimeout
	}
	return timeout + time.Second
}

func getFlags() []cli.Flag {
	flags := []cli.Flag{}

	flags = append(flags, shared.GetCommonFlags()...)
	flags = append(flags, shared.GetServeFlags()...)

	return flags
}
