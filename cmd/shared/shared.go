// Package shared provides the CLI flag definitions and helpers used by
// the cas command line.
package shared

import (
	"strings"

	"github.com/urfave/cli/v3"
)

const categoryCommon = "common"

// VerboseFlag is the name of the flag to enable verbose logging.
const VerboseFlag = "verbose"

// DebugFlag is the name of the flag to set the debug trace level.
const DebugFlag = "debug"

// PollFlag is the name of the flag to set the accept poll interval in milliseconds.
const PollFlag = "poll"

// MaxClientsFlag is the name of the flag limiting concurrently served clients.
const MaxClientsFlag = "max-clients"

// TimeoutFlag is the name of the flag to specify the shutdown grace period in milliseconds.
const TimeoutFlag = "timeout"

// MuxFlag is the name of the flag enabling multiplexed client sessions.
const MuxFlag = "mux"

// GetBaseDescription returns the description of the address argument.
func GetBaseDescription() string {
	return strings.Join([]string{
		"Specify the listening address like this: 127.0.0.1:5064",
		"You can omit the host or use * to bind to all interfaces.",
		"Port 0 binds an ephemeral port. If the requested port is in use, an ephemeral port is used instead.",
	}, "\n")
}

// GetArgsUsage returns the arguments usage string for CLI commands.
func GetArgsUsage() string {
	return "host:port"
}

// GetCommonFlags returns the flags shared by all serving commands.
func GetCommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:     VerboseFlag,
			Aliases:  []string{"v"},
			Usage:    "Verbose logging",
			Category: categoryCommon,
			Value:    false,
			Required: false,
		},
		&cli.IntFlag{
			Name:     DebugFlag,
			Aliases:  []string{"d"},
			Usage:    "Debug trace level, 3 and above also dumps acceptor state",
			Category: categoryCommon,
			Value:    0,
			Required: false,
		},
		&cli.IntFlag{
			Name:     TimeoutFlag,
			Aliases:  []string{"t"},
			Usage:    "Shutdown grace period in milliseconds",
			Category: categoryCommon,
			Value:    5000,
			Required: false,
		},
	}
}

const categoryServe = "serve"

// GetServeFlags returns the flags specific to serve mode.
func GetServeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:     PollFlag,
			Aliases:  []string{"p"},
			Usage:    "Interval in milliseconds between checks for pending connections",
			Category: categoryServe,
			Value:    100,
			Required: false,
		},
		&cli.IntFlag{
			Name:     MaxClientsFlag,
			Aliases:  []string{"c"},
			Usage:    "Maximum number of clients served at once",
			Category: categoryServe,
			Value:    64,
			Required: false,
		},
		&cli.BoolFlag{
			Name:     MuxFlag,
			Aliases:  []string{"m"},
			Usage:    "Serve each client as a multiplexed session with many streams",
			Category: categoryServe,
			Value:    false,
			Required: false,
		},
	}
}
