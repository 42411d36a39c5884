package shared

import (
	"context"
	"dominicbreuker/cas/pkg/log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"
)

// SetupSignalHandling cancels the serving context on the first termination
// signal. The server then has grace to close its endpoint and let clients
// finish; a second signal, or the grace period running out, exits at once.
func SetupSignalHandling(cancel context.CancelFunc, grace time.Duration, logger *log.Logger) {
	sigCh := make(chan os.Signal, 2)

	sigs := []os.Signal{os.Interrupt}
	if runtime.GOOS != "windows" {
		sigs = append(sigs, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
		// a client hanging up mid-write must not kill the server
		signal.Ignore(syscall.SIGPIPE)
	}
	signal.Notify(sigCh, sigs...)

	go handleSignals(sigCh, cancel, grace, logger, os.Exit)
}

func handleSignals(sigCh <-chan os.Signal, cancel context.CancelFunc, grace time.Duration, logger *log.Logger, exit func(int)) {
	s := <-sigCh
	logger.InfoMsg("Received %s, shutting down", s)
	cancel()

	select {
	case s = <-sigCh:
		logger.WarnMsg("Received %s again, exiting without waiting for clients", s)
		// POSIX exit code 128+sig where possible
		if ss, ok := s.(syscall.Signal); ok {
			exit(128 + int(ss))
			return
		}
		exit(1)
	case <-time.After(grace):
		logger.WarnMsg("Clients still connected after %v, exiting", grace)
		exit(0)
	}
}
