package engine

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/jtoivane/auradsp/internal/status"
)

// RegisterSignalHandlers wires the process signals into the control
// flags: hangup requests a config reload, interrupt requests exit.
// Registered once per process; the flags outlive individual runs.
func RegisterSignalHandlers(shared *status.Shared) {
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGHUP, os.Interrupt)
	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGHUP:
				shared.Reload.Set()
			case os.Interrupt:
				shared.Exit.Set(status.ExitRequestExit)
			}
		}
	}()
}
