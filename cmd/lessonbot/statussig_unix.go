//go:build !windows

package main

import (
	"os"
	"syscall"
)

// statusSignals trigger a status report in a running relay.
var statusSignals = []os.Signal{syscall.SIGUSR1}
