//go:build windows

package main

import "os"

// statusSignals is empty: Windows has no user-defined signals.
var statusSignals []os.Signal
