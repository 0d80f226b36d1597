//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	// Set up crash logging early, before any CGO code runs
	initCrashLog()

	// Check for --gui early (before the CLI parses flags in run())
	if wantGUI() {
		initGUI() // takes main thread, calls run() in goroutine
		return
	}
	mainthread.Init(run)
}
