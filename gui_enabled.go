//go:build gui

package main

import (
	"os"
	"runtime"

	"spiritbox/gui"
	"spiritbox/mode"
)

var guiApp *gui.App

// initGUI takes the main thread for fyne and runs the box from the window's
// ready callback.
func initGUI() {
	runtime.LockOSThread()

	names := make([]string, len(mode.All))
	for i, m := range mode.All {
		names[i] = m.Banner()
	}

	guiSelect = make(chan mode.Mode, 1)
	guiApp = gui.NewApp(guiBars(os.Args[1:]), names, run, func(i int) {
		if i >= 0 && i < len(mode.All) {
			offer(guiSelect, mode.All[i])
		}
	})
	guiView = guiApp
	guiQuit = guiApp.Quit

	if err := gui.Run(guiApp); err != nil {
		panic(err)
	}
}
