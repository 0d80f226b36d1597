//go:build !gui

package main

func initGUI() {
	panic("spiritbox: built without GUI support (rebuild with -tags gui)")
}
