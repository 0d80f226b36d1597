// Package clipboard copies the current word to the system clipboard.
package clipboard

import cb "github.com/atotto/clipboard"

// Available reports whether a clipboard backend was found (xclip, xsel,
// wl-copy on linux; always true elsewhere).
func Available() bool {
	return !cb.Unsupported
}

func Read() (string, error) {
	return cb.ReadAll()
}

func Copy(text string) error {
	return cb.WriteAll(text)
}
