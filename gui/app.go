//go:build gui

package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// App is the desktop window: bars, the current word, a status line and one
// button per mode.
type App struct {
	fyneApp  fyne.App
	window   fyne.Window
	bars     *BarsWidget
	word     *canvas.Text
	status   *canvas.Text
	nBars    int
	modes    []string
	onReady  func()
	onSelect func(int)
}

// NewApp builds the window model. onSelect receives the index into modes of
// the pressed button; it runs on the UI goroutine and must not block.
func NewApp(nBars int, modes []string, onReady func(), onSelect func(int)) *App {
	return &App{nBars: nBars, modes: modes, onReady: onReady, onSelect: onSelect}
}

func Run(a *App) error {
	a.fyneApp = app.NewWithID("io.spiritbox.gui")
	a.fyneApp.Settings().SetTheme(&darkTheme{})

	a.window = a.fyneApp.NewWindow("spiritbox")
	a.bars = NewBarsWidget(a.nBars)

	a.word = canvas.NewText("", color.RGBA{230, 230, 210, 255})
	a.word.TextSize = 42
	a.word.TextStyle = fyne.TextStyle{Bold: true, Monospace: true}
	a.word.Alignment = fyne.TextAlignCenter

	a.status = canvas.NewText("", color.RGBA{120, 200, 120, 255})
	a.status.TextSize = 14
	a.status.TextStyle = fyne.TextStyle{Monospace: true}
	a.status.Alignment = fyne.TextAlignCenter

	buttons := make([]fyne.CanvasObject, len(a.modes))
	for i, name := range a.modes {
		buttons[i] = widget.NewButton(name, func() {
			if a.onSelect != nil {
				a.onSelect(i)
			}
		})
	}

	a.window.SetContent(container.NewBorder(
		a.status,
		container.NewGridWithColumns(len(buttons), buttons...),
		nil, nil,
		container.NewVBox(container.NewCenter(a.bars), a.word),
	))
	a.window.SetOnClosed(func() { a.bars.Stop() })
	a.window.Show()

	go a.onReady()

	a.fyneApp.Run()
	return nil
}

func (a *App) Quit() {
	if a.fyneApp != nil {
		fyne.Do(a.fyneApp.Quit)
	}
}

// SetLevel is called from the render loop; the widget guards its own state.
func (a *App) SetLevel(level float64) {
	if a.bars != nil {
		a.bars.SetLevel(level)
	}
}

func (a *App) ShowWord(word string) {
	fyne.Do(func() {
		if a.word == nil {
			return
		}
		a.word.Text = word
		a.word.Refresh()
	})
}

func (a *App) SetStatus(text string) {
	fyne.Do(func() {
		if a.status == nil {
			return
		}
		a.status.Text = text
		a.status.Refresh()
	})
}
