//go:build gui

package gui

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"spiritbox/mode"
)

const (
	segWidth  = 14
	segHeight = 40
	segGap    = 4
	centerGap = 24
)

var (
	colorOff  = color.RGBA{30, 40, 30, 255}
	colorLow  = color.RGBA{60, 220, 90, 255}
	colorMid  = color.RGBA{240, 200, 40, 255}
	colorHigh = color.RGBA{235, 50, 40, 255}
)

// BarsWidget draws n segments either side of the centre, lit outwards from
// the middle as the level rises.
type BarsWidget struct {
	widget.BaseWidget
	n      int
	mu     sync.Mutex
	target float64
	shown  float64
	stopCh chan struct{}
}

func NewBarsWidget(n int) *BarsWidget {
	b := &BarsWidget{n: n, stopCh: make(chan struct{})}
	b.ExtendBaseWidget(b)
	go b.animate()
	return b
}

func (b *BarsWidget) SetLevel(l float64) {
	b.mu.Lock()
	b.target = l
	b.mu.Unlock()
}

func (b *BarsWidget) Stop() {
	select {
	case <-b.stopCh:
	default:
		close(b.stopCh)
	}
}

func (b *BarsWidget) animate() {
	ticker := time.NewTicker(33 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.mu.Lock()
			// fast attack, slow release
			if b.target > b.shown {
				b.shown = b.shown*0.2 + b.target*0.8
			} else {
				b.shown = b.shown*0.7 + b.target*0.3
			}
			b.mu.Unlock()
			fyne.Do(func() {
				b.Refresh()
			})
		}
	}
}

func (b *BarsWidget) MinSize() fyne.Size {
	w := 2*b.n*(segWidth+segGap) + centerGap
	return fyne.NewSize(float32(w), segHeight)
}

func (b *BarsWidget) CreateRenderer() fyne.WidgetRenderer {
	r := &barsRenderer{bars: b}
	r.left = make([]*canvas.Rectangle, b.n)
	r.right = make([]*canvas.Rectangle, b.n)
	for i := 0; i < b.n; i++ {
		r.left[i] = canvas.NewRectangle(colorOff)
		r.right[i] = canvas.NewRectangle(colorOff)
	}
	return r
}

type barsRenderer struct {
	bars  *BarsWidget
	left  []*canvas.Rectangle
	right []*canvas.Rectangle
}

func (r *barsRenderer) Layout(size fyne.Size) {
	n := r.bars.n
	step := (size.Width - centerGap) / float32(2*n)
	w := step - segGap
	mid := size.Width / 2
	for i := 0; i < n; i++ {
		// segment i sits i steps out from the centre on each side
		r.left[i].Move(fyne.NewPos(mid-centerGap/2-float32(i+1)*step, 0))
		r.right[i].Move(fyne.NewPos(mid+centerGap/2+float32(i)*step+segGap, 0))
		r.left[i].Resize(fyne.NewSize(w, size.Height))
		r.right[i].Resize(fyne.NewSize(w, size.Height))
	}
}

func (r *barsRenderer) MinSize() fyne.Size {
	return r.bars.MinSize()
}

func (r *barsRenderer) Refresh() {
	r.bars.mu.Lock()
	level := r.bars.shown
	r.bars.mu.Unlock()

	n := r.bars.n
	lit := mode.LitBars(level, n)
	for i := 0; i < n; i++ {
		c := segmentColor(i, n)
		if i >= lit {
			c = colorOff
		}
		r.left[i].FillColor = c
		r.right[i].FillColor = c
		r.left[i].Refresh()
		r.right[i].Refresh()
	}
}

func segmentColor(i, n int) color.Color {
	switch {
	case i >= n*3/4:
		return colorHigh
	case i >= n/2:
		return colorMid
	default:
		return colorLow
	}
}

func (r *barsRenderer) Objects() []fyne.CanvasObject {
	objs := make([]fyne.CanvasObject, 0, 2*r.bars.n)
	for i := range r.left {
		objs = append(objs, r.left[i], r.right[i])
	}
	return objs
}

func (r *barsRenderer) Destroy() {
	r.bars.Stop()
}
