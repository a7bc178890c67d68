// Package schematic draws a still top-down picture of the garage from a view
// model, for places that cannot run the live card (notifications, e-ink).
package schematic

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/inconsolata"
	"golang.org/x/image/math/fixed"

	"github.com/elijahnyp/garage_card/card"
)

// Base size at scale 1.
const (
	Width  = 240
	Height = 200
)

var (
	background = color.RGBA{28, 28, 30, 255}
	floorDark  = color.RGBA{58, 58, 62, 255}
	floorLit   = color.RGBA{96, 92, 70, 255}
	wall       = color.RGBA{140, 140, 145, 255}
	doorClosed = color.RGBA{74, 144, 217, 255}
	doorMoving = color.RGBA{240, 173, 78, 255}
	carHome    = color.RGBA{92, 184, 92, 255}
	carAway    = color.RGBA{110, 110, 110, 255}
	textColor  = color.RGBA{235, 235, 235, 255}
	active     = color.RGBA{217, 83, 79, 255}
)

type canvas struct {
	img   *image.RGBA
	scale int
}

func (c canvas) rect(x0, y0, x1, y1 int) image.Rectangle {
	return image.Rect(x0*c.scale, y0*c.scale, x1*c.scale, y1*c.scale)
}

func (c canvas) fill(x0, y0, x1, y1 int, col color.Color) {
	draw.Draw(c.img, c.rect(x0, y0, x1, y1), image.NewUniform(col), image.Point{}, draw.Src)
}

// outline draws corner brackets around a box, like a detection marker.
func (c canvas) outline(x0, y0, x1, y1, length int, col color.Color) {
	w := 2
	c.fill(x0, y0, x0+length, y0+w, col)
	c.fill(x0, y0, x0+w, y0+length, col)
	c.fill(x1-length, y0, x1, y0+w, col)
	c.fill(x1-w, y0, x1, y0+length, col)
	c.fill(x0, y1-w, x0+length, y1, col)
	c.fill(x0, y1-length, x0+w, y1, col)
	c.fill(x1-length, y1-w, x1, y1, col)
	c.fill(x1-w, y1-length, x1, y1, col)
}

func (c canvas) label(x, y int, s string, col color.Color) {
	d := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(col),
		Face: inconsolata.Regular8x16,
		Dot:  fixed.Point26_6{X: fixed.I(x * c.scale), Y: fixed.I(y * c.scale)},
	}
	d.DrawString(s)
}

// Draw renders vm. scale multiplies the base size and is clamped to >= 1.
func Draw(vm card.ViewModel, scale int) *image.RGBA {
	if scale < 1 {
		scale = 1
	}
	c := canvas{img: image.NewRGBA(image.Rect(0, 0, Width*scale, Height*scale)), scale: scale}
	c.fill(0, 0, Width, Height, background)

	c.label(8, 16, vm.Name, textColor)

	floor := floorDark
	if vm.Light.On {
		floor = floorLit
	}
	c.fill(20, 30, 220, 150, wall)
	c.fill(24, 34, 216, 150, floor)

	// parking spots, left to right
	n := len(vm.Vehicles)
	if n > 0 {
		spot := 192 / n
		for i, v := range vm.Vehicles {
			x0 := 24 + i*spot + 8
			x1 := 24 + (i+1)*spot - 8
			if v.Present {
				c.fill(x0, 50, x1, 140, carHome)
			} else {
				c.outline(x0, 50, x1, 140, 12, carAway)
			}
		}
	}

	// door across the open side; a thin strip when open
	switch {
	case vm.Door.Moving:
		for x := 20; x < 220; x += 16 {
			c.fill(x, 148, x+10, 154, doorMoving)
		}
	case vm.Door.Open:
		c.fill(20, 148, 220, 150, doorClosed)
	default:
		c.fill(20, 148, 220, 156, doorClosed)
	}

	status := vm.Door.Text
	if vm.KeepOpen.Enabled {
		status += " (keep open)"
	}
	c.label(8, 174, status, textColor)

	if vm.Countdown.Configured {
		col := textColor
		if vm.Countdown.Active {
			col = active
		}
		c.label(8, 192, vm.Countdown.Text, col)
	}
	return c.img
}
