package sandbox

import (
	"net/url"
	"strings"
)

// ScreenSize is the side of the square game screen in pixels.
const ScreenSize = 128

// maxSurface bounds the reported surface height.
const maxSurface = 1024

// Renderer selects how the runtime draws.
type Renderer string

const (
	RendererDefault     Renderer = ""
	RendererFramebuffer Renderer = "framebuffer"
)

// RendererFromQuery reads the renderer query parameter; only "framebuffer" selects the
// alternate strategy.
func RendererFromQuery(rawQuery string) Renderer {
	values, err := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	if err != nil {
		return RendererDefault
	}
	if values.Get("renderer") == string(RendererFramebuffer) {
		return RendererFramebuffer
	}
	return RendererDefault
}

// DrawOp is one recorded drawing call from the default renderer.
type DrawOp struct {
	Op    string `json:"op"`
	X     int    `json:"x,omitempty"`
	Y     int    `json:"y,omitempty"`
	Color int    `json:"c"`
	Text  string `json:"text,omitempty"`
}

// Frame is the last picture a program drew: draw ops for the default renderer, or
// palette-indexed pixels for the framebuffer renderer.
type Frame struct {
	Ops    []DrawOp `json:"ops,omitempty"`
	Pixels []uint8  `json:"pixels,omitempty"`
}

type canvas interface {
	clear(c int)
	set(x, y, c int)
	text(s string, x, y, c int)
	frame() Frame
}

type drawList struct {
	ops []DrawOp
}

func (d *drawList) clear(c int) {
	// Everything before a clear is invisible.
	d.ops = append(d.ops[:0], DrawOp{Op: "cls", Color: c})
}

func (d *drawList) set(x, y, c int) {
	d.ops = append(d.ops, DrawOp{Op: "pset", X: x, Y: y, Color: c})
}

func (d *drawList) text(s string, x, y, c int) {
	d.ops = append(d.ops, DrawOp{Op: "print", X: x, Y: y, Color: c, Text: s})
}

func (d *drawList) frame() Frame {
	return Frame{Ops: append([]DrawOp(nil), d.ops...)}
}

type framebuffer struct {
	pixels [ScreenSize * ScreenSize]uint8
}

func (f *framebuffer) clear(c int) {
	for i := range f.pixels {
		f.pixels[i] = uint8(c)
	}
}

func (f *framebuffer) set(x, y, c int) {
	if x < 0 || y < 0 || x >= ScreenSize || y >= ScreenSize {
		return
	}
	f.pixels[y*ScreenSize+x] = uint8(c)
}

// text has no font; each visible glyph is a filled 3x5 cell on a 4px advance.
func (f *framebuffer) text(s string, x, y, c int) {
	for i, r := range []rune(s) {
		if r == ' ' {
			continue
		}
		for dy := 0; dy < 5; dy++ {
			for dx := 0; dx < 3; dx++ {
				f.set(x+i*4+dx, y+dy, c)
			}
		}
	}
}

func (f *framebuffer) frame() Frame {
	return Frame{Pixels: append([]uint8(nil), f.pixels[:]...)}
}

func newCanvas(useFramebuffer bool) canvas {
	if useFramebuffer {
		return &framebuffer{}
	}
	return &drawList{}
}

// surfaceHeight sizes the square surface from the host viewport.
func surfaceHeight(v Viewport) int {
	side := v.Width
	if v.Height > 0 && (side <= 0 || v.Height < side) {
		side = v.Height
	}
	if side < ScreenSize {
		return ScreenSize
	}
	if side > maxSurface {
		return maxSurface
	}
	return side
}
