// Package shmimage implements the pixel formats that shared memory
// buffers are handed to the compositor in.
package shmimage

import "image/color"

// XRGB8888Color is a single opaque pixel, 0x00RRGGBB. The top byte is
// ignored by the compositor and kept zero here.
type XRGB8888Color uint32

func NewXRGB8888Color(r, g, b uint8) XRGB8888Color {
	return XRGB8888Color((uint32(r) << 16) | (uint32(g) << 8) | uint32(b))
}

func (c XRGB8888Color) RGBA() (r, g, b, a uint32) {
	r = uint32(c.r()) * 0xFFFF / 0xFF
	g = uint32(c.g()) * 0xFFFF / 0xFF
	b = uint32(c.b()) * 0xFFFF / 0xFF
	a = 0xFFFF
	return
}

func (c XRGB8888Color) r() uint8 {
	return uint8((c & 0x00FF0000) >> 16)
}

func (c XRGB8888Color) g() uint8 {
	return uint8((c & 0x0000FF00) >> 8)
}

func (c XRGB8888Color) b() uint8 {
	return uint8(c & 0x000000FF)
}

var XRGB8888Model color.Model = color.ModelFunc(xrgb8888Model)

func xrgb8888Model(c color.Color) color.Color {
	switch c := c.(type) {
	case XRGB8888Color:
		return c
	case color.NRGBA:
		return NewXRGB8888Color(c.R, c.G, c.B)
	default:
		// Alpha is dropped, so the premultiplied channels are used
		// directly.
		r, g, b, _ := c.RGBA()
		return NewXRGB8888Color(uint8(r>>8), uint8(g>>8), uint8(b>>8))
	}
}
