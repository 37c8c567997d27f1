package shm

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"

	"deedles.dev/wlpane/shm/shmimage"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Buffer is a single frame of XRGB8888 pixels in shared memory. The
// backing file is created unlinked, sized to exactly one frame, and
// mapped for the lifetime of the buffer. Its descriptor is what gets
// handed to the compositor.
type Buffer struct {
	w, h int32
	file *os.File
	mmap Mmap
}

// NewBuffer creates and maps a shared buffer of w by h pixels.
func NewBuffer(w, h int32) (*Buffer, error) {
	if w <= 0 || h <= 0 {
		return nil, errors.Errorf("invalid buffer size %vx%v", w, h)
	}
	// create_pool carries the pool size as an int32, so a frame past
	// that bound cannot be described to the compositor.
	if int64(w)*4*int64(h) > math.MaxInt32 {
		return nil, errors.Errorf("buffer size %vx%v overflows the shm pool", w, h)
	}

	b := Buffer{w: w, h: h}

	file, err := Create()
	if err != nil {
		return nil, errors.Wrap(err, "create shm file")
	}
	b.file = file

	if err := file.Truncate(int64(b.Len())); err != nil {
		file.Close()
		return nil, errors.Wrap(err, "truncate shm file")
	}

	mmap, err := Map(file, int(b.Len()), unix.PROT_READ|unix.PROT_WRITE)
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, "mmap shm file")
	}
	b.mmap = mmap

	return &b, nil
}

// File is the descriptor that backs the buffer.
func (b *Buffer) File() *os.File {
	return b.file
}

// Stride is the distance in bytes between vertically adjacent pixels.
func (b *Buffer) Stride() int32 {
	return b.w * 4
}

// Len is the size of the buffer in bytes.
func (b *Buffer) Len() int32 {
	return b.Stride() * b.h
}

func (b *Buffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, int(b.w), int(b.h))
}

// Image exposes the mapped pixels as a drawable image. Writes land
// directly in the shared memory that the compositor reads.
func (b *Buffer) Image() draw.Image {
	return &shmimage.XRGB8888{
		Pix:    b.mmap,
		Stride: int(b.Stride()),
		Rect:   b.Bounds(),
	}
}

// Fill paints every pixel of the buffer with c.
func (b *Buffer) Fill(c color.Color) {
	if len(b.mmap) == 0 {
		return
	}

	img := b.Image().(*shmimage.XRGB8888)
	img.Set(0, 0, c)

	// Replicate the first pixel across the first row, then the first
	// row across the rest of the buffer.
	row := img.Pix[:img.Stride]
	for n := 4; n < len(row); n *= 2 {
		copy(row[n:], row[:n])
	}
	for y := 1; y < int(b.h); y++ {
		copy(img.Pix[y*img.Stride:], row)
	}
}

// Close unmaps the pixels and closes the backing descriptor. It is
// safe to call more than once.
func (b *Buffer) Close() error {
	if b.file == nil {
		return nil
	}

	err := b.mmap.Unmap()
	if cerr := b.file.Close(); err == nil {
		err = cerr
	}
	b.mmap, b.file = nil, nil
	return err
}
