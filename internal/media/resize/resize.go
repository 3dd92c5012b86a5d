// Package resize shrinks avatar images for bandwidth-sensitive channels.
package resize

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Resizer produces a cropped, scaled copy of an image. Implementations
// return ErrUnsupported when no encoder exists for the mime type; any other
// error means the image could not be processed.
type Resizer interface {
	Shrink(raw []byte, mimeType string, targetDim int) ([]byte, error)
}

var ErrUnsupported = errors.New("no encoder for mime type")

type encoderFunc func(buf *bytes.Buffer, img image.Image) error

var encoders = map[string]encoderFunc{
	"image/png": func(buf *bytes.Buffer, img image.Image) error {
		return png.Encode(buf, img)
	},
	"image/jpeg": func(buf *bytes.Buffer, img image.Image) error {
		return jpeg.Encode(buf, img, &jpeg.Options{Quality: 90})
	},
	"image/gif": func(buf *bytes.Buffer, img image.Image) error {
		return gif.Encode(buf, img, nil)
	},
}

// Raster resizes raster avatars: center-crop to a square, then scale down to
// targetDim. Images already at or below the target are re-encoded as-is so
// the output format always matches the requested mime type.
type Raster struct{}

func (Raster) Shrink(raw []byte, mimeType string, targetDim int) ([]byte, error) {
	encode, ok := encoders[mimeType]
	if !ok {
		return nil, ErrUnsupported
	}
	if targetDim <= 0 {
		return nil, fmt.Errorf("bad target dimension %d", targetDim)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	cropped := centerCrop(img)
	side := cropped.Bounds().Dx()
	if side > targetDim {
		dst := image.NewRGBA(image.Rect(0, 0, targetDim, targetDim))
		draw.CatmullRom.Scale(dst, dst.Bounds(), cropped, cropped.Bounds(), draw.Over, nil)
		cropped = dst
	}

	var buf bytes.Buffer
	if err := encode(&buf, cropped); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func centerCrop(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == h {
		return img
	}
	side := w
	if h < side {
		side = h
	}
	x0 := b.Min.X + (w-side)/2
	y0 := b.Min.Y + (h-side)/2
	rect := image.Rect(x0, y0, x0+side, y0+side)

	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Copy(dst, image.Point{}, img, rect, draw.Src, nil)
	return dst
}
