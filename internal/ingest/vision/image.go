package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	// Decoders register themselves with image.Decode.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/sakif/metapantry/internal/apperror"
)

const (
	// MaxPixels rejects decompression bombs before the full decode.
	MaxPixels = 50_000_000
	// MaxSide is the longest edge sent upstream; larger images are scaled down.
	MaxSide     = 2048
	jpegQuality = 85
)

// PrepareImage decodes any supported format (jpeg, png, gif, webp, bmp,
// tiff), flattens it onto a white background as opaque RGB, scales it so
// neither side exceeds MaxSide and re-encodes it as JPEG.
//
// Anything that fails to decode is apperror.ErrValidation.
func PrepareImage(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, apperror.InvalidInput("invalid image: empty upload", nil)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperror.InvalidInput("invalid image", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > MaxPixels {
		return nil, apperror.InvalidInput(
			fmt.Sprintf("invalid image: %dx%d %s is too large", cfg.Width, cfg.Height, format), nil)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperror.InvalidInput("invalid image", err)
	}

	dst := image.NewRGBA(fitWithin(src.Bounds(), MaxSide))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if dst.Bounds().Size() == src.Bounds().Size() {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("vision: encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// fitWithin returns a zero-origin rectangle with b's aspect ratio whose
// longest side is at most limit.
func fitWithin(b image.Rectangle, limit int) image.Rectangle {
	w, h := b.Dx(), b.Dy()
	if w <= limit && h <= limit {
		return image.Rect(0, 0, w, h)
	}
	if w >= h {
		h = h * limit / w
		w = limit
	} else {
		w = w * limit / h
		h = limit
	}
	return image.Rect(0, 0, max(w, 1), max(h, 1))
}
