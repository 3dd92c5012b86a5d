package resize

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func testImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 3), G: uint8(y * 3), B: 0x40, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestShrinkCropsAndScales(t *testing.T) {
	raw := testImage(t, 64, 32)

	out, err := Raster{}.Shrink(raw, "image/png", 16)
	if err != nil {
		t.Fatalf("Shrink: %v", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if format != "png" {
		t.Errorf("format = %q", format)
	}
	if cfg.Width != 16 || cfg.Height != 16 {
		t.Errorf("dims = %dx%d, want 16x16", cfg.Width, cfg.Height)
	}
}

func TestShrinkSmallImageKeepsSize(t *testing.T) {
	raw := testImage(t, 8, 8)

	out, err := Raster{}.Shrink(raw, "image/png", 96)
	if err != nil {
		t.Fatalf("Shrink: %v", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if cfg.Width != 8 || cfg.Height != 8 {
		t.Errorf("dims = %dx%d, want 8x8", cfg.Width, cfg.Height)
	}
}

func TestShrinkUnsupportedMime(t *testing.T) {
	_, err := Raster{}.Shrink(testImage(t, 8, 8), "image/webp", 16)
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
}

func TestShrinkGarbage(t *testing.T) {
	if _, err := (Raster{}).Shrink([]byte("garbage"), "image/png", 16); err == nil {
		t.Fatal("expected decode error")
	}
}
