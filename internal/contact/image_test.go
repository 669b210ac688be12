package contact

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestPrepareImageKeepsSmallImages(t *testing.T) {
	data := pngOf(t, 40, 20)
	out, ct, err := PrepareImage(data, ImageOptions{MaxWidth: 100, MaxHeight: 100})
	if err != nil {
		t.Fatalf("PrepareImage() error = %v", err)
	}
	if ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if !bytes.Equal(out, data) {
		t.Error("image within bounds was re-encoded")
	}
}

func TestPrepareImageScalesDown(t *testing.T) {
	out, ct, err := PrepareImage(pngOf(t, 400, 100), ImageOptions{MaxWidth: 100, MaxHeight: 100})
	if err != nil {
		t.Fatalf("PrepareImage() error = %v", err)
	}
	if ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if cfg.Width != 100 || cfg.Height != 25 {
		t.Errorf("scaled to %dx%d, want 100x25", cfg.Width, cfg.Height)
	}
}

func TestPrepareImageErrors(t *testing.T) {
	_, _, err := PrepareImage(pngOf(t, 10, 10), ImageOptions{MaxBytes: 10})
	if codeOf(err) != CodeImageTooLarge {
		t.Errorf("too large: error = %v", err)
	}
	_, _, err = PrepareImage([]byte("definitely not an image"), ImageOptions{})
	if codeOf(err) != CodeImageBroken {
		t.Errorf("broken: error = %v", err)
	}
	var ce *Error
	if !errors.As(err, &ce) || ce.Unwrap() == nil {
		t.Error("broken image error should carry the decoder error")
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct{ w, h, mw, mh, ww, wh int }{
		{50, 50, 100, 100, 50, 50},
		{200, 100, 100, 100, 100, 50},
		{100, 300, 100, 100, 33, 100},
		{1000, 1, 100, 100, 100, 1},
		{10, 10, 0, 0, 10, 10},
	}
	for _, tt := range tests {
		w, h := fitWithin(tt.w, tt.h, tt.mw, tt.mh)
		if w != tt.ww || h != tt.wh {
			t.Errorf("fitWithin(%d,%d,%d,%d) = %d,%d, want %d,%d", tt.w, tt.h, tt.mw, tt.mh, w, h, tt.ww, tt.wh)
		}
	}
}
