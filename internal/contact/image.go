package contact

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// ImageOptions bound stored contact images.
type ImageOptions struct {
	MaxBytes  int
	MaxWidth  int
	MaxHeight int
}

// PrepareImage checks the size and format of an uploaded contact image and
// scales it down to fit MaxWidth x MaxHeight, preserving the aspect ratio.
// It returns the bytes to store and their content type. Images that already
// fit are returned unchanged.
func PrepareImage(data []byte, opts ImageOptions) ([]byte, string, error) {
	if opts.MaxBytes > 0 && len(data) > opts.MaxBytes {
		return nil, "", ErrImageTooLarge(len(data), opts.MaxBytes)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", ErrImageBroken(err)
	}
	contentType := "image/" + format

	w, h := fitWithin(cfg.Width, cfg.Height, opts.MaxWidth, opts.MaxHeight)
	if w == cfg.Width && h == cfg.Height {
		return data, contentType, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", ErrImageBroken(err)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&buf, dst)
	case "gif":
		err = gif.Encode(&buf, dst, nil)
	default:
		contentType = "image/jpeg"
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		return nil, "", ErrImageBroken(err)
	}
	return buf.Bytes(), contentType, nil
}

func fitWithin(w, h, maxW, maxH int) (int, int) {
	if maxW <= 0 || maxH <= 0 || (w <= maxW && h <= maxH) {
		return w, h
	}
	// scale by the tighter bound
	if w*maxH > h*maxW {
		nh := h * maxW / w
		if nh < 1 {
			nh = 1
		}
		return maxW, nh
	}
	nw := w * maxH / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxH
}
