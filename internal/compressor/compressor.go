package compressor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/disintegration/imaging"

	"tinyimg/internal/result"
)

// Compressor turns one image file into a smaller one.
type Compressor interface {
	Compress(ctx context.Context, f result.File) (result.File, error)
}

// Imaging compresses with github.com/disintegration/imaging: fit to the
// max dimension, then search downward in quality (and size) until the output
// is under the byte budget or the iteration cap is hit.
type Imaging struct {
	opts Options
}

// step is the per-iteration scale for quality and dimensions.
const step = 0.95

func New(opts Options) (*Imaging, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Imaging{opts: opts}, nil
}

func (c *Imaging) Options() Options { return c.opts }

func (c *Imaging) Compress(ctx context.Context, f result.File) (result.File, error) {
	name := f.Name()
	data, err := result.ReadAll(f)
	if err != nil {
		return nil, &Error{FileName: name, Err: fmt.Errorf("read: %w", err)}
	}
	if err := ctx.Err(); err != nil {
		return nil, &Error{FileName: name, Err: err}
	}

	cfg, kind, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &Error{FileName: name, Err: fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)}
	}
	format, err := imaging.FormatFromExtension(kind)
	if err != nil {
		return nil, &Error{FileName: name, Err: fmt.Errorf("%w: %s", ErrUnsupportedFormat, kind)}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(c.opts.NormalizeOrientation))
	if err != nil {
		return nil, &Error{FileName: name, Err: fmt.Errorf("decode: %w", err)}
	}

	limit := c.opts.MaxWidthOrHeight
	needsResize := cfg.Width > limit || cfg.Height > limit
	if needsResize {
		img = imaging.Fit(img, limit, limit, imaging.Lanczos)
	}
	// without normalization the pixels keep their stored layout, so the
	// orientation tag has to travel with them
	var keepTag []byte
	if !c.opts.NormalizeOrientation && format == imaging.JPEG && exifOrientation(data) > 1 {
		keepTag = exifSegment(data)
	}

	quality := c.opts.InitialQuality
	out, err := encode(img, format, quality, keepTag)
	if err != nil {
		return nil, &Error{FileName: name, Err: err}
	}
	best := out
	for i := 1; i < c.opts.MaxIteration && int64(len(out)) > c.opts.MaxSizeBytes; i++ {
		if err := ctx.Err(); err != nil {
			return nil, &Error{FileName: name, Err: err}
		}
		quality *= step
		b := img.Bounds()
		w := int(math.Max(1, math.Round(float64(b.Dx())*step)))
		img = imaging.Resize(img, w, 0, imaging.Lanczos)
		if out, err = encode(img, format, quality, keepTag); err != nil {
			return nil, &Error{FileName: name, Err: err}
		}
		if len(out) < len(best) {
			best = out
		}
	}

	// an input that fits the dimension cap is never replaced by a larger file
	if !needsResize && int64(len(best)) >= int64(len(data)) {
		return result.NewBlob(name, data, f.ModTime()), nil
	}
	return result.NewBlob(name, best, f.ModTime()), nil
}

// encode writes img in format; exifSeg, when set, is spliced into JPEG output.
func encode(img image.Image, format imaging.Format, quality float64, exifSeg []byte) ([]byte, error) {
	var opts []imaging.EncodeOption
	switch format {
	case imaging.JPEG:
		opts = append(opts, imaging.JPEGQuality(jpegQuality(quality)))
	case imaging.PNG:
		opts = append(opts, imaging.PNGCompressionLevel(png.BestCompression))
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, opts...); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	if format == imaging.JPEG {
		return withSegment(buf.Bytes(), exifSeg), nil
	}
	return buf.Bytes(), nil
}

func jpegQuality(q float64) int {
	v := int(math.Round(q * 100))
	if v < 1 {
		return 1
	}
	if v > 100 {
		return 100
	}
	return v
}
