package compressor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyimg/internal/result"
)

func noisyImage(w, h int, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x*255/w) ^ uint8(rng.Intn(64)),
				G: uint8(y*255/h) ^ uint8(rng.Intn(64)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	return img
}

func jpegBytes(t *testing.T, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}))
	return buf.Bytes()
}

func blob(name string, data []byte) *result.Blob {
	return result.NewBlob(name, data, time.Unix(1700000000, 0))
}

func decodeConfig(t *testing.T, f result.File) image.Config {
	t.Helper()
	data, err := result.ReadAll(f)
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg
}

func newDefault(t *testing.T) *Imaging {
	t.Helper()
	c, err := New(DefaultOptions())
	require.NoError(t, err)
	return c
}

func TestCompress_FitsLongestSide(t *testing.T) {
	orig := jpegBytes(t, noisyImage(3000, 2000, 1), 95)

	out, err := newDefault(t).Compress(context.Background(), blob("wide.jpg", orig))
	require.NoError(t, err)

	cfg := decodeConfig(t, out)
	assert.Equal(t, 1920, cfg.Width)
	assert.Equal(t, 1280, cfg.Height)
	assert.Less(t, out.Size(), int64(len(orig)))
	assert.Equal(t, "wide.jpg", out.Name())
}

func TestCompress_LowersQualityForJPEG(t *testing.T) {
	orig := jpegBytes(t, noisyImage(400, 300, 2), 100)

	out, err := newDefault(t).Compress(context.Background(), blob("photo.jpg", orig))
	require.NoError(t, err)

	cfg := decodeConfig(t, out)
	assert.Equal(t, 400, cfg.Width)
	assert.Less(t, out.Size(), int64(len(orig)))
}

func TestCompress_SearchesUntilUnderBudget(t *testing.T) {
	orig := jpegBytes(t, noisyImage(800, 800, 3), 95)
	opts := DefaultOptions()
	opts.MaxSizeBytes = 20 * 1024
	c, err := New(opts)
	require.NoError(t, err)

	out, err := c.Compress(context.Background(), blob("big.jpg", orig))
	require.NoError(t, err)

	cfg := decodeConfig(t, out)
	assert.Less(t, cfg.Width, 800, "dimensions shrink on each iteration")
	assert.Less(t, out.Size(), int64(len(orig)))
}

func TestCompress_NeverGrowsAFileThatAlreadyFits(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	require.NoError(t, enc.Encode(&buf, img))
	orig := buf.Bytes()

	out, err := newDefault(t).Compress(context.Background(), blob("tiny.png", orig))
	require.NoError(t, err)
	assert.LessOrEqual(t, out.Size(), int64(len(orig)))
	pct := result.PercentSaved(int64(len(orig)), out.Size())
	assert.GreaterOrEqual(t, pct, 0.0)
}

func TestCompress_NormalizesOrientation(t *testing.T) {
	orig := withOrientation(jpegBytes(t, noisyImage(40, 20, 4), 90), 6)
	require.Equal(t, 6, exifOrientation(orig))

	out, err := newDefault(t).Compress(context.Background(), blob("rotated.jpg", orig))
	require.NoError(t, err)

	cfg := decodeConfig(t, out)
	assert.Equal(t, 20, cfg.Width)
	assert.Equal(t, 40, cfg.Height)

	data, err := result.ReadAll(out)
	require.NoError(t, err)
	assert.Zero(t, exifOrientation(data), "output carries no orientation tag")
}

func TestCompress_KeepsOrientationTagWhenNotNormalizing(t *testing.T) {
	orig := withOrientation(jpegBytes(t, noisyImage(40, 20, 7), 95), 6)
	opts := DefaultOptions()
	opts.NormalizeOrientation = false
	opts.MaxWidthOrHeight = 20
	c, err := New(opts)
	require.NoError(t, err)

	out, err := c.Compress(context.Background(), blob("sideways.jpg", orig))
	require.NoError(t, err)

	cfg := decodeConfig(t, out)
	assert.Equal(t, 20, cfg.Width, "pixels keep their stored layout")
	assert.Equal(t, 10, cfg.Height)

	data, err := result.ReadAll(out)
	require.NoError(t, err)
	assert.Equal(t, 6, exifOrientation(data), "viewers can still rotate the output")
}

func TestCompress_RotatedLowQualityInputNeverGrows(t *testing.T) {
	orig := withOrientation(jpegBytes(t, noisyImage(40, 20, 8), 1), 6)

	out, err := newDefault(t).Compress(context.Background(), blob("crushed.jpg", orig))
	require.NoError(t, err)

	data, err := result.ReadAll(out)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(data), len(orig))

	store := result.NewStore()
	_, err = store.Append(blob("crushed.jpg", orig))
	require.NoError(t, err)
	_, err = store.Apply(result.Update{FileName: "crushed.jpg", File: out})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, store.Totals().BytesSaved, int64(0))
}

func TestCompress_UnsupportedFormat(t *testing.T) {
	_, err := newDefault(t).Compress(context.Background(), blob("notes.png", []byte("definitely not an image")))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "notes.png", cerr.FileName)
}

func TestCompress_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newDefault(t).Compress(ctx, blob("a.jpg", jpegBytes(t, noisyImage(10, 10, 5), 90)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptionsValidate(t *testing.T) {
	var o Options
	require.NoError(t, o.Validate())
	assert.EqualValues(t, DefaultMaxSizeBytes, o.MaxSizeBytes)
	assert.Equal(t, DefaultMaxWidthOrHeight, o.MaxWidthOrHeight)
	assert.Equal(t, DefaultMaxIteration, o.MaxIteration)
	assert.Equal(t, DefaultInitialQuality, o.InitialQuality)

	bad := DefaultOptions()
	bad.InitialQuality = 1.5
	assert.ErrorIs(t, bad.Validate(), ErrInvalidQuality)

	bad = DefaultOptions()
	bad.MaxWidthOrHeight = -1
	assert.ErrorIs(t, bad.Validate(), ErrInvalidDimension)

	_, err := New(bad)
	assert.ErrorIs(t, err, ErrInvalidDimension)
}

func TestJPEGQuality(t *testing.T) {
	assert.Equal(t, 30, jpegQuality(0.3))
	assert.Equal(t, 50, jpegQuality(0.5))
	assert.Equal(t, 1, jpegQuality(0))
	assert.Equal(t, 100, jpegQuality(2))
}

func TestExifOrientation_NoTag(t *testing.T) {
	assert.Zero(t, exifOrientation(jpegBytes(t, noisyImage(4, 4, 6), 90)))
	assert.Zero(t, exifOrientation([]byte{0x89, 'P', 'N', 'G'}))
}

// withOrientation splices a big-endian EXIF APP1 segment carrying the given
// orientation right after the SOI marker.
func withOrientation(jpg []byte, orientation uint16) []byte {
	tiff := []byte{
		'M', 'M', 0x00, 0x2A, 0x00, 0x00, 0x00, 0x08,
		0x00, 0x01,
		0x01, 0x12, 0x00, 0x03, 0x00, 0x00, 0x00, 0x01, byte(orientation >> 8), byte(orientation), 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
	payload := append([]byte("Exif\x00\x00"), tiff...)
	size := len(payload) + 2
	seg := append([]byte{0xFF, 0xE1, byte(size >> 8), byte(size)}, payload...)

	out := make([]byte, 0, len(jpg)+len(seg))
	out = append(out, jpg[:2]...)
	out = append(out, seg...)
	out = append(out, jpg[2:]...)
	return out
}
