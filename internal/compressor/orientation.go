package compressor

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"
)

// exifOrientation returns the EXIF orientation of an image stream, or 0 when
// the stream carries none.
func exifOrientation(data []byte) int {
	x, _ := exif.Decode(bytes.NewReader(data))
	if x == nil {
		return 0
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0
	}
	v, err := tag.Int(0)
	if err != nil {
		return 0
	}
	return v
}

// exifSegment rebuilds the APP1 segment of data's EXIF block, or returns nil
// when there is none or it does not fit in one segment.
func exifSegment(data []byte) []byte {
	x, _ := exif.Decode(bytes.NewReader(data))
	if x == nil || len(x.Raw) == 0 {
		return nil
	}
	payload := append([]byte("Exif\x00\x00"), x.Raw...)
	size := len(payload) + 2
	if size > 0xFFFF {
		return nil
	}
	return append([]byte{0xFF, 0xE1, byte(size >> 8), byte(size)}, payload...)
}

// withSegment inserts seg into a JPEG stream right after its SOI marker.
func withSegment(jpg, seg []byte) []byte {
	if len(seg) == 0 || len(jpg) < 2 {
		return jpg
	}
	out := make([]byte, 0, len(jpg)+len(seg))
	out = append(out, jpg[:2]...)
	out = append(out, seg...)
	return append(out, jpg[2:]...)
}
