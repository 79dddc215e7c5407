package export

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"

	"tinyimg/internal/result"
)

// ArchiveName is the file name offered for the bulk download.
const ArchiveName = "tinified.zip"

// WriteArchive writes a zip of every entry's current file under its original
// name, in entry order. Headers only depend on the entries, so writing the
// same entries twice yields identical bytes.
func WriteArchive(w io.Writer, entries []result.Entry) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		if e.New == nil {
			continue
		}
		hdr := &zip.FileHeader{
			Name:   e.FileName,
			Method: zip.Deflate,
		}
		if mt := e.New.ModTime(); !mt.IsZero() {
			hdr.Modified = mt.UTC()
		}
		hdr.SetMode(0o644)

		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			_ = zw.Close()
			return fmt.Errorf("%s: create header: %w", e.FileName, err)
		}
		if err := copyFile(fw, e.New); err != nil {
			_ = zw.Close()
			return fmt.Errorf("%s: write: %w", e.FileName, err)
		}
	}
	return zw.Close()
}

func copyFile(w io.Writer, f result.File) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(w, rc)
	return err
}
