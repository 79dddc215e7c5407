package export

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"tinyimg/internal/result"
)

// CloudFile is one file handed to a cloud saver: a locally addressable
// reference to its bytes plus the name to store it under.
type CloudFile struct {
	URL      string
	Filename string
}

// Callbacks receive the outcome of a cloud save. Any of them may be nil.
type Callbacks struct {
	Success  func()
	Progress func(fraction float64)
	Error    func(err error)
}

func (cb Callbacks) success() {
	if cb.Success != nil {
		cb.Success()
	}
}

func (cb Callbacks) progress(f float64) {
	if cb.Progress != nil {
		cb.Progress(f)
	}
}

func (cb Callbacks) fail(err error) {
	if cb.Error != nil {
		cb.Error(err)
	}
}

// CloudSaver stores a set of files in a remote service.
type CloudSaver interface {
	Save(ctx context.Context, files []CloudFile, cb Callbacks) error
}

// CloudFiles builds one CloudFile per entry from its current file.
func CloudFiles(entries []result.Entry) ([]CloudFile, error) {
	out := make([]CloudFile, 0, len(entries))
	for _, e := range entries {
		if e.New == nil {
			continue
		}
		u, err := DataURL(e.New)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.FileName, err)
		}
		out = append(out, CloudFile{URL: u, Filename: e.FileName})
	}
	return out, nil
}

var errNotDataURL = errors.New("not a base64 data URL")

// DataURL encodes f as a base64 data: URL.
func DataURL(f result.File) (string, error) {
	data, err := result.ReadAll(f)
	if err != nil {
		return "", err
	}
	mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(f.Name())))
	if mt == "" {
		mt = http.DetectContentType(data)
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// ParseDataURL decodes a URL produced by DataURL.
func ParseDataURL(s string) (mediaType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, errNotDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errNotDataURL
	}
	mediaType, ok = strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, errNotDataURL
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URL: %w", err)
	}
	return mediaType, data, nil
}
