package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"unicode/utf16"

	"golang.org/x/oauth2"

	"tinyimg/internal/logctx"
)

const (
	DefaultDropboxURL    = "https://content.dropboxapi.com"
	DefaultDropboxFolder = "/tinified"

	uploadPath       = "/2/files/upload"
	progressInterval = 64 * 1024
)

// APIError is a non-2xx answer from the Dropbox API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dropbox: status %d: %s", e.StatusCode, e.Body)
}

// Dropbox saves files into a Dropbox folder with a single upload request per
// file. There is no retry.
type Dropbox struct {
	client  *http.Client
	baseURL string
	folder  string
}

func NewDropbox(ctx context.Context, token, folder, baseURL string) *Dropbox {
	if folder == "" {
		folder = DefaultDropboxFolder
	}
	if baseURL == "" {
		baseURL = DefaultDropboxURL
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &Dropbox{
		client:  oauth2.NewClient(ctx, ts),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		folder:  folder,
	}
}

type uploadArg struct {
	Path       string `json:"path"`
	Mode       string `json:"mode"`
	Autorename bool   `json:"autorename"`
	Mute       bool   `json:"mute"`
}

func (d *Dropbox) Save(ctx context.Context, files []CloudFile, cb Callbacks) error {
	log := logctx.LoggerFromContext(ctx)

	payloads := make([][]byte, len(files))
	var total int64
	for i, f := range files {
		_, data, err := ParseDataURL(f.URL)
		if err != nil {
			err = fmt.Errorf("%s: %w", f.Filename, err)
			cb.fail(err)
			return err
		}
		payloads[i] = data
		total += int64(len(data))
	}

	var sent int64
	for i, f := range files {
		dest := path.Join(d.folder, f.Filename)
		if err := d.upload(ctx, dest, payloads[i], sent, total, cb); err != nil {
			err = fmt.Errorf("%s: %w", f.Filename, err)
			cb.fail(err)
			return err
		}
		sent += int64(len(payloads[i]))
		log.Debug("uploaded to dropbox", "path", dest, "bytes", len(payloads[i]))
	}
	cb.success()
	return nil
}

func (d *Dropbox) upload(ctx context.Context, dest string, data []byte, sent, total int64, cb Callbacks) error {
	arg, err := headerJSON(uploadArg{Path: dest, Mode: "add", Autorename: true})
	if err != nil {
		return err
	}
	body := newProgressReader(bytes.NewReader(data), sent, int64(len(data)), total, progressInterval, func(done, total int64) {
		if total > 0 {
			cb.progress(float64(done) / float64(total))
		}
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+uploadPath, body)
	if err != nil {
		return err
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Dropbox-API-Arg", arg)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// headerJSON marshals v for an HTTP header value: non-ASCII runes are
// escaped as \uXXXX.
func headerJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, r := range string(raw) {
		switch {
		case r < 0x7f:
			b.WriteRune(r)
		case r > 0xffff:
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(&b, `\u%04x\u%04x`, r1, r2)
		default:
			fmt.Fprintf(&b, `\u%04x`, r)
		}
	}
	return b.String(), nil
}
