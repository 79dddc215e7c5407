package export

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyimg/internal/result"
)

func TestDataURL_RoundTrip(t *testing.T) {
	data := []byte{0xff, 0xd8, 0xff, 0x00, 0x01}
	u, err := DataURL(result.NewBlob("p.jpg", data, time.Time{}))
	require.NoError(t, err)
	assert.Equal(t, "data:image/jpeg;base64,/9j/AAE=", u)

	mt, got, err := ParseDataURL(u)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mt)
	assert.Equal(t, data, got)
}

func TestParseDataURL_Invalid(t *testing.T) {
	for _, s := range []string{"", "http://example.com/a.png", "data:image/png,plain", "data:image/png;base64"} {
		_, _, err := ParseDataURL(s)
		assert.Error(t, err, s)
	}
}

func TestCloudFiles(t *testing.T) {
	entries := []result.Entry{entry("a.png", []byte("a")), entry("b.png", []byte("b"))}
	files, err := CloudFiles(entries)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.png", files[0].Filename)
	assert.Equal(t, "data:image/png;base64,YQ==", files[0].URL)
}

type upload struct {
	auth string
	arg  map[string]any
	body string
}

func dropboxServer(t *testing.T, status int) (*httptest.Server, *[]upload) {
	t.Helper()
	var mu sync.Mutex
	var got []upload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/files/upload", r.URL.Path)
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		var arg map[string]any
		assert.NoError(t, json.Unmarshal([]byte(r.Header.Get("Dropbox-API-Arg")), &arg))
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, upload{auth: r.Header.Get("Authorization"), arg: arg, body: string(body)})
		mu.Unlock()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"error_summary":"path/conflict"}`)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestDropbox_Save(t *testing.T) {
	srv, got := dropboxServer(t, http.StatusOK)
	files, err := CloudFiles([]result.Entry{entry("a.png", []byte("aaaa")), entry("café.jpg", []byte("bbbb"))})
	require.NoError(t, err)

	var progress []float64
	var succeeded bool
	cb := Callbacks{
		Success:  func() { succeeded = true },
		Progress: func(f float64) { progress = append(progress, f) },
		Error:    func(err error) { t.Errorf("unexpected error callback: %v", err) },
	}

	d := NewDropbox(context.Background(), "secret-token", "/tinified", srv.URL)
	require.NoError(t, d.Save(context.Background(), files, cb))

	assert.True(t, succeeded)
	require.Len(t, *got, 2)
	first := (*got)[0]
	assert.Equal(t, "Bearer secret-token", first.auth)
	assert.Equal(t, "/tinified/a.png", first.arg["path"])
	assert.Equal(t, "add", first.arg["mode"])
	assert.Equal(t, true, first.arg["autorename"])
	assert.Equal(t, "aaaa", first.body)
	assert.Equal(t, "/tinified/café.jpg", (*got)[1].arg["path"])

	require.NotEmpty(t, progress)
	assert.Equal(t, 1.0, progress[len(progress)-1])
}

func TestDropbox_SaveReportsAPIError(t *testing.T) {
	srv, _ := dropboxServer(t, http.StatusConflict)
	files, err := CloudFiles([]result.Entry{entry("a.png", []byte("aaaa"))})
	require.NoError(t, err)

	var cbErr error
	cb := Callbacks{
		Success: func() { t.Error("success must not be called") },
		Error:   func(err error) { cbErr = err },
	}
	d := NewDropbox(context.Background(), "t", "", srv.URL)
	err = d.Save(context.Background(), files, cb)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "path/conflict")
	assert.Equal(t, err, cbErr)
}

func TestHeaderJSON_EscapesNonASCII(t *testing.T) {
	s, err := headerJSON(uploadArg{Path: "/é😀"})
	require.NoError(t, err)
	assert.Contains(t, s, `\u00e9`)
	assert.Contains(t, s, `\ud83d\ude00`)
	for _, r := range s {
		assert.Less(t, r, rune(0x80))
	}
}
