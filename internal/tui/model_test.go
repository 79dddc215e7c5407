package tui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyimg/internal/intake"
	"tinyimg/internal/result"
)

type fakeSession struct {
	store     *result.Store
	changed   chan struct{}
	submitted [][]result.File
	archives  int
	saved     []string
}

func newFakeSession() *fakeSession {
	return &fakeSession{store: result.NewStore(), changed: make(chan struct{}, 1)}
}

func (s *fakeSession) Submit(_ context.Context, batch []result.File) intake.Report {
	s.submitted = append(s.submitted, batch)
	return intake.Admit(s.store, batch, intake.DefaultLimits())
}

func (s *fakeSession) Changed() <-chan struct{}          { return s.changed }
func (s *fakeSession) Entries() []result.Entry           { return s.store.Entries() }
func (s *fakeSession) SaveToCloud(context.Context) error { return nil }

func (s *fakeSession) SaveEntry(name string) (string, error) {
	s.saved = append(s.saved, name)
	return "/out/" + name, nil
}

func (s *fakeSession) SaveArchive() (string, error) {
	s.archives++
	return "/out/tinified.zip", nil
}

func blob(name string, size int) result.File {
	return result.NewBlob(name, make([]byte, size), time.Time{})
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(model)
	require.True(t, ok)
	return nm, cmd
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_ShowsProgressThenTotals(t *testing.T) {
	sess := newFakeSession()
	_, err := sess.store.Append(blob("photo.jpg", 600000))
	require.NoError(t, err)
	_, err = sess.store.Append(blob("logo.png", 1000))
	require.NoError(t, err)

	m := newModel(context.Background(), sess, nil, Options{})
	assert.Equal(t, statusCompressing, m.st)
	view := m.View()
	assert.Contains(t, view, "Compressing...")
	assert.NotContains(t, view, "We just saved you")
	assert.NotContains(t, view, "Download All")

	_, err = sess.store.Apply(result.Update{FileName: "photo.jpg", File: blob("photo.jpg", 280000)})
	require.NoError(t, err)
	m, _ = update(t, m, changedMsg{})
	assert.Equal(t, statusCompressing, m.st)
	assert.Contains(t, m.View(), "Complete!")

	_, err = sess.store.Apply(result.Update{FileName: "logo.png", File: blob("logo.png", 900)})
	require.NoError(t, err)
	m, cmd := update(t, m, changedMsg{})
	assert.NotNil(t, cmd, "keeps listening for changes")
	assert.Equal(t, statusDone, m.st)

	view = m.View()
	assert.Contains(t, view, "-53.33%")
	assert.Contains(t, view, "We just saved you")
	assert.Contains(t, view, "63.33%")
	assert.Contains(t, view, "Download All")
	assert.NotContains(t, view, "Save to Dropbox")
}

func TestModel_FailedEntry(t *testing.T) {
	sess := newFakeSession()
	_, _ = sess.store.Append(blob("broken.png", 10))
	_, _ = sess.store.Apply(result.Update{FileName: "broken.png", Err: assert.AnError})

	m := newModel(context.Background(), sess, nil, Options{CloudEnabled: true})
	view := m.View()
	assert.Contains(t, view, "Failed")
	assert.Contains(t, view, "Save to Dropbox")
}

func TestModel_ZipOnlyWhenDone(t *testing.T) {
	sess := newFakeSession()
	_, _ = sess.store.Append(blob("a.png", 10))

	m := newModel(context.Background(), sess, nil, Options{})
	m, cmd := update(t, m, key("z"))
	assert.Nil(t, cmd)

	_, _ = sess.store.Apply(result.Update{FileName: "a.png", File: blob("a.png", 5)})
	m, _ = update(t, m, changedMsg{})
	m, cmd = update(t, m, key("z"))
	require.NotNil(t, cmd)

	msg := cmd()
	assert.Equal(t, 1, sess.archives)
	m, _ = update(t, m, msg)
	assert.Contains(t, m.View(), "Archive saved to /out/tinified.zip")
}

func TestModel_SaveEntryUnderCursor(t *testing.T) {
	sess := newFakeSession()
	_, _ = sess.store.Append(blob("a.png", 10))
	_, _ = sess.store.Append(blob("b.png", 10))
	_, _ = sess.store.Apply(result.Update{FileName: "b.png", File: blob("b.png", 5)})

	m := newModel(context.Background(), sess, nil, Options{})
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd, "a.png is still compressing")

	m, _ = update(t, m, key("j"))
	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []string{"b.png"}, sess.saved)
}

func TestModel_PastedPathsAreSubmitted(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "My Photo.png")
	require.NoError(t, os.WriteFile(p, []byte("png"), 0o644))

	sess := newFakeSession()
	m := newModel(context.Background(), sess, nil, Options{})
	assert.Contains(t, m.View(), "Drop your .png or .jpg files here!")

	paste := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("'" + p + "'"), Paste: true}
	m, cmd := update(t, m, paste)
	require.NotNil(t, cmd)

	m, _ = update(t, m, cmd())
	require.Len(t, sess.submitted, 1)
	assert.Equal(t, "My Photo.png", sess.submitted[0][0].Name())
	assert.Empty(t, m.alert)
	assert.Equal(t, statusCompressing, m.st)
}

func TestModel_DropAreaAndAlert(t *testing.T) {
	sess := newFakeSession()
	m := newModel(context.Background(), sess, nil, Options{})

	m, _ = update(t, m, key("a"))
	require.True(t, m.dropping)
	m.drop.SetValue(filepath.Join(t.TempDir(), "missing.png"))
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.False(t, m.dropping)

	m, _ = update(t, m, cmd())
	require.NotEmpty(t, m.alert)
	assert.Contains(t, m.View(), "Press any key to continue")

	m, _ = update(t, m, key("x"))
	assert.Empty(t, m.alert)
}

func TestModel_BatchTooLargeAlert(t *testing.T) {
	sess := newFakeSession()
	m := newModel(context.Background(), sess, nil, Options{})

	batch := make([]result.File, 21)
	for i := range batch {
		batch[i] = blob(strings.Repeat("x", i+1)+".png", 1)
	}
	rep := sess.Submit(context.Background(), batch)
	m, _ = update(t, m, submittedMsg{report: rep, found: len(batch)})

	assert.Contains(t, m.View(), "Too many files! Please upload no more than 20 files at once.")
	assert.Equal(t, statusEmpty, m.st)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short.png", truncate("short.png", 20))
	assert.Equal(t, "abcd…", truncate("abcdefgh.png", 5))
}

func TestModel_WaitChangeEndsWhenSessionCloses(t *testing.T) {
	sess := newFakeSession()
	m := newModel(context.Background(), sess, nil, Options{})
	cmd := m.waitChange()

	sess.changed <- struct{}{}
	assert.Equal(t, changedMsg{}, cmd())

	close(sess.changed)
	assert.Nil(t, m.waitChange()())
}

func TestModel_EmptyDropListsAcceptedExtensions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	sess := newFakeSession()
	m := newModel(context.Background(), sess, nil, Options{})
	m, _ = update(t, m, m.submitCmd([]string{dir})())

	view := m.View()
	assert.Contains(t, view, "No image files found")
	assert.Contains(t, view, ".gif")
	assert.NotContains(t, view, ".webp")
}
