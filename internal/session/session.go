package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"tinyimg/internal/compressor"
	"tinyimg/internal/config"
	"tinyimg/internal/export"
	"tinyimg/internal/intake"
	"tinyimg/internal/logctx"
	"tinyimg/internal/pipeline"
	"tinyimg/internal/result"
)

var (
	// ErrNotReady is returned by bulk exports while any entry is still compressing.
	ErrNotReady = errors.New("compression still in progress")

	ErrEntryPending  = errors.New("entry is still compressing")
	ErrCloudDisabled = errors.New("no cloud saver configured")
	ErrClosed        = errors.New("session closed")
)

// Session ties intake, the compression pipeline and the result store
// together. Pipeline results reach the store only through a single applier
// goroutine; readers take snapshots.
type Session struct {
	ID uuid.UUID

	cfg   *config.Config
	comp  compressor.Compressor
	cloud export.CloudSaver
	store *result.Store
	log   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	updates chan result.Update
	changed chan struct{}
	applied chan struct{}

	mu        sync.Mutex
	settle    *sync.Cond
	closed    bool
	pending   int // admitted files not yet applied
	onSettled func(result.Entry)
	runners   sync.WaitGroup
	closeOnce sync.Once
}

// New starts a session. cloud may be nil, in which case SaveToCloud fails
// with ErrCloudDisabled.
func New(ctx context.Context, cfg *config.Config, c compressor.Compressor, cloud export.CloudSaver) *Session {
	if ctx == nil {
		ctx = context.Background()
	}
	id := uuid.New()
	log := logctx.LoggerFromContext(ctx).With("session", id.String())
	ctx, cancel := context.WithCancel(logctx.WithLogger(ctx, log))

	s := &Session{
		ID:      id,
		cfg:     cfg,
		comp:    c,
		cloud:   cloud,
		store:   result.NewStore(),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		updates: make(chan result.Update, 64),
		changed: make(chan struct{}, 1),
		applied: make(chan struct{}),
	}
	s.settle = sync.NewCond(&s.mu)
	go s.apply()
	return s
}

func (s *Session) apply() {
	defer close(s.applied)
	for u := range s.updates {
		e, err := s.store.Apply(u)
		if err != nil {
			s.log.Error("dropping update", "file", u.FileName, "err", err)
			s.release()
			continue
		}
		if e.Status == result.StatusFailed {
			s.log.Warn("compression failed", "file", e.FileName, "err", e.Err)
		} else {
			s.log.Info("compressed",
				"file", e.FileName,
				"from", humanize.Bytes(uint64(e.OriginalSize)),
				"to", humanize.Bytes(uint64(e.NewSize)),
				"saved", e.PercentSaved)
		}
		s.mu.Lock()
		hook := s.onSettled
		s.mu.Unlock()
		if hook != nil {
			hook(e)
		}
		s.notify()
		s.release()
	}
}

func (s *Session) release() {
	s.mu.Lock()
	s.pending--
	if s.pending == 0 {
		s.settle.Broadcast()
	}
	s.mu.Unlock()
}

func (s *Session) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// Changed fires after the store changes. Signals coalesce: one receive may
// stand for several changes, so readers should re-read a snapshot. The
// channel is closed by Close.
func (s *Session) Changed() <-chan struct{} {
	return s.changed
}

// OnSettled registers fn to be called from the applier with each entry as it
// leaves InProgress. fn must not block.
func (s *Session) OnSettled(fn func(result.Entry)) {
	s.mu.Lock()
	s.onSettled = fn
	s.mu.Unlock()
}

func (s *Session) Limits() intake.Limits {
	return intake.Limits{MaxFiles: s.cfg.MaxFiles, MaxFileSize: s.cfg.MaxFileSize}
}

// Submit admits a batch and starts compressing what was admitted. Every
// admitted file is in the store as InProgress when Submit returns.
func (s *Session) Submit(ctx context.Context, batch []result.File) intake.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return intake.Report{Err: ErrClosed}
	}

	rep := intake.Admit(s.store, batch, s.Limits())
	for _, d := range rep.Diagnostics() {
		s.log.Warn("batch diagnostic", "msg", d)
	}
	if len(rep.Admitted) == 0 {
		return rep
	}
	s.log.Info("batch admitted", "admitted", len(rep.Admitted), "skipped", len(rep.Skipped), "rejected", len(rep.Rejected))
	s.notify()

	if ctx == nil {
		ctx = s.ctx
	}
	runCtx, stop := context.WithCancel(s.ctx)
	files := rep.Admitted
	opts := pipeline.Options{Concurrency: s.cfg.Concurrency, Timeout: s.cfg.CompressTimeout}
	s.pending += len(files)
	s.runners.Add(1)
	go func() {
		defer s.runners.Done()
		defer stop()
		// the caller's context cancels this batch only, never the session
		detach := context.AfterFunc(ctx, stop)
		defer detach()
		pipeline.Run(runCtx, s.comp, files, opts, s.updates)
	}()
	return rep
}

// Wait blocks until every admitted file has been settled in the store.
func (s *Session) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.pending > 0 {
		s.settle.Wait()
	}
}

// Close cancels outstanding compressions, waits for their failure updates to
// be applied and stops the applier. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.cancel()
		s.runners.Wait()
		close(s.updates)
		<-s.applied
		close(s.changed)
	})
}

func (s *Session) Entries() []result.Entry { return s.store.Entries() }
func (s *Session) AllDone() bool           { return s.store.AllDone() }
func (s *Session) Totals() result.Totals   { return result.Summarize(s.store.Entries()) }

func (s *Session) Entry(name string) (result.Entry, bool) {
	return s.store.Entry(name)
}

// settled returns a snapshot only if every entry in it is terminal.
func (s *Session) settled() ([]result.Entry, error) {
	entries := s.store.Entries()
	if !result.Summarize(entries).Done() {
		return nil, ErrNotReady
	}
	return entries, nil
}

// WriteArchive writes the zip of every entry's current file to w.
func (s *Session) WriteArchive(w io.Writer) error {
	entries, err := s.settled()
	if err != nil {
		return err
	}
	return export.WriteArchive(w, entries)
}

// SaveArchive writes the archive into the output directory and returns its path.
func (s *Session) SaveArchive() (string, error) {
	entries, err := s.settled()
	if err != nil {
		return "", err
	}
	p, err := export.SaveAs(s.cfg.OutputDir, s.archiveName(), func(w io.Writer) error {
		return export.WriteArchive(w, entries)
	})
	if err != nil {
		return "", fmt.Errorf("save archive: %w", err)
	}
	s.log.Info("archive saved", "path", p, "entries", len(entries))
	return p, nil
}

func (s *Session) archiveName() string {
	if s.cfg.ArchiveName != "" {
		return s.cfg.ArchiveName
	}
	return export.ArchiveName
}

// SaveEntry saves one settled entry's current file into the output directory.
func (s *Session) SaveEntry(name string) (string, error) {
	e, ok := s.store.Entry(name)
	if !ok {
		return "", fmt.Errorf("%s: %w", name, result.ErrUnknownEntry)
	}
	if !e.Status.Terminal() {
		return "", fmt.Errorf("%s: %w", name, ErrEntryPending)
	}
	p, err := export.SaveFile(s.cfg.OutputDir, e.New)
	if err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	s.log.Info("file saved", "file", name, "path", p)
	return p, nil
}

// SaveToCloud hands every entry's current file to the cloud saver. The
// outcome callbacks only log.
func (s *Session) SaveToCloud(ctx context.Context) error {
	if s.cloud == nil {
		return ErrCloudDisabled
	}
	entries, err := s.settled()
	if err != nil {
		return err
	}
	files, err := export.CloudFiles(entries)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = s.ctx
	}
	total := result.Summarize(entries).NewBytes
	cb := export.Callbacks{
		Success: func() {
			s.log.Info("cloud save succeeded", "files", len(files), "bytes", humanize.Bytes(uint64(total)))
		},
		Progress: func(f float64) {
			s.log.Debug("cloud save progress", "fraction", f)
		},
		Error: func(err error) {
			s.log.Error("cloud save failed", "err", err)
		},
	}
	return s.cloud.Save(logctx.WithLogger(ctx, s.log), files, cb)
}
