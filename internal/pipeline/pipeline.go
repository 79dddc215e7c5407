package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tinyimg/internal/compressor"
	"tinyimg/internal/logctx"
	"tinyimg/internal/result"
)

// ErrPanicked wraps a panic recovered from the compression routine.
var ErrPanicked = errors.New("compressor panicked")

type Options struct {
	Concurrency int           // defaults to runtime.NumCPU()
	Timeout     time.Duration // per file; 0 means no limit
}

type Summary struct {
	Completed int
	Failed    int
}

// Run compresses files concurrently and sends exactly one terminal Update per
// file on updates, in completion order. Errors, panics, timeouts and
// cancellation all become failure updates. Run returns once every update has
// been sent; it never closes updates.
func Run(ctx context.Context, c compressor.Compressor, files []result.File, opts Options, updates chan<- result.Update) Summary {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = runtime.NumCPU()
	}
	log := logctx.LoggerFromContext(ctx)

	var mu sync.Mutex
	var sum Summary
	send := func(u result.Update) {
		mu.Lock()
		if u.Err != nil {
			sum.Failed++
		} else {
			sum.Completed++
		}
		mu.Unlock()
		updates <- u
	}

	// Tasks never return an error so one failure cannot cancel its siblings.
	var g errgroup.Group
	g.SetLimit(opts.Concurrency)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			send(result.Update{FileName: f.Name(), Err: err})
			continue
		}
		f := f
		g.Go(func() error {
			u := compressOne(ctx, c, f, opts.Timeout)
			if u.Err != nil {
				log.Debug("compression failed", "file", u.FileName, "err", u.Err)
			} else {
				log.Debug("compression finished", "file", u.FileName, "size", u.File.Size())
			}
			send(u)
			return nil
		})
	}
	_ = g.Wait()
	return sum
}

func compressOne(ctx context.Context, c compressor.Compressor, f result.File, timeout time.Duration) (u result.Update) {
	u.FileName = f.Name()
	if err := ctx.Err(); err != nil {
		u.Err = err
		return u
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		file result.File
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: %v", ErrPanicked, r)}
			}
		}()
		out, err := c.Compress(ctx, f)
		done <- outcome{file: out, err: err}
	}()

	select {
	case o := <-done:
		u.File, u.Err = o.file, o.err
		if u.Err == nil && u.File == nil {
			u.Err = result.ErrNoOutput
		}
		if u.Err != nil {
			u.File = nil
		}
	case <-ctx.Done():
		u.Err = ctx.Err()
	}
	return u
}
