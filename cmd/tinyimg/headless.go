package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"github.com/zeebo/blake3"

	"tinyimg/internal/intake"
	"tinyimg/internal/logctx"
	"tinyimg/internal/result"
	"tinyimg/internal/session"
	"tinyimg/pkg/utils"
)

type fileReport struct {
	File         string  `json:"file"`
	Status       string  `json:"status"`
	OriginalSize int64   `json:"originalSize"`
	NewSize      int64   `json:"newSize"`
	PercentSaved float64 `json:"percentSaved"`
	SavedTo      string  `json:"savedTo,omitempty"`
	Blake3       string  `json:"blake3,omitempty"`
	Error        string  `json:"error,omitempty"`
}

type report struct {
	Session          string       `json:"session"`
	Files            []fileReport `json:"files"`
	Skipped          []string     `json:"skipped,omitempty"`
	Rejected         []string     `json:"rejected,omitempty"`
	OriginalBytes    int64        `json:"originalBytes"`
	NewBytes         int64        `json:"newBytes"`
	BytesSaved       int64        `json:"bytesSaved"`
	PercentSaved     float64      `json:"percentSaved"`
	AggregatePercent float64      `json:"aggregatePercent"`
	Archive          string       `json:"archive,omitempty"`
	Dropbox          string       `json:"dropbox,omitempty"`
	Duration         string       `json:"duration"`
}

func runHeadless(ctx context.Context, sess *session.Session, paths []string, collect intake.CollectOptions, f flags) error {
	log := logctx.LoggerFromContext(ctx)
	start := time.Now()

	files, collectErr := intake.Collect(ctx, paths, collect)
	if collectErr != nil {
		fmt.Fprintf(os.Stderr, "some paths could not be read: %v\n", collectErr)
	}
	if len(files) == 0 {
		return errors.New("no images to compress")
	}

	progress := mpb.NewWithContext(ctx,
		mpb.WithOutput(os.Stderr),
		mpb.WithWidth(60),
		mpb.WithRefreshRate(100*time.Millisecond),
	)
	bar := progress.AddBar(int64(len(files)),
		mpb.PrependDecorators(
			decor.Name("Compressing", decor.WC{C: decor.DindentRight | decor.DextraSpace}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
		),
	)
	sess.OnSettled(func(result.Entry) { bar.Increment() })

	rep := sess.Submit(ctx, files)
	if len(rep.Admitted) == 0 {
		bar.Abort(true)
		progress.Wait()
		for _, d := range rep.Diagnostics() {
			fmt.Fprintln(os.Stderr, d)
		}
		if rep.Err != nil {
			return rep.Err
		}
		return errors.New("nothing was admitted")
	}
	bar.SetTotal(int64(len(rep.Admitted)), false)
	sess.Wait()
	bar.SetTotal(-1, true)
	progress.Wait()
	for _, d := range rep.Diagnostics() {
		fmt.Fprintln(os.Stderr, d)
	}

	out := report{Session: sess.ID.String(), Skipped: rep.Skipped}
	for _, r := range rep.Rejected {
		out.Rejected = append(out.Rejected, r.FileName)
	}

	entries := sess.Entries()
	failed := 0
	for _, e := range entries {
		fr := fileReport{
			File:         e.FileName,
			Status:       e.Status.String(),
			OriginalSize: e.OriginalSize,
			NewSize:      e.New.Size(),
			PercentSaved: e.PercentSaved,
		}
		if e.Status == result.StatusFailed {
			failed++
			fr.Error = e.Err.Error()
		} else {
			p, err := sess.SaveEntry(e.FileName)
			if err != nil {
				return err
			}
			fr.SavedTo = p
			if fr.Blake3, err = digest(e.New); err != nil {
				return err
			}
		}
		out.Files = append(out.Files, fr)
	}

	totals := sess.Totals()
	out.OriginalBytes = totals.OriginalBytes
	out.NewBytes = totals.NewBytes
	out.BytesSaved = totals.BytesSaved
	out.PercentSaved = totals.PercentSaved
	out.AggregatePercent = totals.AggregatePercent()

	if f.zip {
		p, err := sess.SaveArchive()
		if err != nil {
			return err
		}
		out.Archive = p
	}
	if f.dropbox {
		if err := sess.SaveToCloud(ctx); err != nil {
			out.Dropbox = "failed: " + err.Error()
		} else {
			out.Dropbox = "saved"
		}
	}
	out.Duration = time.Since(start).Round(time.Millisecond).String()
	log.Info("batch finished",
		"files", len(entries),
		"failed", failed,
		"saved", humanize.Bytes(uint64(max(totals.BytesSaved, 0))))

	if f.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("failed to write json: %w", err)
		}
	} else {
		printTable(os.Stdout, out)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to compress", failed, len(entries))
	}
	return nil
}

func printTable(w io.Writer, r report) {
	fmt.Fprintf(w, "tinyimg\nsession: %s\nfiles: %d\n", r.Session, len(r.Files))
	fmt.Fprintln(w, "----------------------------------------------")
	for _, f := range r.Files {
		if f.Error != "" {
			fmt.Fprintf(w, "%s\t%s\tFailed (%s)\n", f.File, utils.FileSizeString(f.OriginalSize), f.Error)
			continue
		}
		fmt.Fprintf(w, "%s\t%s -> %s\t%s\t%s\n", f.File,
			utils.FileSizeString(f.OriginalSize), utils.FileSizeString(f.NewSize),
			utils.PercentString(f.PercentSaved), f.SavedTo)
	}
	fmt.Fprintln(w, "----------------------------------------------")
	fmt.Fprintf(w, "We just saved you %.2f%% %s total\n", r.PercentSaved, utils.FileSizeString(r.BytesSaved))
	if r.Archive != "" {
		fmt.Fprintf(w, "Archive: %s\n", r.Archive)
	}
	if r.Dropbox != "" {
		fmt.Fprintf(w, "Dropbox: %s\n", r.Dropbox)
	}
	fmt.Fprintf(w, "Duration: %s\n", r.Duration)
}

func digest(f result.File) (string, error) {
	data, err := result.ReadAll(f)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
