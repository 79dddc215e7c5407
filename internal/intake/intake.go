package intake

import (
	"errors"
	"fmt"

	"tinyimg/internal/result"
	"tinyimg/pkg/utils"
)

const (
	DefaultMaxFiles    = 20
	DefaultMaxFileSize = 4 * 1024 * 1024
)

// Limits bounds a single batch.
type Limits struct {
	MaxFiles    int
	MaxFileSize int64
}

func DefaultLimits() Limits {
	return Limits{MaxFiles: DefaultMaxFiles, MaxFileSize: DefaultMaxFileSize}
}

func (l Limits) withDefaults() Limits {
	if l.MaxFiles <= 0 {
		l.MaxFiles = DefaultMaxFiles
	}
	if l.MaxFileSize <= 0 {
		l.MaxFileSize = DefaultMaxFileSize
	}
	return l
}

// Registry is the part of the result store intake writes to.
type Registry interface {
	Has(name string) bool
	Append(f result.File) (result.Entry, error)
}

// Report describes what happened to each file of a batch.
type Report struct {
	Admitted []result.File
	Skipped  []string             // names already tracked
	Rejected []*FileTooLargeError // files over the size cap
	Err      error                // *BatchTooLargeError when the whole batch was refused
}

// Admit validates batch against lim and appends every admissible file to
// reg, in batch order, before returning.
func Admit(reg Registry, batch []result.File, lim Limits) Report {
	lim = lim.withDefaults()
	var rep Report
	if len(batch) > lim.MaxFiles {
		rep.Err = &BatchTooLargeError{Count: len(batch), Max: lim.MaxFiles}
		return rep
	}
	for _, f := range batch {
		name := f.Name()
		if reg.Has(name) {
			rep.Skipped = append(rep.Skipped, name)
			continue
		}
		if f.Size() > lim.MaxFileSize {
			rep.Rejected = append(rep.Rejected, &FileTooLargeError{FileName: name, Size: f.Size(), Max: lim.MaxFileSize})
			continue
		}
		// The store only refuses duplicates, which intake treats as already handled.
		if _, err := reg.Append(f); err != nil {
			rep.Skipped = append(rep.Skipped, name)
			continue
		}
		rep.Admitted = append(rep.Admitted, f)
	}
	return rep
}

// Diagnostics returns the user-facing notices for the batch. Skipped
// duplicates are intentionally silent.
func (r Report) Diagnostics() []string {
	var out []string
	var tooMany *BatchTooLargeError
	if errors.As(r.Err, &tooMany) {
		out = append(out, fmt.Sprintf("Too many files! Please upload no more than %d files at once.", tooMany.Max))
		return out
	}
	for _, e := range r.Rejected {
		out = append(out, fmt.Sprintf("File over %s: %s", utils.LimitString(e.Max), e.FileName))
	}
	return out
}
