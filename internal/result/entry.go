package result

import "math"

// Status is the compression state of one entry.
type Status int

const (
	StatusInProgress Status = iota
	StatusComplete
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "in_progress"
	case StatusComplete:
		return "complete"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Entry tracks one admitted file and its compression outcome.
type Entry struct {
	FileName     string
	Original     File
	New          File // aliases Original until compression succeeds
	OriginalSize int64
	NewSize      int64 // set only when Status is StatusComplete
	PercentSaved float64
	Status       Status
	Err          error // set only when Status is StatusFailed
}

// BytesSaved is the difference between the original and the current New file.
func (e Entry) BytesSaved() int64 {
	if e.New == nil {
		return 0
	}
	return e.OriginalSize - e.New.Size()
}

// Update is the terminal message a pipeline task produces for one file.
type Update struct {
	FileName string
	File     File // compressed output; nil when Err is set
	Err      error
}

// PercentSaved returns (original-new)/original*100 rounded to two decimals.
// Empty originals report 0 and the result is always within [0, 100].
func PercentSaved(original, new int64) float64 {
	if original <= 0 {
		return 0
	}
	p := float64(original-new) / float64(original) * 100
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	return clampPercent(round2(p))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
