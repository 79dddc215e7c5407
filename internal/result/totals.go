package result

// Totals aggregates a set of entries.
type Totals struct {
	Entries    int
	InProgress int
	Completed  int
	Failed     int

	OriginalBytes int64
	NewBytes      int64
	BytesSaved    int64

	// PercentSaved is the sum of the per-entry percentages, rounded to two
	// decimals. It is not a ratio of bytes; see AggregatePercent for that.
	PercentSaved float64
}

// Summarize folds entries into Totals. New sizes are taken from each entry's
// current New file, so failed entries contribute zero saved bytes.
func Summarize(entries []Entry) Totals {
	var t Totals
	var pct float64
	for _, e := range entries {
		t.Entries++
		switch e.Status {
		case StatusInProgress:
			t.InProgress++
		case StatusComplete:
			t.Completed++
		case StatusFailed:
			t.Failed++
		}
		t.OriginalBytes += e.OriginalSize
		if e.New != nil {
			t.NewBytes += e.New.Size()
		}
		t.BytesSaved += e.BytesSaved()
		pct += e.PercentSaved
	}
	t.PercentSaved = round2(pct)
	return t
}

// AggregatePercent is BytesSaved over OriginalBytes, as a percentage.
func (t Totals) AggregatePercent() float64 {
	return PercentSaved(t.OriginalBytes, t.NewBytes)
}

// Done reports whether every entry settled.
func (t Totals) Done() bool {
	return t.Entries > 0 && t.InProgress == 0
}
