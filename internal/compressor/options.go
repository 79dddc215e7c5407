package compressor

const (
	DefaultMaxSizeBytes     = 4 * 1024 * 1024
	DefaultMaxWidthOrHeight = 1920
	DefaultMaxIteration     = 10
	DefaultInitialQuality   = 0.3
)

// Options configures the compression routine.
type Options struct {
	// Target upper bound for the output, in bytes.
	MaxSizeBytes int64

	// Longest side of the output, in pixels.
	MaxWidthOrHeight int

	// Cap on encode attempts in the quality search.
	MaxIteration int

	// Quality of the first attempt, in (0, 1]. Only lossy formats use it.
	InitialQuality float64

	// NormalizeOrientation rotates pixels according to the EXIF orientation
	// tag; the re-encoded output carries no tag, i.e. orientation 1.
	NormalizeOrientation bool
}

func DefaultOptions() Options {
	return Options{
		MaxSizeBytes:         DefaultMaxSizeBytes,
		MaxWidthOrHeight:     DefaultMaxWidthOrHeight,
		MaxIteration:         DefaultMaxIteration,
		InitialQuality:       DefaultInitialQuality,
		NormalizeOrientation: true,
	}
}

// Validate fills zero values with defaults and rejects out-of-range ones.
func (o *Options) Validate() error {
	if o.MaxSizeBytes == 0 {
		o.MaxSizeBytes = DefaultMaxSizeBytes
	}
	if o.MaxWidthOrHeight == 0 {
		o.MaxWidthOrHeight = DefaultMaxWidthOrHeight
	}
	if o.MaxIteration == 0 {
		o.MaxIteration = DefaultMaxIteration
	}
	if o.InitialQuality == 0 {
		o.InitialQuality = DefaultInitialQuality
	}

	if o.MaxSizeBytes < 0 {
		return ErrInvalidMaxSize
	}
	if o.MaxWidthOrHeight < 0 {
		return ErrInvalidDimension
	}
	if o.MaxIteration < 0 {
		return ErrInvalidIteration
	}
	if o.InitialQuality < 0 || o.InitialQuality > 1 {
		return ErrInvalidQuality
	}
	return nil
}
