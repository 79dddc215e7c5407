package utils

import "fmt"

const (
	KB = 1024
	MB = KB * 1024
)

// FileSizeString formats a byte count the way the result list shows it:
// one decimal, KB up to 1024 KB and MB above.
func FileSizeString(b int64) string {
	kb := float64(b) / KB
	if kb > 1024 {
		return fmt.Sprintf("%.1f MB", kb/1024)
	}
	return fmt.Sprintf("%.1f KB", kb)
}

// LimitString formats a configured size cap, e.g. 4194304 -> "4 MB".
func LimitString(b int64) string {
	if b > 0 && b%MB == 0 {
		return fmt.Sprintf("%d MB", b/MB)
	}
	return FileSizeString(b)
}

// PercentString formats a saving as the list shows it, e.g. "-53.33%".
func PercentString(p float64) string {
	return fmt.Sprintf("-%.2f%%", p)
}
