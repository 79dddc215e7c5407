package intake

import "fmt"

// BatchTooLargeError rejects a whole batch; nothing from it is admitted.
type BatchTooLargeError struct {
	Count int
	Max   int
}

func (e *BatchTooLargeError) Error() string {
	return fmt.Sprintf("too many files: %d submitted, at most %d allowed at once", e.Count, e.Max)
}

// FileTooLargeError rejects a single file; the rest of the batch continues.
type FileTooLargeError struct {
	FileName string
	Size     int64
	Max      int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file too large: %s is %d bytes, limit is %d", e.FileName, e.Size, e.Max)
}
