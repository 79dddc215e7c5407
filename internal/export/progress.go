package export

import "io"

// progressReader counts bytes read through it and reports the running total
// of a larger transfer every interval bytes and once its own size is reached.
type progressReader struct {
	r          io.Reader
	base       int64 // bytes already sent before this reader
	size       int64
	total      int64
	read       int64
	sinceLast  int64
	interval   int64
	onProgress func(done, total int64)
}

func newProgressReader(r io.Reader, base, size, total, interval int64, cb func(done, total int64)) *progressReader {
	return &progressReader{r: r, base: base, size: size, total: total, interval: interval, onProgress: cb}
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.read += int64(n)
		pr.sinceLast += int64(n)
		if pr.sinceLast >= pr.interval || pr.read >= pr.size {
			pr.onProgress(pr.base+pr.read, pr.total)
			pr.sinceLast = 0
		}
	}
	return n, err
}
