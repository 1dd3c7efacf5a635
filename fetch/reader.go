package fetch

import (
	"bytes"
	"context"
	"io"
	"sync"
)

const chunkSize = 32 * 1024

var chunks = sync.Pool{
	New: func() any {
		buf := make([]byte, chunkSize)
		return &buf
	},
}

// readAll reads r to the end in fixed chunks, reporting progress after each
// one. It stops early when ctx is done.
func readAll(ctx context.Context, r io.Reader, total int64, progress func(loaded, total int64)) ([]byte, error) {
	bufp := chunks.Get().(*[]byte)
	defer chunks.Put(bufp)
	buf := *bufp

	var out bytes.Buffer
	if total > 0 {
		out.Grow(int(total))
	}
	var loaded int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := r.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
			loaded += int64(n)
			if progress != nil {
				progress(loaded, total)
			}
		}
		if err == io.EOF {
			return out.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}
