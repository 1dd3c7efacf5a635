package fetch

import (
	"context"
	"io"
	"path"
	"strings"

	"golang.org/x/tools/godoc/vfs"
)

// FS fetches items from a virtual filesystem. Sources are cleaned and rooted
// so they cannot escape the filesystem.
type FS struct {
	fs vfs.Opener
}

// NewFS returns a fetcher reading from fs.
func NewFS(fs vfs.Opener) *FS {
	return &FS{fs: fs}
}

// Dir returns a fetcher reading from a folder on disk.
func Dir(folder string) *FS {
	return NewFS(vfs.OS(folder))
}

func localPath(src string) string {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	return path.Clean("/" + src)
}

func (f *FS) Fetch(ctx context.Context, req Request) ([]byte, error) {
	name := localPath(req.Item.Src)
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, fileError(req.Item.Src, err)
	}
	defer file.Close()

	total := int64(-1)
	if end, err := file.Seek(0, io.SeekEnd); err == nil {
		total = end
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return nil, fileError(req.Item.Src, err)
		}
	}
	data, err := readAll(ctx, file, total, req.Progress)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fileError(req.Item.Src, err)
	}
	return data, nil
}
