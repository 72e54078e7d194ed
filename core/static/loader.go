package static

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/searchktools/fast-static/core/pools"
)

// maxEmptyReads bounds consecutive (0, nil) reads before giving up
const maxEmptyReads = 100

// FileContent is a whole file held in a pooled buffer. It is owned by one
// request flow and must be released exactly once.
type FileContent struct {
	Data []byte
	pool *pools.BytePool
}

// Len returns the exact number of content bytes
func (c *FileContent) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Data)
}

// Release hands the buffer back to its pool. Later calls are no-ops.
func (c *FileContent) Release() {
	if c == nil || c.Data == nil {
		return
	}
	c.pool.Put(c.Data)
	c.Data = nil
}

// Loader reads files under a root into pooled buffers
type Loader struct {
	root  *os.Root
	bytes *pools.BytePool
}

// NewLoader creates a loader. Opening through root keeps symlinks from
// reaching outside the document root.
func NewLoader(root *os.Root, bytes *pools.BytePool) *Loader {
	return &Loader{
		root:  root,
		bytes: bytes,
	}
}

// Load reads the named file completely. The buffer is sized from stat and
// filled until that many bytes arrive; a file that ends early fails with
// ErrTruncated instead of yielding a short body.
func (l *Loader) Load(name string) (*FileContent, error) {
	f, err := l.root.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("%w: open %s: %w", ErrIO, name, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", ErrIO, name, err)
	}
	if !st.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrNotFound, name)
	}

	size := int(st.Size())
	buf := l.bytes.Get(size)

	read, err := readFull(f, buf)
	if err != nil {
		l.bytes.Put(buf)
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, name, err)
	}
	if read < size {
		l.bytes.Put(buf)
		return nil, fmt.Errorf("%w: %s: got %d of %d bytes", ErrTruncated, name, read, size)
	}

	return &FileContent{Data: buf, pool: l.bytes}, nil
}

// readFull reads into buf until it is full or the reader hits EOF.
// Short reads are retried; only a hard error is returned.
func readFull(r io.Reader, buf []byte) (int, error) {
	total := 0
	empty := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			empty++
			if empty >= maxEmptyReads {
				return total, io.ErrNoProgress
			}
			continue
		}
		empty = 0
	}
	return total, nil
}
