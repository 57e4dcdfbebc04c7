package fsdb

import "fmt"

// MaxFileSize is the largest blob a file may hold. A blob is stored as a
// single value, which has to fit in one badger value log file.
const MaxFileSize = 1 << 29

// Content returns the whole blob stored for p.
func (tx *Tx) Content(p string) ([]byte, error) {
	return tx.get(contentKey(p))
}

// ReadContent returns up to n bytes of p starting at off. Reading at or
// past the end of the blob returns no bytes and no error.
func (tx *Tx) ReadContent(p string, off int64, n int) ([]byte, error) {
	if off < 0 || n < 0 {
		return nil, fmt.Errorf("%w: read at %d of %d bytes", ErrInvalidArgument, off, n)
	}
	data, err := tx.Content(p)
	if err != nil {
		return nil, err
	}
	if off >= int64(len(data)) {
		return []byte{}, nil
	}
	if rest := int64(len(data)) - off; int64(n) > rest {
		n = int(rest)
	}
	return data[off : off+int64(n)], nil
}

// WriteContent writes data into p at off and returns the number of bytes
// written and the resulting blob length. Bytes before off are preserved
// and any hole between the old end of file and off reads as zeros.
func (tx *Tx) WriteContent(p string, off int64, data []byte) (int, uint64, error) {
	if off < 0 {
		return 0, 0, fmt.Errorf("%w: write at offset %d", ErrInvalidArgument, off)
	}
	if int64(len(data)) > MaxFileSize || off > MaxFileSize-int64(len(data)) {
		return 0, 0, fmt.Errorf("%w: write of %d bytes at offset %d", ErrFileTooLarge, len(data), off)
	}
	old, err := tx.Content(p)
	if err != nil {
		return 0, 0, err
	}

	size := int64(len(old))
	if end := off + int64(len(data)); end > size {
		size = end
	}
	next := make([]byte, size)
	copy(next, old)
	copy(next[off:], data)

	if err := tx.PutContent(p, next); err != nil {
		return 0, 0, err
	}
	return len(data), uint64(size), nil
}

// Truncate shrinks or zero-extends p to size bytes.
func (tx *Tx) Truncate(p string, size uint64) error {
	if size > MaxFileSize {
		return fmt.Errorf("%w: truncate to %d bytes", ErrFileTooLarge, size)
	}
	old, err := tx.Content(p)
	if err != nil {
		return err
	}
	next := make([]byte, size)
	copy(next, old)
	return tx.PutContent(p, next)
}

// PutContent replaces the blob of p.
func (tx *Tx) PutContent(p string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	return tx.put(contentKey(p), data)
}

// DeleteContent removes the blob of p.
func (tx *Tx) DeleteContent(p string) error {
	return tx.del(contentKey(p))
}
