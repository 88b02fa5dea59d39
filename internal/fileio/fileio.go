// Package fileio opens track inputs, decompressing gzip transparently.
package fileio

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

var gzipMagic = []byte{0x1f, 0x8b}

// File is an opened input. Close releases the decompressor and the file.
type File struct {
	io.Reader
	Name    string
	closers []io.Closer
}

// Close closes the decompressor, then the underlying file.
func (f *File) Close() error {
	var first error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open opens path for reading. Gzip content is detected by its magic bytes,
// not the file extension.
func Open(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	f, err := Wrap(path, fh)
	if err != nil {
		_ = fh.Close()
		return nil, err
	}
	f.closers = append(f.closers, fh)
	return f, nil
}

// Wrap decompresses r if it holds gzip data. The caller keeps ownership of r.
func Wrap(name string, r io.Reader) (*File, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if !bytes.Equal(head, gzipMagic) {
		return &File{Reader: br, Name: name}, nil
	}
	zr, err := gzip.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("gunzip %s: %w", name, err)
	}
	return &File{Reader: zr, Name: name, closers: []io.Closer{zr}}, nil
}
