// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"bytes"
	"io"
	"sort"

	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"
)

// maxHeaderSize bounds the header when the size of the reader is
// unknown. maxReadAllAlloc caps what ReadAll allocates up front.
const (
	maxHeaderSize   = 64 << 20
	maxReadAllAlloc = 4 << 20
)

// readerSize returns the total size of r when r can tell it.
func readerSize(r io.ReaderAt) (int64, bool) {
	switch sr := r.(type) {
	case interface{ Size() int64 }:
		return sr.Size(), true
	case interface{ Len() int }:
		return int64(sr.Len()), true
	}
	return 0, false
}

// Open opens the kar archived from r. It will also check
// if the file is actually a kar archive, will return an error
// when file incorrect.
func Open(r io.ReaderAt) (*Archive, error) {
	prefix := make([]byte, MagicLength+HeaderSizeNumberLength)
	if _, err := r.ReadAt(prefix, 0); err != nil {
		if err == io.EOF {
			return nil, ErrFileFormat
		}
		return nil, err
	}
	if !bytes.Equal(prefix[:MagicLength], magic[:]) {
		return nil, ErrFileFormat
	}

	headerSize, err := binaryToInt64(prefix[MagicLength:])
	if err != nil || headerSize <= 0 {
		return nil, ErrFileFormat
	}
	size, sized := readerSize(r)
	limit := int64(maxHeaderSize)
	if sized {
		limit = size - int64(len(prefix))
	}
	if headerSize > limit {
		return nil, errors.Wrapf(ErrFileFormat, "header of %d bytes", headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := r.ReadAt(headerBytes, int64(len(prefix))); err != nil {
		if err == io.EOF {
			return nil, ErrFileFormat
		}
		return nil, err
	}

	var header Header
	if err := gobDecode(&header, headerBytes); err != nil {
		return nil, errors.Wrap(ErrFileFormat, err.Error())
	}

	ar := &Archive{
		reader:  r,
		header:  header,
		base:    int64(len(prefix)) + headerSize,
		entries: make(map[string]IndexEntry, len(header.Index)),
	}
	for _, e := range header.Index {
		if e.Offset < 0 || e.Size < 0 || e.CompressedSize < 0 {
			return nil, errors.Wrapf(ErrFileFormat, "%s: negative offset or size", e.Name)
		}
		if sized && e.CompressedSize > size-ar.base-e.Offset {
			return nil, errors.Wrapf(ErrFileFormat, "%s: past the end of the archive", e.Name)
		}
		ar.entries[e.Name] = e
	}
	return ar, nil
}

// OpenFile memory maps the archive at path and opens it.
// The archive must be closed when no longer used.
func OpenFile(path string) (*Archive, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	ar, err := Open(r)
	if err != nil {
		r.Close()
		return nil, err
	}
	ar.closer = r
	return ar, nil
}

// Archive provides concurrent io for a kar file, and can provide
// an io.Reader for each file separately to perform actions on.
type Archive struct {
	reader  io.ReaderAt
	closer  io.Closer
	header  Header
	base    int64
	entries map[string]IndexEntry
}

// Header returns the archive header.
func (a *Archive) Header() Header {
	return a.header
}

// Names returns the names of all files in the archive, sorted.
func (a *Archive) Names() []string {
	names := make([]string, 0, len(a.entries))
	for name := range a.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open returns a Reader for a file in the Archive
func (a *Archive) Open(name string) (*Reader, error) {
	e, ok := a.entries[name]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	section := io.NewSectionReader(a.reader, a.base+e.Offset, e.CompressedSize)
	return &Reader{
		Reader: lz4.NewReader(section),
		entry:  e,
	}, nil
}

// ReadAll returns the entire contents of a file with a given name
func (a *Archive) ReadAll(name string) ([]byte, error) {
	r, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(make([]byte, 0, min(r.Size(), maxReadAllAlloc)))
	if _, err := io.Copy(buf, io.LimitReader(r, r.Size())); err != nil {
		return nil, errors.Wrapf(err, "decompress %s", name)
	}
	if int64(buf.Len()) != r.Size() {
		return nil, errors.Wrapf(ErrFileFormat, "%s: %d of %d bytes", name, buf.Len(), r.Size())
	}
	return buf.Bytes(), nil
}

// ReadShader reads a compiled shader, so an archive can be used as a
// shader source.
func (a *Archive) ReadShader(name string) ([]byte, error) {
	return a.ReadAll(name)
}

// Close releases the memory mapping of an archive opened with OpenFile.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// Reader is a reader for a single file in an Archive.
// Abstracts away the location that needs to be known.
// Read returns already decompressed data.
type Reader struct {
	io.Reader

	entry IndexEntry
}

// Name returns the name of the file.
func (r *Reader) Name() string {
	return r.entry.Name
}

// Size returns the decompressed size of the file.
func (r *Reader) Size() int64 {
	return r.entry.Size
}
