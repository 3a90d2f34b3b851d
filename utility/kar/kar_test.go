// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/pkg/errors"

	"github.com/devblok/vulkan3d/device"
	"github.com/devblok/vulkan3d/utility/kar"
)

var _ device.ShaderSource = (*kar.Archive)(nil)

var (
	testString1 = "idunvovkjnreovmegihjbrqlkmfrjnb"
	testString2 = "idunvovkjnreovmsdvwrvnervnreegihjbrqlkmfrjnb"
)

func build(c *qt.C, files map[string]string) []byte {
	builder := kar.NewBuilder(kar.Header{
		Author:      "devblok",
		DateCreated: time.Now().Unix(),
		Version:     1,
	})
	for name, content := range files {
		c.Assert(builder.Add(name, strings.NewReader(content)), qt.IsNil)
	}
	var buf bytes.Buffer
	written, err := builder.WriteTo(&buf)
	c.Assert(err, qt.IsNil)
	c.Assert(written, qt.Equals, int64(buf.Len()))
	return buf.Bytes()
}

func TestCreateAndReadAll(t *testing.T) {
	c := qt.New(t)
	data := build(c, map[string]string{
		"test":  testString1,
		"test2": testString2,
		"empty": "",
	})
	c.Assert(string(data[:4]), qt.Equals, "KAR\x00")

	ar, err := kar.Open(bytes.NewReader(data))
	c.Assert(err, qt.IsNil)
	c.Assert(ar.Names(), qt.DeepEquals, []string{"empty", "test", "test2"})
	c.Assert(ar.Header().Author, qt.Equals, "devblok")

	for name, want := range map[string]string{"test": testString1, "test2": testString2, "empty": ""} {
		got, err := ar.ReadAll(name)
		c.Assert(err, qt.IsNil)
		c.Assert(string(got), qt.Equals, want)
	}
}

func TestCreateAndRead(t *testing.T) {
	c := qt.New(t)
	content := strings.Repeat(testString2, 1000)
	ar, err := kar.Open(bytes.NewReader(build(c, map[string]string{"big": content})))
	c.Assert(err, qt.IsNil)

	f, err := ar.Open("big")
	c.Assert(err, qt.IsNil)
	c.Assert(f.Name(), qt.Equals, "big")
	c.Assert(f.Size(), qt.Equals, int64(len(content)))

	got, err := io.ReadAll(f)
	c.Assert(err, qt.IsNil)
	c.Assert(string(got), qt.Equals, content)
	c.Assert(ar.Header().Index[0].CompressedSize < int64(len(content)), qt.IsTrue)
}

func TestNotFound(t *testing.T) {
	c := qt.New(t)
	ar, err := kar.Open(bytes.NewReader(build(c, map[string]string{"test": testString1})))
	c.Assert(err, qt.IsNil)

	_, err = ar.ReadShader("mesh.vert.spv")
	c.Assert(errors.Cause(err), qt.Equals, kar.ErrNotFound)
	c.Assert(err, qt.ErrorMatches, "mesh.vert.spv: file not found in archive")
}

func TestOpenCorrupted(t *testing.T) {
	c := qt.New(t)
	data := build(c, map[string]string{"test": testString1})

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"magic", append([]byte("TAR\x00"), data[4:]...)},
		{"truncated header", data[:20]},
		{"huge header", headerOfLength(1 << 62)},
		{"negative header", headerOfLength(-1)},
		{"header past end", append(headerOfLength(1000), make([]byte, 16)...)},
	}
	for _, tc := range tests {
		c.Run(tc.name, func(c *qt.C) {
			_, err := kar.Open(bytes.NewReader(tc.data))
			c.Assert(errors.Cause(err), qt.Equals, kar.ErrFileFormat)

			// Without a known size the header length is still bounded.
			_, err = kar.Open(readerAtOnly{bytes.NewReader(tc.data)})
			c.Assert(errors.Cause(err), qt.Equals, kar.ErrFileFormat)
		})
	}
}

// headerOfLength is a kar prefix announcing a header of n bytes.
func headerOfLength(n int64) []byte {
	data := []byte("KAR\x00")
	return binary.LittleEndian.AppendUint64(data, uint64(n))
}

// readerAtOnly hides the size of the wrapped reader.
type readerAtOnly struct {
	r io.ReaderAt
}

func (r readerAtOnly) ReadAt(p []byte, off int64) (int, error) {
	return r.r.ReadAt(p, off)
}

func TestOpenFile(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(c.TempDir(), "shaders.kar")
	c.Assert(os.WriteFile(path, build(c, map[string]string{"mesh.vert.spv": "\x03\x02\x23\x07"}), 0o644), qt.IsNil)

	ar, err := kar.OpenFile(path)
	c.Assert(err, qt.IsNil)
	defer ar.Close()

	code, err := ar.ReadShader("mesh.vert.spv")
	c.Assert(err, qt.IsNil)
	c.Assert(code, qt.DeepEquals, []byte{0x03, 0x02, 0x23, 0x07})
}

func TestConcurrentReads(t *testing.T) {
	c := qt.New(t)
	ar, err := kar.Open(bytes.NewReader(build(c, map[string]string{
		"test":  testString1,
		"test2": testString2,
	})))
	c.Assert(err, qt.IsNil)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name, want := "test", testString1
			if i%2 == 1 {
				name, want = "test2", testString2
			}
			got, err := ar.ReadAll(name)
			if err == nil && string(got) != want {
				err = errors.Errorf("%s: got %q", name, got)
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		c.Assert(err, qt.IsNil)
	}
}

func BenchmarkReadAll(b *testing.B) {
	c := qt.New(b)
	content := strings.Repeat(testString2, 10000)
	ar, err := kar.Open(bytes.NewReader(build(c, map[string]string{"big": content})))
	c.Assert(err, qt.IsNil)

	b.ResetTimer()
	for idx := 0; idx < b.N; idx++ {
		if _, err := ar.ReadAll("big"); err != nil {
			b.Fatal(err)
		}
	}
}
