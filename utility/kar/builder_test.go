// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"bytes"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/pkg/errors"
)

func TestAddAndWrite(t *testing.T) {
	c := qt.New(t)
	builder := NewBuilder(Header{
		Author:      "devblok",
		DateCreated: time.Now().Unix(),
		Version:     1,
		Index:       []IndexEntry{{Name: "stale"}},
	})

	c.Assert(builder.Add("test", strings.NewReader("idunvovkjnreovmegihjbrqlkmfrjnb")), qt.IsNil)
	c.Assert(builder.Add("test2", strings.NewReader("idunvovkjnreovmsdvwrvnervnreegihjbrqlkmfrjnb")), qt.IsNil)
	c.Assert(builder.Add("test", strings.NewReader("again")), qt.ErrorMatches, "test added twice")
	c.Assert(builder.Len(), qt.Equals, 2)

	var buf bytes.Buffer
	_, err := builder.WriteTo(&buf)
	c.Assert(err, qt.IsNil)

	raw := buf.Bytes()
	size, err := binaryToInt64(raw[MagicLength:])
	c.Assert(err, qt.IsNil)

	var header Header
	c.Assert(gobDecode(&header, raw[MagicLength+HeaderSizeNumberLength:][:size]), qt.IsNil)
	c.Assert(header.Index, qt.HasLen, 2)
	c.Assert(header.Index[0].Offset, qt.Equals, int64(0))
	c.Assert(header.Index[1].Offset, qt.Equals, header.Index[0].CompressedSize)
	c.Assert(header.Index[1].Size, qt.Equals, int64(44))

	payload := int64(len(raw)) - MagicLength - HeaderSizeNumberLength - size
	c.Assert(payload, qt.Equals, header.Index[0].CompressedSize+header.Index[1].CompressedSize)
}

func TestHeaderSizeEncoding(t *testing.T) {
	c := qt.New(t)
	for _, n := range []int64{0, 1, 255, 1 << 40} {
		got, err := binaryToInt64(int64ToBinary(n))
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.Equals, n)
	}
	_, err := binaryToInt64([]byte{1, 2})
	c.Assert(err, qt.Equals, ErrFileFormat)
}

// rewriteHeader rebuilds an archive written by a Builder with its
// header changed by edit.
func rewriteHeader(c *qt.C, raw []byte, edit func(*Header)) []byte {
	size, err := binaryToInt64(raw[MagicLength:])
	c.Assert(err, qt.IsNil)
	start := int64(MagicLength + HeaderSizeNumberLength)

	var header Header
	c.Assert(gobDecode(&header, raw[start:start+size]), qt.IsNil)
	edit(&header)
	encoded, err := gobEncode(header)
	c.Assert(err, qt.IsNil)

	out := append([]byte{}, magic[:]...)
	out = append(out, int64ToBinary(int64(len(encoded)))...)
	out = append(out, encoded...)
	return append(out, raw[start+size:]...)
}

func TestOpenRejectsBadEntries(t *testing.T) {
	c := qt.New(t)
	builder := NewBuilder(Header{Author: "devblok", Version: 1})
	c.Assert(builder.Add("test", strings.NewReader("idunvovkjnreovmegihjbrqlkmfrjnb")), qt.IsNil)
	var buf bytes.Buffer
	_, err := builder.WriteTo(&buf)
	c.Assert(err, qt.IsNil)

	tests := []struct {
		name string
		edit func(*IndexEntry)
		err  string
	}{{
		name: "negative size",
		edit: func(e *IndexEntry) { e.Size = -1 },
		err:  "test: negative offset or size: corrupted or not a kar archive",
	}, {
		name: "negative offset",
		edit: func(e *IndexEntry) { e.Offset = -8 },
		err:  "test: negative offset or size: corrupted or not a kar archive",
	}, {
		name: "compressed size past end",
		edit: func(e *IndexEntry) { e.CompressedSize = 1 << 62 },
		err:  "test: past the end of the archive: corrupted or not a kar archive",
	}, {
		name: "offset past end",
		edit: func(e *IndexEntry) { e.Offset = 1 << 40 },
		err:  "test: past the end of the archive: corrupted or not a kar archive",
	}}
	for _, tc := range tests {
		c.Run(tc.name, func(c *qt.C) {
			raw := rewriteHeader(c, buf.Bytes(), func(h *Header) { tc.edit(&h.Index[0]) })
			_, err := Open(bytes.NewReader(raw))
			c.Assert(err, qt.ErrorMatches, tc.err)
		})
	}
}

func TestReadAllOversizedEntry(t *testing.T) {
	c := qt.New(t)
	builder := NewBuilder(Header{Author: "devblok", Version: 1})
	c.Assert(builder.Add("test", strings.NewReader("idunvovkjnreovmegihjbrqlkmfrjnb")), qt.IsNil)
	var buf bytes.Buffer
	_, err := builder.WriteTo(&buf)
	c.Assert(err, qt.IsNil)

	raw := rewriteHeader(c, buf.Bytes(), func(h *Header) { h.Index[0].Size = 1 << 62 })
	ar, err := Open(bytes.NewReader(raw))
	c.Assert(err, qt.IsNil)
	_, err = ar.ReadAll("test")
	c.Assert(errors.Cause(err), qt.Equals, ErrFileFormat)
	c.Assert(err, qt.ErrorMatches, "test: 31 of 4611686018427387904 bytes: corrupted or not a kar archive")
}
