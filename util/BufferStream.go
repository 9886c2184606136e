/*
Copyright 2011-2017 Frederic Langlet
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
you may obtain a copy of the License at

                http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package util

import (
	"io"

	"github.com/pkg/errors"
)

var errStreamClosed = errors.New("stream closed")

// BufferStream is a closable read/write stream of bytes backed by a slice.
// Bitstreams use it as an in-memory sink and source.
type BufferStream struct {
	buf    []byte
	off    int
	closed bool
}

// NewBufferStream creates a new instance of BufferStream backed by the
// provided byte slice.
func NewBufferStream(buf []byte) *BufferStream {
	return &BufferStream{buf: buf}
}

// Write appends the given data to the internal buffer.
// Returns an error if the stream is closed.
func (this *BufferStream) Write(b []byte) (int, error) {
	if this.closed {
		return 0, errStreamClosed
	}

	this.buf = append(this.buf, b...)
	return len(b), nil
}

// Read copies data from the internal buffer at the read offset position.
// Returns io.EOF once every byte has been consumed.
func (this *BufferStream) Read(b []byte) (int, error) {
	if this.closed {
		return 0, errStreamClosed
	}

	if this.off >= len(this.buf) {
		if len(b) == 0 {
			return 0, nil
		}

		return 0, io.EOF
	}

	n := copy(b, this.buf[this.off:])
	this.off += n
	return n, nil
}

// Close makes the stream unavailable for further reads or writes.
func (this *BufferStream) Close() error {
	this.closed = true
	return nil
}

// Len returns the size of the stream
func (this *BufferStream) Len() int {
	return len(this.buf)
}

// Bytes returns the content of the stream (read or not).
func (this *BufferStream) Bytes() []byte {
	return this.buf
}

// Offset returns the offset of the read pointer
func (this *BufferStream) Offset() int {
	return this.off
}

// SetOffset moves the read pointer.
// Returns an error if the offset value is invalid or the stream is closed.
func (this *BufferStream) SetOffset(off int) error {
	if this.closed {
		return errStreamClosed
	}

	if off < 0 || off > len(this.buf) {
		return errors.Errorf("invalid offset %d (must be in [0..%d])", off, len(this.buf))
	}

	this.off = off
	return nil
}
