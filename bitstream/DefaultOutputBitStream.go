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

package bitstream

import (
	"encoding/binary"
	"io"

	kanzi "github.com/flanglet/kanzi-entropy"
	"github.com/pkg/errors"
)

const (
	_MIN_BUFFER_SIZE = 1024
	_MAX_BUFFER_SIZE = 1 << 29
)

var errStreamClosed = errors.New("stream closed")

// DefaultOutputBitStream is the default implementation of OutputBitStream.
// Bits are accumulated MSB first in a 64 bit register, then in a byte buffer
// flushed to the underlying writer when full.
type DefaultOutputBitStream struct {
	closed    bool
	written   uint64
	position  int    // index of current byte in buffer
	availBits uint   // bits not consumed in current
	current   uint64 // cached bits
	os        io.WriteCloser
	buffer    []byte
}

func checkBufferSize(bufferSize uint) error {
	if bufferSize < _MIN_BUFFER_SIZE {
		return errors.Wrapf(kanzi.ErrInvalidParam, "bitstream: buffer size must be at least %d bytes", _MIN_BUFFER_SIZE)
	}

	if bufferSize > _MAX_BUFFER_SIZE {
		return errors.Wrapf(kanzi.ErrInvalidParam, "bitstream: buffer size must be at most %d bytes", _MAX_BUFFER_SIZE)
	}

	if bufferSize&7 != 0 {
		return errors.Wrap(kanzi.ErrInvalidParam, "bitstream: buffer size must be a multiple of 8")
	}

	return nil
}

func lowBits(count uint) uint64 {
	return 0xFFFFFFFFFFFFFFFF >> (64 - count)
}

// NewDefaultOutputBitStream creates a bitstream for writing, using the provided stream as
// the underlying I/O object.
func NewDefaultOutputBitStream(stream io.WriteCloser, bufferSize uint) (*DefaultOutputBitStream, error) {
	if stream == nil {
		return nil, errors.Wrap(kanzi.ErrInvalidParam, "bitstream: invalid null output stream parameter")
	}

	if err := checkBufferSize(bufferSize); err != nil {
		return nil, err
	}

	this := &DefaultOutputBitStream{}
	this.buffer = make([]byte, bufferSize)
	this.os = stream
	this.availBits = 64
	return this, nil
}

// WriteBit writes the least significant bit of the input integer. Panics if the bitstream is closed
func (this *DefaultOutputBitStream) WriteBit(bit int) {
	if this.availBits <= 1 {
		// availBits is 0 when the stream is closed: pushCurrent() panics
		this.current |= uint64(bit & 1)
		this.pushCurrent()
		return
	}

	this.availBits--
	this.current |= uint64(bit&1) << this.availBits
}

// WriteBits writes 'count' from 'value' to the bitstream.
// Panics if the bitstream is closed or 'count' is outside of [1..64].
// Returns the number of written bits.
func (this *DefaultOutputBitStream) WriteBits(value uint64, count uint) uint {
	if count == 0 || count > 64 {
		panic(errors.Errorf("bitstream: invalid bit count %d (must be in [1..64])", count))
	}

	value &= lowBits(count)

	if this.availBits > count {
		this.availBits -= count
		this.current |= value << this.availBits
		return count
	}

	// Split the value across the current register and the next one
	remaining := count - this.availBits
	this.current |= value >> remaining
	this.pushCurrent()
	this.current = value << (64 - remaining)
	this.availBits -= remaining
	return count
}

// WriteArray writes 'count' bits from 'bits' to the bitstream.
// Panics if the bitstream is closed or 'count' bigger than the number of bits
// in the 'bits' slice. Returns the number of written bits.
func (this *DefaultOutputBitStream) WriteArray(bits []byte, count uint) uint {
	if this.Closed() {
		panic(errStreamClosed)
	}

	if count > uint(len(bits)<<3) {
		panic(errors.Errorf("bitstream: invalid length %d (must be in [1..%d])", count, len(bits)<<3))
	}

	remaining := int(count)
	start := 0

	if this.availBits&7 == 0 {
		// Byte aligned: fill up the register then copy whole bytes
		for this.availBits != 64 && remaining >= 8 {
			this.WriteBits(uint64(bits[start]), 8)
			start++
			remaining -= 8
		}

		for remaining>>3 >= len(this.buffer)-this.position {
			n := len(this.buffer) - this.position
			copy(this.buffer[this.position:], bits[start:start+n])
			start += n
			remaining -= n << 3
			this.position = len(this.buffer)

			if err := this.flush(); err != nil {
				panic(err)
			}
		}

		if r := (remaining >> 6) << 3; r > 0 {
			copy(this.buffer[this.position:], bits[start:start+r])
			start += r
			this.position += r
			remaining -= r << 3
		}
	} else {
		r := 64 - this.availBits

		for remaining >= 64 {
			value := binary.BigEndian.Uint64(bits[start : start+8])
			this.current |= value >> r
			this.pushCurrent()
			this.current = value << (64 - r)
			this.availBits -= r
			start += 8
			remaining -= 64
		}
	}

	for remaining >= 8 {
		this.WriteBits(uint64(bits[start]), 8)
		start++
		remaining -= 8
	}

	if remaining > 0 {
		this.WriteBits(uint64(bits[start])>>uint(8-remaining), uint(remaining))
	}

	return count
}

// Push 64 bits of current value into buffer.
func (this *DefaultOutputBitStream) pushCurrent() {
	if this.Closed() {
		panic(errStreamClosed)
	}

	binary.BigEndian.PutUint64(this.buffer[this.position:this.position+8], this.current)
	this.availBits = 64
	this.current = 0
	this.position += 8

	if this.position >= len(this.buffer) {
		if err := this.flush(); err != nil {
			panic(err)
		}
	}
}

// Write buffer into underlying stream
func (this *DefaultOutputBitStream) flush() error {
	if this.Closed() {
		return errStreamClosed
	}

	if this.position > 0 {
		if _, err := this.os.Write(this.buffer[0:this.position]); err != nil {
			return errors.Wrap(err, "bitstream: cannot write to output stream")
		}

		this.written += uint64(this.position) << 3
		this.position = 0
	}

	return nil
}

// Close pads the last byte with zeros, flushes and prevents further writes.
// The underlying stream is not closed.
func (this *DefaultOutputBitStream) Close() (bool, error) {
	if this.Closed() {
		return true, nil
	}

	savedBitIndex := this.availBits
	savedPosition := this.position
	savedCurrent := this.current
	pending := 64 - int(this.availBits)

	// Push last bytes (the very last byte may be incomplete)
	for shift := uint(56); pending > 0; shift -= 8 {
		this.buffer[this.position] = byte(this.current >> shift)
		this.position++
		pending -= 8
	}

	written := this.written + uint64(this.position<<3) - uint64(this.availBits&7)

	if err := this.flush(); err != nil {
		// Revert fields to allow subsequent attempts in case of transient failure
		this.availBits = savedBitIndex
		this.position = savedPosition
		this.current = savedCurrent
		return false, err
	}

	this.closed = true
	this.written = written
	this.position = 0
	this.availBits = 0
	this.current = 0
	this.buffer = make([]byte, 8)
	return true, nil
}

// Written returns the number of bits written so far
func (this *DefaultOutputBitStream) Written() uint64 {
	if this.closed {
		return this.written
	}

	// Number of bits flushed + bytes written in memory + bits written in memory
	return this.written + uint64(this.position<<3) + uint64(64-this.availBits)
}

// Closed says whether this stream can be written to
func (this *DefaultOutputBitStream) Closed() bool {
	return this.closed
}
