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

var errNoMoreData = errors.New("no more data to read in the bitstream")

// DefaultInputBitStream is the default implementation of InputBitStream.
// It mirrors DefaultOutputBitStream: bytes are read in a buffer and consumed
// MSB first through a 64 bit register.
type DefaultInputBitStream struct {
	closed      bool
	read        int64
	position    int  // index of current byte (consumed if bitIndex == -1)
	availBits   uint // bits not consumed in current
	is          io.ReadCloser
	buffer      []byte
	maxPosition int
	current     uint64 // cached bits
}

// NewDefaultInputBitStream creates a bitstream for reading, using the provided stream as
// the underlying I/O object.
func NewDefaultInputBitStream(stream io.ReadCloser, bufferSize uint) (*DefaultInputBitStream, error) {
	if stream == nil {
		return nil, errors.Wrap(kanzi.ErrInvalidParam, "bitstream: invalid null input stream parameter")
	}

	if err := checkBufferSize(bufferSize); err != nil {
		return nil, err
	}

	this := &DefaultInputBitStream{}
	this.buffer = make([]byte, bufferSize)
	this.is = stream
	this.maxPosition = -1
	return this, nil
}

// ReadBit returns the next bit
func (this *DefaultInputBitStream) ReadBit() int {
	if this.availBits == 0 {
		this.pullCurrent() // Panic if stream is closed
	}

	this.availBits--
	return int(this.current>>this.availBits) & 1
}

// ReadBits reads 'count' bits from the stream and returns them as an uint64.
// It panics if the count is outside of the [1..64] range or the stream is closed.
func (this *DefaultInputBitStream) ReadBits(count uint) uint64 {
	if count == 0 || count > 64 {
		panic(errors.Errorf("bitstream: invalid bit count %d (must be in [1..64])", count))
	}

	if count <= this.availBits {
		this.availBits -= count
		return (this.current >> this.availBits) & lowBits(count)
	}

	// Not enough bits left in 'current'
	res := uint64(0)

	for count > this.availBits {
		// The register can hold fewer than 64 bits after a short read
		count -= this.availBits
		res = (res << this.availBits) | (this.current & lowBits(this.availBits))
		this.pullCurrent()
	}

	this.availBits -= count
	return (res << count) | ((this.current >> this.availBits) & lowBits(count))
}

// ReadArray reads 'count' bits from the stream and returns them to the 'bits'
// slice. It panics if the stream is closed or the number of bits to read exceeds
// the length of the 'bits' slice. Returns the number of bits read.
func (this *DefaultInputBitStream) ReadArray(bits []byte, count uint) uint {
	if this.Closed() {
		panic(errStreamClosed)
	}

	if count > uint(len(bits)<<3) {
		panic(errors.Errorf("bitstream: invalid length %d (must be in [1..%d])", count, len(bits)<<3))
	}

	remaining := int(count)
	start := 0

	for remaining >= 64 {
		binary.BigEndian.PutUint64(bits[start:start+8], this.ReadBits(64))
		start += 8
		remaining -= 64
	}

	for remaining >= 8 {
		bits[start] = byte(this.ReadBits(8))
		start++
		remaining -= 8
	}

	if remaining > 0 {
		bits[start] = byte(this.ReadBits(uint(remaining)) << uint(8-remaining))
	}

	return count
}

func (this *DefaultInputBitStream) readFromInputStream(count int) (int, error) {
	if this.Closed() {
		return 0, errStreamClosed
	}

	if count == 0 {
		return 0, nil
	}

	this.read += int64((this.maxPosition + 1) << 3)
	size, err := io.ReadAtLeast(this.is, this.buffer[0:count], 1)
	this.position = 0

	if size <= 0 {
		this.maxPosition = -1

		if err != nil && err != io.EOF {
			return 0, errors.Wrap(err, "bitstream: cannot read from input stream")
		}

		return 0, errNoMoreData
	}

	this.maxPosition = size - 1
	return size, nil
}

// HasMoreToRead returns false is the stream is closed or there is no
// more bit to read.
func (this *DefaultInputBitStream) HasMoreToRead() (bool, error) {
	if this.Closed() {
		return false, errStreamClosed
	}

	if this.position <= this.maxPosition || this.availBits != 0 {
		return true, nil
	}

	_, err := this.readFromInputStream(len(this.buffer))
	return err == nil, err
}

// Pull 64 bits of current value from buffer.
func (this *DefaultInputBitStream) pullCurrent() {
	if this.position > this.maxPosition {
		if _, err := this.readFromInputStream(len(this.buffer)); err != nil {
			panic(err)
		}
	}

	if this.position+7 > this.maxPosition {
		// End of stream: fewer than 8 bytes left
		shift := uint(this.maxPosition-this.position) << 3
		this.availBits = shift + 8
		val := uint64(0)

		for this.position <= this.maxPosition {
			val |= uint64(this.buffer[this.position]) << shift
			this.position++
			shift -= 8
		}

		this.current = val
		return
	}

	this.current = binary.BigEndian.Uint64(this.buffer[this.position : this.position+8])
	this.availBits = 64
	this.position += 8
}

// Close prevents further reads (beyond the available bits)
func (this *DefaultInputBitStream) Close() (bool, error) {
	if this.Closed() {
		return true, nil
	}

	this.closed = true

	// Reset fields to force a readFromInputStream() and trigger an error
	// on ReadBit() or ReadBits()
	this.read -= int64(this.availBits) // can be negative
	this.availBits = 0
	this.maxPosition = -1
	return true, nil
}

// Read returns the number of bits read so far
func (this *DefaultInputBitStream) Read() uint64 {
	return uint64(this.read + int64(this.position)<<3 - int64(this.availBits))
}

// Closed says whether this stream can be read from
func (this *DefaultInputBitStream) Closed() bool {
	return this.closed
}
