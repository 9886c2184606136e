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
	"bufio"
	"io"

	kanzi "github.com/flanglet/kanzi-entropy"
	"github.com/icza/bitio"
	"github.com/pkg/errors"
)

// BitioOutputBitStream is an OutputBitStream backed by a bitio.Writer.
// The bit order (MSB first) is the same as DefaultOutputBitStream, so the
// two implementations produce the same bytes.
type BitioOutputBitStream struct {
	bw      *bitio.Writer
	written uint64
	closed  bool
}

// NewBitioOutputBitStream creates a bit writer on top of the provided writer
func NewBitioOutputBitStream(stream io.Writer) (*BitioOutputBitStream, error) {
	if stream == nil {
		return nil, errors.Wrap(kanzi.ErrInvalidParam, "bitstream: invalid null output stream parameter")
	}

	return &BitioOutputBitStream{bw: bitio.NewWriter(stream)}, nil
}

// WriteBit writes the least significant bit of the input integer
func (this *BitioOutputBitStream) WriteBit(bit int) {
	if this.closed {
		panic(errStreamClosed)
	}

	if err := this.bw.WriteBool(bit&1 == 1); err != nil {
		panic(errors.Wrap(err, "bitstream: cannot write bit"))
	}

	this.written++
}

// WriteBits writes the 'count' least significant bits of 'value'
func (this *BitioOutputBitStream) WriteBits(value uint64, count uint) uint {
	if this.closed {
		panic(errStreamClosed)
	}

	if count == 0 || count > 64 {
		panic(errors.Errorf("bitstream: invalid bit count %d (must be in [1..64])", count))
	}

	if err := this.bw.WriteBits(value&lowBits(count), uint8(count)); err != nil {
		panic(errors.Wrap(err, "bitstream: cannot write bits"))
	}

	this.written += uint64(count)
	return count
}

// WriteArray writes 'count' bits from 'bits', MSB of bits[0] first
func (this *BitioOutputBitStream) WriteArray(bits []byte, count uint) uint {
	if count > uint(len(bits)<<3) {
		panic(errors.Errorf("bitstream: invalid length %d (must be in [1..%d])", count, len(bits)<<3))
	}

	remaining := count
	i := 0

	for remaining >= 8 {
		this.WriteBits(uint64(bits[i]), 8)
		remaining -= 8
		i++
	}

	if remaining > 0 {
		this.WriteBits(uint64(bits[i])>>(8-remaining), remaining)
	}

	return count
}

// Close pads the last byte with zeros and prevents further writes.
// The underlying writer is not closed.
func (this *BitioOutputBitStream) Close() (bool, error) {
	if this.closed {
		return true, nil
	}

	if _, err := this.bw.Align(); err != nil {
		return false, errors.Wrap(err, "bitstream: cannot flush last byte")
	}

	this.closed = true
	return true, nil
}

// Written returns the number of bits written so far
func (this *BitioOutputBitStream) Written() uint64 {
	return this.written
}

// BitioInputBitStream is an InputBitStream backed by a bitio.Reader.
type BitioInputBitStream struct {
	br     *bitio.Reader
	src    *bufio.Reader
	read   uint64
	closed bool
}

// NewBitioInputBitStream creates a bit reader on top of the provided reader
func NewBitioInputBitStream(stream io.Reader) (*BitioInputBitStream, error) {
	if stream == nil {
		return nil, errors.Wrap(kanzi.ErrInvalidParam, "bitstream: invalid null input stream parameter")
	}

	// bitio uses the bufio.Reader as io.ByteReader directly, which lets
	// HasMoreToRead peek without consuming.
	src := bufio.NewReader(stream)
	return &BitioInputBitStream{br: bitio.NewReader(src), src: src}, nil
}

// ReadBit returns the next bit
func (this *BitioInputBitStream) ReadBit() int {
	if this.closed {
		panic(errStreamClosed)
	}

	b, err := this.br.ReadBool()

	if err != nil {
		panic(this.wrap(err))
	}

	this.read++

	if b {
		return 1
	}

	return 0
}

// ReadBits reads 'count' bits and returns them as an uint64
func (this *BitioInputBitStream) ReadBits(count uint) uint64 {
	if this.closed {
		panic(errStreamClosed)
	}

	if count == 0 || count > 64 {
		panic(errors.Errorf("bitstream: invalid bit count %d (must be in [1..64])", count))
	}

	v, err := this.br.ReadBits(uint8(count))

	if err != nil {
		panic(this.wrap(err))
	}

	this.read += uint64(count)
	return v
}

// ReadArray reads 'count' bits into 'bits', MSB of bits[0] first
func (this *BitioInputBitStream) ReadArray(bits []byte, count uint) uint {
	if count > uint(len(bits)<<3) {
		panic(errors.Errorf("bitstream: invalid length %d (must be in [1..%d])", count, len(bits)<<3))
	}

	remaining := count
	i := 0

	for remaining >= 8 {
		bits[i] = byte(this.ReadBits(8))
		remaining -= 8
		i++
	}

	if remaining > 0 {
		bits[i] = byte(this.ReadBits(remaining) << (8 - remaining))
	}

	return count
}

func (this *BitioInputBitStream) wrap(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errNoMoreData
	}

	return errors.Wrap(err, "bitstream: cannot read from input stream")
}

// HasMoreToRead returns false is the stream is closed or there is no
// more bit to read.
func (this *BitioInputBitStream) HasMoreToRead() (bool, error) {
	if this.closed {
		return false, errStreamClosed
	}

	// Bits of a partially consumed byte are cached in the bitio reader
	if this.read&7 != 0 {
		return true, nil
	}

	if _, err := this.src.Peek(1); err != nil {
		return false, this.wrap(err)
	}

	return true, nil
}

// Close prevents further reads
func (this *BitioInputBitStream) Close() (bool, error) {
	this.closed = true
	return true, nil
}

// Read returns the number of bits read so far
func (this *BitioInputBitStream) Read() uint64 {
	return this.read
}
