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

package entropy

import (
	kanzi "github.com/flanglet/kanzi-entropy"
	"github.com/pkg/errors"
)

// _EXPG_CODES holds for each byte value the code length in the top 8 bits
// and the code bits in the low 24 bits, unsigned then signed (int8).
var _EXPG_CODES [2][256]uint32

func init() {
	for v := 0; v < 256; v++ {
		_EXPG_CODES[0][v] = expGolombCode(v, false)
		_EXPG_CODES[1][v] = expGolombCode(int(int8(v)), true)
	}
}

// The code of m > 0 is log2(m+1) zeros followed by the binary representation of
// m+1 (sign appended as the least significant bit in signed mode).
func expGolombCode(v int, signed bool) uint32 {
	if v == 0 {
		return 1<<24 | 1
	}

	m := v
	sign := uint32(0)

	if v < 0 {
		m = -v
		sign = 1
	}

	log2 := uint32(kanzi.Log2NoCheck(uint32(m + 1)))
	length := 2*log2 + 1
	bits := uint32(m + 1)

	if signed == true {
		length++
		bits = (bits << 1) | sign
	}

	return length<<24 | bits
}

// ExpGolombEncoder Exponential Golomb Entropy Encoder
type ExpGolombEncoder struct {
	signed    bool
	cache     *[256]uint32
	bitstream kanzi.OutputBitStream
}

// NewExpGolombEncoder creates a new instance of ExpGolombEncoder
// If sgn is true, values will be encoded as signed (int8) in the bitstream.
// Using a sign improves compression ratio for distributions centered on 0 (E.G. Gaussian)
// Example: -1 is better compressed as -1 (1 followed by '-') than as 255
func NewExpGolombEncoder(bs kanzi.OutputBitStream, sgn bool) (*ExpGolombEncoder, error) {
	if bs == nil {
		return nil, errors.Wrap(kanzi.ErrInvalidParam, "ExpGolomb codec: invalid null bitstream parameter")
	}

	this := &ExpGolombEncoder{}
	this.bitstream = bs
	this.signed = sgn
	this.cache = &_EXPG_CODES[0]

	if sgn == true {
		this.cache = &_EXPG_CODES[1]
	}

	return this, nil
}

// Signed returns true if this encoder is sign aware
func (this *ExpGolombEncoder) Signed() bool {
	return this.signed
}

// Dispose this implementation does nothing
func (this *ExpGolombEncoder) Dispose() {
}

// EncodeByte encodes the given value into the bitstream
func (this *ExpGolombEncoder) EncodeByte(val byte) {
	if val == 0 {
		this.bitstream.WriteBit(1)
		return
	}

	emit := this.cache[val]
	this.bitstream.WriteBits(uint64(emit&0xFFFFFF), uint(emit>>24))
}

// BitStream returns the underlying bitstream
func (this *ExpGolombEncoder) BitStream() kanzi.OutputBitStream {
	return this.bitstream
}

// Write encodes the data provided into the bitstream. Return the number of byte
// written to the bitstream
func (this *ExpGolombEncoder) Write(block []byte) (int, error) {
	for _, b := range block {
		this.EncodeByte(b)
	}

	return len(block), nil
}

// ExpGolombDecoder Exponential Golomb Entropy Decoder
type ExpGolombDecoder struct {
	signed    bool
	bitstream kanzi.InputBitStream
}

// NewExpGolombDecoder creates a new instance of ExpGolombDecoder
// If sgn is true, values from the bitstream will be decoded as signed (int8)
func NewExpGolombDecoder(bs kanzi.InputBitStream, sgn bool) (*ExpGolombDecoder, error) {
	if bs == nil {
		return nil, errors.Wrap(kanzi.ErrInvalidParam, "ExpGolomb codec: invalid null bitstream parameter")
	}

	this := &ExpGolombDecoder{}
	this.signed = sgn
	this.bitstream = bs
	return this, nil
}

// Signed returns true if this decoder is sign aware
func (this *ExpGolombDecoder) Signed() bool {
	return this.signed
}

// Dispose this implementation does nothing
func (this *ExpGolombDecoder) Dispose() {
}

// DecodeByte decodes one byte from the bitstream
// If the decoder is sign aware, the returned value is an int8 cast to a byte.
// Panics if the prefix is longer than any byte code.
func (this *ExpGolombDecoder) DecodeByte() byte {
	val, err := this.decodeByte()

	if err != nil {
		panic(err)
	}

	return val
}

func (this *ExpGolombDecoder) decodeByte() (byte, error) {
	if this.bitstream.ReadBit() == 1 {
		return 0, nil
	}

	log2 := uint(1)

	for this.bitstream.ReadBit() == 0 {
		log2++

		if log2 > 8 {
			return 0, errors.Wrap(kanzi.ErrInvalidBitstream, "ExpGolomb codec: invalid code prefix")
		}
	}

	if this.signed == true {
		// Decode signed: read value + sign
		val := this.bitstream.ReadBits(log2 + 1)
		res := val>>1 + 1<<log2 - 1

		if val&1 == 1 {
			res = ^res + 1
		}

		return byte(res), nil
	}

	// Decode unsigned
	val := this.bitstream.ReadBits(log2)
	return byte((1 << log2) - 1 + val), nil
}

// BitStream returns the underlying bitstream
func (this *ExpGolombDecoder) BitStream() kanzi.InputBitStream {
	return this.bitstream
}

// Read decodes data from the bitstream and return it in the provided buffer.
// Return the number of bytes decoded.
func (this *ExpGolombDecoder) Read(block []byte) (int, error) {
	for i := range block {
		val, err := this.decodeByte()

		if err != nil {
			return i, err
		}

		block[i] = val
	}

	return len(block), nil
}
