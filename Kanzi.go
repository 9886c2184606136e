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

// Package kanzi defines the top level interfaces of the entropy coding core:
// bitstreams (bit sinks and sources), probability predictors and entropy
// encoders/decoders. Implementations live in the bitstream and entropy
// sub-packages.
package kanzi

import (
	"github.com/pkg/errors"
)

// ErrInvalidParam is the cause of every configuration error returned when
// building a codec, a predictor or a bitstream with invalid parameters.
// Use errors.Cause(err) == ErrInvalidParam to detect it.
var ErrInvalidParam = errors.New("invalid parameter")

// ErrInvalidBitstream is the cause of the errors returned by decoders when
// a header read from the bitstream holds values no encoder can produce.
var ErrInvalidBitstream = errors.New("invalid bitstream")

// InputBitStream  A bitstream reader
type InputBitStream interface {
	// ReadBit  Return the next bit in the bitstream. Panic if closed or EOS is reached.
	ReadBit() int

	// ReadBits  Length is the number of bits in [1..64]. Return the bits read as an uint64
	// Panic if closed or EOS is reached.
	ReadBits(length uint) uint64

	// ReadArray  Read bits and put them in the byte array. Length is the number of bits
	// Return the number of bits read. Panic if closed or EOS is reached.
	ReadArray(bits []byte, length uint) uint

	// Close  Make the bitstream unavailable for further reads.
	Close() (bool, error)

	// Read  Number of bits read
	Read() uint64

	// HasMoreToRead  Return false when the bitstream is closed or the EOS has been reached
	HasMoreToRead() (bool, error)
}

// OutputBitStream  A bitstream writer
type OutputBitStream interface {
	// WriteBit  Write the least significant bit of the input integer
	// Panic if closed or an IO error is received.
	WriteBit(bit int)

	// WriteBits  Write the least significant bits of 'bits' in the bitstream.
	// Length is the number of bits in [1..64] to write.
	// Return the number of bits written.
	// Panic if closed or an IO error is received.
	WriteBits(bits uint64, length uint) uint

	// WriteArray  Write bits out of the byte array. Length is the number of bits.
	// Return the number of bits written.
	// Panic if closed or an IO error is received.
	WriteArray(bits []byte, length uint) uint

	// Close  Make the bitstream unavailable for further writes.
	Close() (bool, error)

	// Written  Number of bits written
	Written() uint64
}

// Predictor predicts the probability of the next bit to be 1.
// Get and Update must alternate: one Get for the next bit, then one Update
// with the actual bit value.
type Predictor interface {
	// Update  Update the probability model with the bit just coded
	Update(bit byte)

	// Get  Return the split value representing the probability of 1 in the [0..4095] range.
	// E.G. 410 represents roughly a probability of 10% for 1
	Get() int
}

// EntropyEncoder  Entropy encode data to a bitstream
type EntropyEncoder interface {
	// Write  Encode the data provided into the bitstream. Return the number of byte
	// written to the bitstream
	Write(block []byte) (int, error)

	// BitStream  Return the underlying bitstream
	BitStream() OutputBitStream

	// Dispose  Must be called before getting rid of the entropy encoder
	Dispose()
}

// EntropyDecoder Entropy decode data from a bitstream
type EntropyDecoder interface {
	// Read  Decode data from the bitstream and return it in the provided buffer.
	Read(block []byte) (int, error)

	// BitStream  Return the underlying bitstream
	BitStream() InputBitStream

	// Dispose  Must be called before getting rid of the entropy decoder
	// Trying to encode after a call to dispose gives undefined behavior
	Dispose()
}
