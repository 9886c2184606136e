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
	"encoding/binary"

	kanzi "github.com/flanglet/kanzi-entropy"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

const (
	_BINARY_ENTROPY_TOP       = uint64(0x00FFFFFFFFFFFFFF)
	_MASK_0_56                = uint64(0x00FFFFFFFFFFFFFF)
	_MASK_24_56               = uint64(0x00FFFFFFFF000000)
	_MASK_0_24                = uint64(0x0000000000FFFFFF)
	_MASK_0_32                = uint64(0x00000000FFFFFFFF)
	_BINARY_ENTROPY_MAX_BLOCK = 1 << 30
	_BINARY_ENTROPY_MAX_CHUNK = 1 << 26
)

// binaryChunkSize returns the number of bytes coded per chunk.
// Big blocks (>=64MB) are split to bound the size of the scratch buffer.
func binaryChunkSize(count int) int {
	if count >= _BINARY_ENTROPY_MAX_CHUNK {
		if count < 8*_BINARY_ENTROPY_MAX_CHUNK {
			return count >> 3
		}

		return count >> 4
	}

	return max(count, 64)
}

// BinaryEntropyEncoder entropy encoder based on arithmetic coding and
// using an external probability predictor.
// Each chunk is coded independently: the coder state is reset at the start
// of the chunk and the last 56 bits of the state end the chunk data.
type BinaryEntropyEncoder struct {
	predictor kanzi.Predictor
	low       uint64
	high      uint64
	bitstream kanzi.OutputBitStream
	buffer    []byte
	listeners []kanzi.Listener
	blockID   int
}

// NewBinaryEntropyEncoder creates an instance of BinaryEntropyEncoder using the
// given predictor to predict the probability of the next bit to be one.
func NewBinaryEntropyEncoder(bs kanzi.OutputBitStream, predictor kanzi.Predictor) (*BinaryEntropyEncoder, error) {
	return NewBinaryEntropyEncoderWithCtx(bs, predictor, nil)
}

// NewBinaryEntropyEncoderWithCtx creates an instance of BinaryEntropyEncoder
// providing a context map. The "listeners" key registers event listeners.
func NewBinaryEntropyEncoderWithCtx(bs kanzi.OutputBitStream, predictor kanzi.Predictor,
	ctx *map[string]interface{}) (*BinaryEntropyEncoder, error) {
	if bs == nil {
		return nil, errors.Wrap(kanzi.ErrInvalidParam, "binary entropy codec: invalid null bitstream parameter")
	}

	if predictor == nil {
		return nil, errors.Wrap(kanzi.ErrInvalidParam, "binary entropy codec: invalid null predictor parameter")
	}

	listeners, err := ctxListeners(ctx)

	if err != nil {
		return nil, err
	}

	this := &BinaryEntropyEncoder{}
	this.predictor = predictor
	this.high = _BINARY_ENTROPY_TOP
	this.bitstream = bs
	this.listeners = listeners
	return this, nil
}

// EncodeByte encodes the given value into the bitstream bit by bit
func (this *BinaryEntropyEncoder) EncodeByte(val byte) {
	this.EncodeBit((val >> 7) & 1)
	this.EncodeBit((val >> 6) & 1)
	this.EncodeBit((val >> 5) & 1)
	this.EncodeBit((val >> 4) & 1)
	this.EncodeBit((val >> 3) & 1)
	this.EncodeBit((val >> 2) & 1)
	this.EncodeBit((val >> 1) & 1)
	this.EncodeBit(val & 1)
}

// EncodeBit encodes one bit into the bitstream using arithmetic coding
// and the probability predictor provided at creation time.
func (this *BinaryEntropyEncoder) EncodeBit(bit byte) {
	// Calculate interval split
	// Written in a way to maximize accuracy of multiplication/division
	split := (((this.high - this.low) >> 4) * uint64(this.predictor.Get())) >> 8

	// Update fields with new interval bounds
	if bit == 0 {
		this.low += split + 1
	} else {
		this.high = this.low + split
	}

	// Update predictor
	this.predictor.Update(bit)

	// Write unchanged first 32 bits to bitstream
	for (this.low^this.high)&_MASK_24_56 == 0 {
		this.flush()
	}
}

// Write encodes the data provided into the bitstream. Return the number of bytes
// written to the bitstream. Splits big blocks into chunks and encodes the chunks
// byte by byte sequentially into the bitstream.
func (this *BinaryEntropyEncoder) Write(block []byte) (int, error) {
	if block == nil {
		return 0, errors.Wrap(kanzi.ErrInvalidParam, "binary entropy codec: invalid null block parameter")
	}

	count := len(block)

	if count > _BINARY_ENTROPY_MAX_BLOCK {
		return -1, errors.Wrapf(kanzi.ErrInvalidParam, "binary entropy codec: invalid block size %d (max is %d)", count, _BINARY_ENTROPY_MAX_BLOCK)
	}

	if count == 0 {
		return 0, nil
	}

	length := binaryChunkSize(count)
	written := this.bitstream.Written()
	notify(this.listeners, kanzi.EVT_BEFORE_ENTROPY, this.blockID, int64(count))

	for startChunk, chunk := 0, 0; startChunk < count; chunk++ {
		endChunk := min(startChunk+length, count)
		chunkWritten := this.bitstream.Written()
		sz := endChunk - startChunk

		// Reserve room for 9 bits per byte on average, append grows the
		// buffer in the rare worst cases.
		this.buffer = slices.Grow(this.buffer[:0], sz+(sz>>3)+8)
		this.low = 0
		this.high = _BINARY_ENTROPY_TOP

		for _, val := range block[startChunk:endChunk] {
			this.EncodeByte(val)
		}

		// Any value in [low, high] identifies the final interval
		last := this.low | _MASK_0_24
		this.buffer = append(this.buffer, byte(last>>48), byte(last>>40), byte(last>>32),
			byte(last>>24), byte(last>>16), byte(last>>8), byte(last))

		WriteVarInt(this.bitstream, uint32(len(this.buffer)))
		this.bitstream.WriteArray(this.buffer, uint(8*len(this.buffer)))
		notify(this.listeners, kanzi.EVT_AFTER_CHUNK, chunk, int64((this.bitstream.Written()-chunkWritten+7)>>3))
		startChunk = endChunk
	}

	notify(this.listeners, kanzi.EVT_AFTER_ENTROPY, this.blockID, int64((this.bitstream.Written()-written+7)>>3))
	this.blockID++
	return count, nil
}

func (this *BinaryEntropyEncoder) flush() {
	this.buffer = binary.BigEndian.AppendUint32(this.buffer, uint32(this.high>>24))
	this.low = (this.low << 32) & _MASK_0_56
	this.high = ((this.high << 32) | _MASK_0_32) & _MASK_0_56
}

// BitStream returns the underlying bitstream
func (this *BinaryEntropyEncoder) BitStream() kanzi.OutputBitStream {
	return this.bitstream
}

// Dispose must be called before getting rid of the entropy encoder.
// Chunks are self contained so there is nothing left to write.
func (this *BinaryEntropyEncoder) Dispose() {
}

// BinaryEntropyDecoder entropy decoder based on arithmetic coding and
// using an external probability predictor.
type BinaryEntropyDecoder struct {
	predictor kanzi.Predictor
	low       uint64
	high      uint64
	current   uint64
	bitstream kanzi.InputBitStream
	buffer    []byte
	index     int
	listeners []kanzi.Listener
	blockID   int
}

// NewBinaryEntropyDecoder creates an instance of BinaryEntropyDecoder using the
// given predictor to predict the probability of the next bit to be one.
func NewBinaryEntropyDecoder(bs kanzi.InputBitStream, predictor kanzi.Predictor) (*BinaryEntropyDecoder, error) {
	return NewBinaryEntropyDecoderWithCtx(bs, predictor, nil)
}

// NewBinaryEntropyDecoderWithCtx creates an instance of BinaryEntropyDecoder
// providing a context map. The "listeners" key registers event listeners.
func NewBinaryEntropyDecoderWithCtx(bs kanzi.InputBitStream, predictor kanzi.Predictor,
	ctx *map[string]interface{}) (*BinaryEntropyDecoder, error) {
	if bs == nil {
		return nil, errors.Wrap(kanzi.ErrInvalidParam, "binary entropy codec: invalid null bitstream parameter")
	}

	if predictor == nil {
		return nil, errors.Wrap(kanzi.ErrInvalidParam, "binary entropy codec: invalid null predictor parameter")
	}

	listeners, err := ctxListeners(ctx)

	if err != nil {
		return nil, err
	}

	this := &BinaryEntropyDecoder{}
	this.predictor = predictor
	this.high = _BINARY_ENTROPY_TOP
	this.bitstream = bs
	this.listeners = listeners
	return this, nil
}

// DecodeByte decodes the given value from the bitstream bit by bit
func (this *BinaryEntropyDecoder) DecodeByte() byte {
	return (this.DecodeBit() << 7) |
		(this.DecodeBit() << 6) |
		(this.DecodeBit() << 5) |
		(this.DecodeBit() << 4) |
		(this.DecodeBit() << 3) |
		(this.DecodeBit() << 2) |
		(this.DecodeBit() << 1) |
		this.DecodeBit()
}

// DecodeBit decodes one bit from the bitstream using arithmetic coding
// and the probability predictor provided at creation time.
func (this *BinaryEntropyDecoder) DecodeBit() byte {
	// Calculate interval split
	// Written in a way to maximize accuracy of multiplication/division
	split := ((((this.high - this.low) >> 4) * uint64(this.predictor.Get())) >> 8) + this.low
	var bit byte

	if split >= this.current {
		bit = 1
		this.high = split
	} else {
		this.low = split + 1
	}

	// Update predictor
	this.predictor.Update(bit)

	// Read 32 bits from bitstream
	for (this.low^this.high)&_MASK_24_56 == 0 {
		this.read()
	}

	return bit
}

func (this *BinaryEntropyDecoder) read() {
	this.low = (this.low << 32) & _MASK_0_56
	this.high = ((this.high << 32) | _MASK_0_32) & _MASK_0_56
	var val uint64

	if this.index+4 <= len(this.buffer) {
		val = uint64(binary.BigEndian.Uint32(this.buffer[this.index:]))
		this.index += 4
	} else {
		// Past the end of the chunk data: shift in zeros
		for i := 0; i < 4; i++ {
			val = (val << 8) | uint64(this.nextByte())
		}
	}

	this.current = ((this.current << 32) | val) & _MASK_0_56
}

func (this *BinaryEntropyDecoder) nextByte() byte {
	if this.index >= len(this.buffer) {
		return 0
	}

	this.index++
	return this.buffer[this.index-1]
}

// Read decodes data from the bitstream and return it in the provided buffer.
// Return the number of bytes read from the bitstream.
// Splits big blocks into chunks and decode the chunks byte by byte sequentially from the bitstream.
func (this *BinaryEntropyDecoder) Read(block []byte) (int, error) {
	if block == nil {
		return 0, errors.Wrap(kanzi.ErrInvalidParam, "binary entropy codec: invalid null block parameter")
	}

	count := len(block)

	if count > _BINARY_ENTROPY_MAX_BLOCK {
		return -1, errors.Wrapf(kanzi.ErrInvalidParam, "binary entropy codec: invalid block size %d (max is %d)", count, _BINARY_ENTROPY_MAX_BLOCK)
	}

	if count == 0 {
		return 0, nil
	}

	length := binaryChunkSize(count)
	read := this.bitstream.Read()
	notify(this.listeners, kanzi.EVT_BEFORE_ENTROPY, this.blockID, int64(count))

	for startChunk, chunk := 0, 0; startChunk < count; chunk++ {
		endChunk := min(startChunk+length, count)
		chunkRead := this.bitstream.Read()
		szBytes, err := ReadVarInt(this.bitstream)

		if err != nil {
			return startChunk, err
		}

		// A coded bit never takes more than 32 bits
		if maxSize := 32*(endChunk-startChunk) + 8; int(szBytes) > maxSize {
			return startChunk, errors.Wrapf(kanzi.ErrInvalidBitstream, "binary entropy codec: invalid chunk size %d (max is %d)", szBytes, maxSize)
		}

		sz := int(szBytes)
		this.buffer = slices.Grow(this.buffer[:0], sz)[:sz]

		if sz != 0 {
			this.bitstream.ReadArray(this.buffer, uint(8*sz))
		}

		this.index = 0
		this.low = 0
		this.high = _BINARY_ENTROPY_TOP
		this.current = 0

		for i := 0; i < 7; i++ {
			this.current = (this.current << 8) | uint64(this.nextByte())
		}

		buf := block[startChunk:endChunk]

		for i := range buf {
			buf[i] = this.DecodeByte()
		}

		notify(this.listeners, kanzi.EVT_AFTER_CHUNK, chunk, int64((this.bitstream.Read()-chunkRead+7)>>3))
		startChunk = endChunk
	}

	notify(this.listeners, kanzi.EVT_AFTER_ENTROPY, this.blockID, int64((this.bitstream.Read()-read+7)>>3))
	this.blockID++
	return count, nil
}

// BitStream returns the underlying bitstream
func (this *BinaryEntropyDecoder) BitStream() kanzi.InputBitStream {
	return this.bitstream
}

// Dispose must be called before getting rid of the entropy decoder
// This implementation does nothing.
func (this *BinaryEntropyDecoder) Dispose() {
}
