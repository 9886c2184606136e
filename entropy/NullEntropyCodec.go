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

const _NULL_CHUNK_SIZE = 1 << 23

// NullEntropyEncoder is a pass through codec that writes the input bytes
// directly to the bitstream
type NullEntropyEncoder struct {
	bitstream kanzi.OutputBitStream
}

// NewNullEntropyEncoder creates a new instance of NullEntropyEncoder
func NewNullEntropyEncoder(bs kanzi.OutputBitStream) (*NullEntropyEncoder, error) {
	if bs == nil {
		return nil, errors.Wrap(kanzi.ErrInvalidParam, "null codec: invalid null bitstream parameter")
	}

	return &NullEntropyEncoder{bitstream: bs}, nil
}

// Write copies the block to the bitstream. Returns the number of bytes written.
func (this *NullEntropyEncoder) Write(block []byte) (int, error) {
	res := 0

	for idx := 0; idx < len(block); idx += _NULL_CHUNK_SIZE {
		ckSize := min(len(block)-idx, _NULL_CHUNK_SIZE)
		res += int(this.bitstream.WriteArray(block[idx:], uint(8*ckSize)) >> 3)
	}

	return res, nil
}

// BitStream returns the underlying bitstream
func (this *NullEntropyEncoder) BitStream() kanzi.OutputBitStream {
	return this.bitstream
}

// Dispose this implementation does nothing
func (this *NullEntropyEncoder) Dispose() {
}

// NullEntropyDecoder is a pass through codec that reads the bytes directly
// from the bitstream
type NullEntropyDecoder struct {
	bitstream kanzi.InputBitStream
}

// NewNullEntropyDecoder creates a new instance of NullEntropyDecoder
func NewNullEntropyDecoder(bs kanzi.InputBitStream) (*NullEntropyDecoder, error) {
	if bs == nil {
		return nil, errors.Wrap(kanzi.ErrInvalidParam, "null codec: invalid null bitstream parameter")
	}

	return &NullEntropyDecoder{bitstream: bs}, nil
}

// Read fills the block with bytes from the bitstream. Returns the number of bytes read.
func (this *NullEntropyDecoder) Read(block []byte) (int, error) {
	res := 0

	for idx := 0; idx < len(block); idx += _NULL_CHUNK_SIZE {
		ckSize := min(len(block)-idx, _NULL_CHUNK_SIZE)
		res += int(this.bitstream.ReadArray(block[idx:], uint(8*ckSize)) >> 3)
	}

	return res, nil
}

// BitStream returns the underlying bitstream
func (this *NullEntropyDecoder) BitStream() kanzi.InputBitStream {
	return this.bitstream
}

// Dispose this implementation does nothing
func (this *NullEntropyDecoder) Dispose() {
}
