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
	"golang.org/x/exp/slices"
)

// Code based on Order 0 range coder by Dmitry Subbotin itself derived from the algorithm
// described by G.N.N Martin in his seminal article in 1979.
// [G.N.N. Martin on the Data Recording Conference, Southampton, 1979]

const (
	_RANGE_TOP               = uint64(0x0FFFFFFFFFFFFFFF)
	_RANGE_BOTTOM            = uint64(0x000000000000FFFF)
	_RANGE_MASK              = uint64(0x0FFFFFFF00000000)
	DEFAULT_RANGE_CHUNK_SIZE = uint(1 << 15)
	DEFAULT_RANGE_LOG_RANGE  = uint(12)
	RANGE_MIN_CHUNK_SIZE     = uint(1024)
	RANGE_MAX_CHUNK_SIZE     = uint(1 << 30)
)

func checkRangeParams(chkSize, logRange uint) error {
	if chkSize != 0 && chkSize < RANGE_MIN_CHUNK_SIZE {
		return errors.Wrapf(kanzi.ErrInvalidParam, "Range codec: the chunk size must be at least %d", RANGE_MIN_CHUNK_SIZE)
	}

	if chkSize > RANGE_MAX_CHUNK_SIZE {
		return errors.Wrapf(kanzi.ErrInvalidParam, "Range codec: the chunk size must be at most %d", RANGE_MAX_CHUNK_SIZE)
	}

	if logRange < 8 || logRange > 16 {
		return errors.Wrapf(kanzi.ErrInvalidParam, "Range codec: invalid range %d (must be in [8..16])", logRange)
	}

	return nil
}

// RangeEncoder Order 0 range entropy encoder
type RangeEncoder struct {
	low       uint64
	rng       uint64
	alphabet  [256]int
	freqs     [256]int
	cumFreqs  [257]uint64
	bitstream kanzi.OutputBitStream
	eu        *EntropyUtils
	listeners []kanzi.Listener
	chunkSize int
	logRange  uint
	shift     uint
	blockID   int
}

// NewRangeEncoder creates a new instance of RangeEncoder.
// The given arguments are either empty or contain a chunk size and
// a log range (to specify the precision of the encoding).
// EG: call NewRangeEncoder(bs) or NewRangeEncoder(bs, 16384, 14)
// A chunk size of 0 means that the statistics apply to the whole block.
func NewRangeEncoder(bs kanzi.OutputBitStream, args ...uint) (*RangeEncoder, error) {
	return NewRangeEncoderWithCtx(bs, nil, args...)
}

// NewRangeEncoderWithCtx creates a new instance of RangeEncoder providing a
// context map. The "chunkSize" and "logRange" keys override the positional
// arguments and the "listeners" key registers event listeners.
func NewRangeEncoderWithCtx(bs kanzi.OutputBitStream, ctx *map[string]interface{}, args ...uint) (*RangeEncoder, error) {
	if bs == nil {
		return nil, errors.Wrap(kanzi.ErrInvalidParam, "Range codec: invalid null bitstream parameter")
	}

	if len(args) != 0 && len(args) != 2 {
		return nil, errors.Wrap(kanzi.ErrInvalidParam, "Range codec: provide either no argument or a chunk size and a log range")
	}

	chkSize := DEFAULT_RANGE_CHUNK_SIZE
	logRange := DEFAULT_RANGE_LOG_RANGE

	if len(args) == 2 {
		chkSize = args[0]
		logRange = args[1]
	}

	var err error

	if chkSize, err = ctxUint(ctx, "chunkSize", chkSize); err != nil {
		return nil, err
	}

	if logRange, err = ctxUint(ctx, "logRange", logRange); err != nil {
		return nil, err
	}

	listeners, err := ctxListeners(ctx)

	if err != nil {
		return nil, err
	}

	if err = checkRangeParams(chkSize, logRange); err != nil {
		return nil, err
	}

	this := &RangeEncoder{}
	this.bitstream = bs
	this.logRange = logRange
	this.chunkSize = int(chkSize)
	this.eu = NewEntropyUtils()
	this.listeners = listeners
	return this, nil
}

func (this *RangeEncoder) updateFrequencies(frequencies []int, size int, lr uint) (int, error) {
	alphabetSize, err := this.eu.NormalizeFrequencies(frequencies, this.alphabet[:], size, 1<<lr)

	if err != nil {
		return alphabetSize, err
	}

	if alphabetSize > 0 {
		this.cumFreqs[0] = 0

		// Create histogram of frequencies scaled to 'range'
		for i := range frequencies {
			this.cumFreqs[i+1] = this.cumFreqs[i] + uint64(frequencies[i])
		}
	}

	return alphabetSize, this.encodeHeader(this.alphabet[0:alphabetSize], frequencies, lr)
}

func (this *RangeEncoder) encodeHeader(alphabet []int, frequencies []int, lr uint) error {
	if _, err := EncodeAlphabet(this.bitstream, alphabet, 256); err != nil {
		return err
	}

	alphabetSize := len(alphabet)

	if alphabetSize == 0 {
		return nil
	}

	this.bitstream.WriteBits(uint64(lr-8), 3) // logRange
	chkSize := 8

	if alphabetSize < 64 {
		chkSize = 6
	}

	llr := uint(3)

	for 1<<llr <= lr {
		llr++
	}

	// Encode all frequencies (but the first one) by chunks
	for i := 1; i < alphabetSize; i += chkSize {
		maxFreq := frequencies[alphabet[i]] - 1
		logMax := uint(0)
		endj := min(i+chkSize, alphabetSize)

		// Search for max frequency log size in next chunk
		for j := i + 1; j < endj; j++ {
			maxFreq = max(maxFreq, frequencies[alphabet[j]]-1)
		}

		for 1<<logMax <= maxFreq {
			logMax++
		}

		this.bitstream.WriteBits(uint64(logMax), llr)

		if logMax == 0 {
			// all frequencies equal one in this chunk
			continue
		}

		for j := i; j < endj; j++ {
			this.bitstream.WriteBits(uint64(frequencies[alphabet[j]]-1), logMax)
		}
	}

	return nil
}

// Write encodes the data provided into the bitstream. Return the number of bytes
// read from the input. Splits the input into chunks and encodes chunks
// sequentially based on local statistics.
func (this *RangeEncoder) Write(block []byte) (int, error) {
	if block == nil {
		return 0, errors.Wrap(kanzi.ErrInvalidParam, "Range codec: invalid null block parameter")
	}

	if len(block) == 0 {
		return 0, nil
	}

	sizeChunk := this.chunkSize

	if sizeChunk == 0 {
		sizeChunk = len(block)
	}

	end := len(block)
	written := this.bitstream.Written()
	notify(this.listeners, kanzi.EVT_BEFORE_ENTROPY, this.blockID, int64(end))

	for startChunk, chunk := 0, 0; startChunk < end; chunk++ {
		endChunk := min(startChunk+sizeChunk, end)
		chunkWritten := this.bitstream.Written()
		lr := min(this.logRange, _HEADER_MAX_LOG_RANGE)

		// Lower log range if the size of the data block is small
		for lr > 8 && 1<<lr > endChunk-startChunk {
			lr--
		}

		this.rng = _RANGE_TOP
		this.low = 0
		this.shift = lr
		buf := block[startChunk:endChunk]
		kanzi.ComputeHistogram(buf, this.freqs[:], true, false)
		alphabetSize, err := this.updateFrequencies(this.freqs[:], len(buf), lr)

		if err != nil {
			return startChunk, err
		}

		// Nothing else to write if only one symbol
		if alphabetSize > 1 {
			for _, b := range buf {
				this.encodeByte(b)
			}

			// Flush 'low'
			this.bitstream.WriteBits(this.low, 60)
		}

		notify(this.listeners, kanzi.EVT_AFTER_CHUNK, chunk, int64((this.bitstream.Written()-chunkWritten+7)>>3))
		startChunk = endChunk
	}

	notify(this.listeners, kanzi.EVT_AFTER_ENTROPY, this.blockID, int64((this.bitstream.Written()-written+7)>>3))
	this.blockID++
	return end, nil
}

func (this *RangeEncoder) encodeByte(b byte) {
	// Compute next low and range
	symbol := int(b)
	cumFreq := this.cumFreqs[symbol]
	this.rng >>= this.shift
	this.low += cumFreq * this.rng
	this.rng *= this.cumFreqs[symbol+1] - cumFreq

	// If the left-most digits are the same throughout the range, write bits to bitstream
	for {
		if (this.low^(this.low+this.rng))&_RANGE_MASK != 0 {
			if this.rng > _RANGE_BOTTOM {
				break
			}

			// Normalize
			this.rng = -this.low & _RANGE_BOTTOM
		}

		this.bitstream.WriteBits(this.low>>32, 28)
		this.rng <<= 28
		this.low <<= 28
	}
}

// BitStream returns the underlying bitstream
func (this *RangeEncoder) BitStream() kanzi.OutputBitStream {
	return this.bitstream
}

// Dispose this implementation does nothing
func (this *RangeEncoder) Dispose() {
}

// RangeDecoder Order 0 range entropy decoder
type RangeDecoder struct {
	code      uint64
	low       uint64
	rng       uint64
	alphabet  [256]int
	freqs     [256]int
	cumFreqs  [257]uint64
	f2s       []uint16 // mapping frequency -> symbol
	bitstream kanzi.InputBitStream
	listeners []kanzi.Listener
	chunkSize int
	shift     uint
	blockID   int
}

// NewRangeDecoder creates a new instance of RangeDecoder.
// The given arguments are either empty or contain a chunk size that must
// match the one used by the encoder.
// EG: call NewRangeDecoder(bs) or NewRangeDecoder(bs, 16384)
func NewRangeDecoder(bs kanzi.InputBitStream, args ...uint) (*RangeDecoder, error) {
	return NewRangeDecoderWithCtx(bs, nil, args...)
}

// NewRangeDecoderWithCtx creates a new instance of RangeDecoder providing a
// context map ("chunkSize" and "listeners" keys).
func NewRangeDecoderWithCtx(bs kanzi.InputBitStream, ctx *map[string]interface{}, args ...uint) (*RangeDecoder, error) {
	if bs == nil {
		return nil, errors.Wrap(kanzi.ErrInvalidParam, "Range codec: invalid null bitstream parameter")
	}

	if len(args) > 1 {
		return nil, errors.Wrap(kanzi.ErrInvalidParam, "Range codec: at most one chunk size can be provided")
	}

	chkSize := DEFAULT_RANGE_CHUNK_SIZE

	if len(args) == 1 {
		chkSize = args[0]
	}

	var err error

	if chkSize, err = ctxUint(ctx, "chunkSize", chkSize); err != nil {
		return nil, err
	}

	listeners, err := ctxListeners(ctx)

	if err != nil {
		return nil, err
	}

	if err = checkRangeParams(chkSize, DEFAULT_RANGE_LOG_RANGE); err != nil {
		return nil, err
	}

	this := &RangeDecoder{}
	this.bitstream = bs
	this.chunkSize = int(chkSize)
	this.listeners = listeners
	return this, nil
}

func (this *RangeDecoder) decodeHeader(frequencies []int) (int, error) {
	alphabetSize, err := DecodeAlphabet(this.bitstream, this.alphabet[:])

	if err != nil || alphabetSize == 0 {
		return alphabetSize, err
	}

	for i := range frequencies {
		frequencies[i] = 0
	}

	logRange := uint(8 + this.bitstream.ReadBits(3))
	scale := 1 << logRange
	this.shift = logRange
	sum := 0
	chkSize := 8

	if alphabetSize < 64 {
		chkSize = 6
	}

	llr := uint(3)

	for 1<<llr <= logRange {
		llr++
	}

	// Decode all frequencies (but the first one)
	for i := 1; i < alphabetSize; i += chkSize {
		logMax := uint(this.bitstream.ReadBits(llr))

		if 1<<logMax > scale {
			return alphabetSize, errors.Wrapf(kanzi.ErrInvalidBitstream, "Range codec: incorrect frequency size %d", logMax)
		}

		endj := min(i+chkSize, alphabetSize)

		for j := i; j < endj; j++ {
			freq := 1

			if logMax > 0 {
				freq = int(1 + this.bitstream.ReadBits(logMax))

				if freq >= scale {
					return alphabetSize, errors.Wrapf(kanzi.ErrInvalidBitstream, "Range codec: incorrect frequency %d for symbol %d", freq, this.alphabet[j])
				}
			}

			frequencies[this.alphabet[j]] = freq
			sum += freq
		}
	}

	// Infer first frequency
	if scale <= sum {
		return alphabetSize, errors.Wrapf(kanzi.ErrInvalidBitstream, "Range codec: incorrect frequency for symbol %d", this.alphabet[0])
	}

	frequencies[this.alphabet[0]] = scale - sum
	this.cumFreqs[0] = 0

	if len(this.f2s) < scale {
		this.f2s = slices.Grow(this.f2s[:0], scale)[:scale]
	}

	// Create reverse mapping
	for i := range frequencies {
		this.cumFreqs[i+1] = this.cumFreqs[i] + uint64(frequencies[i])
		f2s := this.f2s[this.cumFreqs[i]:this.cumFreqs[i+1]]

		for j := range f2s {
			f2s[j] = uint16(i)
		}
	}

	return alphabetSize, nil
}

// Read decodes data from the bitstream and return it in the provided buffer.
// Decode the data chunk by chunk sequentially.
// Return the number of bytes decoded.
func (this *RangeDecoder) Read(block []byte) (int, error) {
	if block == nil {
		return 0, errors.Wrap(kanzi.ErrInvalidParam, "Range codec: invalid null block parameter")
	}

	if len(block) == 0 {
		return 0, nil
	}

	sizeChunk := this.chunkSize

	if sizeChunk == 0 {
		sizeChunk = len(block)
	}

	end := len(block)
	read := this.bitstream.Read()
	notify(this.listeners, kanzi.EVT_BEFORE_ENTROPY, this.blockID, int64(end))

	for startChunk, chunk := 0, 0; startChunk < end; chunk++ {
		endChunk := min(startChunk+sizeChunk, end)
		chunkRead := this.bitstream.Read()
		alphabetSize, err := this.decodeHeader(this.freqs[:])

		if err != nil {
			return startChunk, err
		}

		if alphabetSize == 0 {
			return startChunk, errors.Wrap(kanzi.ErrInvalidBitstream, "Range codec: empty alphabet")
		}

		buf := block[startChunk:endChunk]

		if alphabetSize == 1 {
			// Shortcut for chunks with only one symbol
			for i := range buf {
				buf[i] = byte(this.alphabet[0])
			}
		} else {
			this.rng = _RANGE_TOP
			this.low = 0
			this.code = this.bitstream.ReadBits(60)

			for i := range buf {
				buf[i] = this.decodeByte()
			}
		}

		notify(this.listeners, kanzi.EVT_AFTER_CHUNK, chunk, int64((this.bitstream.Read()-chunkRead+7)>>3))
		startChunk = endChunk
	}

	notify(this.listeners, kanzi.EVT_AFTER_ENTROPY, this.blockID, int64((this.bitstream.Read()-read+7)>>3))
	this.blockID++
	return end, nil
}

func (this *RangeDecoder) decodeByte() byte {
	// Compute next low and range
	this.rng >>= this.shift
	count := (this.code - this.low) / this.rng

	// Only reachable with a corrupted bitstream
	if count >= this.cumFreqs[256] {
		count = this.cumFreqs[256] - 1
	}

	symbol := this.f2s[count]
	cumFreq := this.cumFreqs[symbol]
	this.low += cumFreq * this.rng
	this.rng *= this.cumFreqs[symbol+1] - cumFreq

	// If the left-most digits are the same throughout the range, read bits from bitstream
	for {
		if (this.low^(this.low+this.rng))&_RANGE_MASK != 0 {
			if this.rng > _RANGE_BOTTOM {
				break
			}

			// Normalize
			this.rng = -this.low & _RANGE_BOTTOM
		}

		this.code = (this.code << 28) | this.bitstream.ReadBits(28)
		this.rng <<= 28
		this.low <<= 28
	}

	return byte(symbol)
}

// BitStream returns the underlying bitstream
func (this *RangeDecoder) BitStream() kanzi.InputBitStream {
	return this.bitstream
}

// Dispose this implementation does nothing
func (this *RangeDecoder) Dispose() {
}
