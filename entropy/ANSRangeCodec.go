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

// Implementation of an Asymmetric Numeral System codec.
// See "Asymmetric Numeral System" by Jarek Duda at http://arxiv.org/abs/0902.0271
// Some code has been ported from https://github.com/rygorous/ryg_rans
// For an alternate C implementation example, see https://github.com/Cyan4973/FiniteStateEntropy

const (
	ANS_TOP                 = 1 << 23
	DEFAULT_ANS0_CHUNK_SIZE = uint(1 << 15) // 32 KB by default
	DEFAULT_ANS_LOG_RANGE   = uint(13)      // max possible for ANS_TOP=1<23
	ANS_MIN_CHUNK_SIZE      = uint(1024)
	ANS_MAX_CHUNK_SIZE      = uint(1 << 27)

	// Chunk headers store the log range minus 8 in 3 bits
	_HEADER_MAX_LOG_RANGE = uint(15)
)

// ANSRangeEncoder entropy codes bytes with order 0 or order 1 statistics.
// Each chunk of the block gets its own frequency table, written ahead of
// the coded data.
type ANSRangeEncoder struct {
	bitstream kanzi.OutputBitStream
	alphabet  []int
	freqs     []int
	symbols   []encSymbol
	buffer    []byte
	eu        *EntropyUtils
	listeners []kanzi.Listener
	chunkSize int
	order     uint
	logRange  uint
	blockID   int
}

type encSymbol struct {
	xMax     int    // (Exclusive) upper bound of pre-normalization interval
	bias     int    // Bias
	cmplFreq int    // Complement of frequency: (1 << scale_bits) - freq
	invShift uint8  // Reciprocal shift
	invFreq  uint64 // Fixed-point reciprocal frequency
}

// ansParams collects the positional arguments (order, chunk size, log range)
// and applies the defaults.
func ansParams(args []uint, maxArgs int) (order, chkSize, logRange uint, err error) {
	if len(args) > maxArgs {
		return 0, 0, 0, errors.Wrapf(kanzi.ErrInvalidParam, "ANS codec: at most %d parameters can be provided", maxArgs)
	}

	chkSize = DEFAULT_ANS0_CHUNK_SIZE
	logRange = DEFAULT_ANS_LOG_RANGE

	if len(args) > 0 {
		order = args[0]
	}

	if len(args) > 1 {
		chkSize = args[1]
	} else if order == 1 {
		chkSize = min(chkSize<<8, ANS_MAX_CHUNK_SIZE)
	}

	if len(args) > 2 {
		logRange = args[2]
	}

	return order, chkSize, logRange, nil
}

func checkANSParams(order, chkSize, logRange uint) error {
	if order != 0 && order != 1 {
		return errors.Wrapf(kanzi.ErrInvalidParam, "ANS codec: invalid order %d (must be 0 or 1)", order)
	}

	if chkSize != 0 && chkSize < ANS_MIN_CHUNK_SIZE {
		return errors.Wrapf(kanzi.ErrInvalidParam, "ANS codec: the chunk size must be at least %d", ANS_MIN_CHUNK_SIZE)
	}

	if chkSize > ANS_MAX_CHUNK_SIZE {
		return errors.Wrapf(kanzi.ErrInvalidParam, "ANS codec: the chunk size must be at most %d", ANS_MAX_CHUNK_SIZE)
	}

	if logRange < 8 || logRange > 16 {
		return errors.Wrapf(kanzi.ErrInvalidParam, "ANS codec: invalid range %d (must be in [8..16])", logRange)
	}

	return nil
}

// NewANSRangeEncoder creates a new instance of ANSRangeEncoder.
// The chunk size indicates how many bytes are encoded (per block) before
// resetting the frequency stats. 0 means that frequencies calculated at the
// beginning of the block apply to the whole block.
// Since the number of args is variable, this function can be called like this:
// NewANSRangeEncoder(bs) or NewANSRangeEncoder(bs, 0, 16384, 12)
// Arguments are order, chunk size and log range.
func NewANSRangeEncoder(bs kanzi.OutputBitStream, args ...uint) (*ANSRangeEncoder, error) {
	return NewANSRangeEncoderWithCtx(bs, nil, args...)
}

// NewANSRangeEncoderWithCtx creates a new instance of ANSRangeEncoder providing a
// context map. The "chunkSize" and "logRange" keys override the positional
// arguments and the "listeners" key registers event listeners.
func NewANSRangeEncoderWithCtx(bs kanzi.OutputBitStream, ctx *map[string]interface{}, args ...uint) (*ANSRangeEncoder, error) {
	if bs == nil {
		return nil, errors.Wrap(kanzi.ErrInvalidParam, "ANS codec: invalid null bitstream parameter")
	}

	order, chkSize, logRange, err := ansParams(args, 3)

	if err != nil {
		return nil, err
	}

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

	if err = checkANSParams(order, chkSize, logRange); err != nil {
		return nil, err
	}

	this := &ANSRangeEncoder{}
	this.bitstream = bs
	this.order = order
	dim := int(255*order + 1)
	this.alphabet = make([]int, 256)
	this.freqs = make([]int, dim*257) // freqs[x][256] = total(freqs[x][0..255])
	this.symbols = make([]encSymbol, dim*256)
	this.logRange = logRange
	this.chunkSize = int(chkSize)
	this.eu = NewEntropyUtils()
	this.listeners = listeners
	return this, nil
}

// Compute cumulated frequencies and encode header
func (this *ANSRangeEncoder) updateFrequencies(frequencies []int, lr uint) (int, error) {
	res := 0
	endk := int(255*this.order + 1)
	this.bitstream.WriteBits(uint64(lr-8), 3) // logRange

	for k := 0; k < endk; k++ {
		f := frequencies[257*k : 257*(k+1)]
		symb := this.symbols[k<<8 : (k+1)<<8]
		alphabetSize, err := this.eu.NormalizeFrequencies(f, this.alphabet, f[256], 1<<lr)

		if err != nil {
			return res, err
		}

		if alphabetSize > 0 {
			sum := 0

			for _, s := range this.alphabet[0:alphabetSize] {
				symb[s].reset(sum, f[s], lr)
				sum += f[s]
			}
		}

		if err = this.encodeHeader(this.alphabet[0:alphabetSize], f, lr); err != nil {
			return res, err
		}

		res += alphabetSize
	}

	return res, nil
}

// Encode alphabet and frequencies
func (this *ANSRangeEncoder) encodeHeader(alphabet []int, frequencies []int, lr uint) error {
	if _, err := EncodeAlphabet(this.bitstream, alphabet, 256); err != nil {
		return err
	}

	alphabetSize := len(alphabet)

	if alphabetSize == 0 {
		return nil
	}

	chkSize := 12

	if alphabetSize < 64 {
		chkSize = 6
	}

	llr := uint(3)

	for 1<<llr <= lr {
		llr++
	}

	// Encode all frequencies (but the first one) by chunks
	for i := 1; i < alphabetSize; i += chkSize {
		max := 0
		logMax := uint(1)
		endj := min(i+chkSize, alphabetSize)

		// Search for max frequency log size in next chunk
		for j := i; j < endj; j++ {
			if frequencies[alphabet[j]] > max {
				max = frequencies[alphabet[j]]
			}
		}

		for 1<<logMax <= max {
			logMax++
		}

		this.bitstream.WriteBits(uint64(logMax-1), llr)

		// Write frequencies
		for j := i; j < endj; j++ {
			this.bitstream.WriteBits(uint64(frequencies[alphabet[j]]), logMax)
		}
	}

	return nil
}

// Write encodes the data provided into the bitstream. Return the number of bytes
// read from the input. The frequencies are computed for each chunk of data.
func (this *ANSRangeEncoder) Write(block []byte) (int, error) {
	if block == nil {
		return 0, errors.Wrap(kanzi.ErrInvalidParam, "ANS codec: invalid null block parameter")
	}

	if len(block) == 0 {
		return 0, nil
	}

	sizeChunk := this.chunkSize

	if sizeChunk == 0 {
		sizeChunk = len(block)
	}

	sizeChunk = min(sizeChunk, len(block))
	written := this.bitstream.Written()
	notify(this.listeners, kanzi.EVT_BEFORE_ENTROPY, this.blockID, int64(len(block)))

	// Worst case: 2 bytes per symbol (lr <= 16)
	if size := 2*sizeChunk + 64; len(this.buffer) < size {
		this.buffer = slices.Grow(this.buffer[:0], size)[:size]
	}

	end := len(block)

	for startChunk, chunk := 0, 0; startChunk < end; chunk++ {
		endChunk := min(startChunk+sizeChunk, end)
		lr := min(this.logRange, _HEADER_MAX_LOG_RANGE)
		chunkWritten := this.bitstream.Written()

		// Lower log range if the size of the data block is small
		for lr > 8 && 1<<lr > endChunk-startChunk {
			lr--
		}

		if _, err := this.rebuildStatistics(block[startChunk:endChunk], lr); err != nil {
			return startChunk, err
		}

		this.encodeChunk(block[startChunk:endChunk])
		notify(this.listeners, kanzi.EVT_AFTER_CHUNK, chunk, int64((this.bitstream.Written()-chunkWritten+7)>>3))
		startChunk = endChunk
	}

	notify(this.listeners, kanzi.EVT_AFTER_ENTROPY, this.blockID, int64((this.bitstream.Written()-written+7)>>3))
	this.blockID++
	return end, nil
}

func (this *ANSRangeEncoder) encodeChunk(block []byte) {
	st := ANS_TOP
	n := len(this.buffer) - 1
	buf := this.buffer

	// encodeSymbol computes the next ANS state
	// C(s,x) = M floor(x/q_s) + mod(x,q_s) + b_s where b_s = q_0 + ... + q_{s-1}
	// st = ((st / freq) << lr) + (st % freq) + cumFreq[prv];
	encodeSymbol := func(sym *encSymbol) {
		for st >= sym.xMax {
			buf[n] = byte(st)
			n--
			st >>= 8
		}

		q := int((uint64(st) * sym.invFreq) >> sym.invShift)
		st = st + sym.bias + q*sym.cmplFreq
	}

	if this.order == 0 {
		symb := this.symbols[0:256]

		for i := len(block) - 1; i >= 0; i-- {
			encodeSymbol(&symb[block[i]])
		}
	} else { // order 1
		symb := this.symbols
		prv := int(block[len(block)-1])

		for i := len(block) - 2; i >= 0; i-- {
			cur := int(block[i])
			encodeSymbol(&symb[(cur<<8)|prv])
			prv = cur
		}

		// First symbol (context 0)
		encodeSymbol(&symb[prv])
	}

	// Write chunk size, final ANS state and encoded data
	n++
	WriteVarInt(this.bitstream, uint32(len(buf)-n))
	this.bitstream.WriteBits(uint64(st), 32)

	if n < len(buf) {
		this.bitstream.WriteArray(buf[n:], uint(8*(len(buf)-n)))
	}
}

// Compute chunk frequencies, cumulated frequencies and encode chunk header
func (this *ANSRangeEncoder) rebuildStatistics(block []byte, lr uint) (int, error) {
	kanzi.ComputeHistogram(block, this.freqs, this.order == 0, true)
	return this.updateFrequencies(this.freqs, lr)
}

// Dispose this implementation does nothing
func (this *ANSRangeEncoder) Dispose() {
}

// BitStream returns the underlying bitstream
func (this *ANSRangeEncoder) BitStream() kanzi.OutputBitStream {
	return this.bitstream
}

func (this *encSymbol) reset(cumFreq, freq int, logRange uint) {
	// Make sure xMax is a positive int32
	if freq >= 1<<logRange {
		freq = (1 << logRange) - 1
	}

	this.xMax = ((ANS_TOP >> logRange) << 8) * freq
	this.cmplFreq = (1 << logRange) - freq

	if freq < 2 {
		this.invFreq = 0xFFFFFFFF
		this.invShift = 32
		this.bias = cumFreq + (1 << logRange) - 1
	} else {
		shift := uint(0)

		for freq > 1<<shift {
			shift++
		}

		// Alverson, "Integer Division using reciprocals"
		this.invFreq = (((1 << (shift + 31)) + uint64(freq-1)) / uint64(freq)) & 0xFFFFFFFF
		this.invShift = uint8(32 + shift - 1)
		this.bias = cumFreq
	}
}

// ANSRangeDecoder decodes data written by ANSRangeEncoder. The order and the
// chunk size must match the ones used by the encoder.
type ANSRangeDecoder struct {
	bitstream kanzi.InputBitStream
	freqs     []int
	symbols   []decSymbol
	f2s       []byte // mapping frequency -> symbol
	alphabet  []int
	buffer    []byte
	listeners []kanzi.Listener
	chunkSize int
	logRange  uint
	order     uint
	blockID   int
}

type decSymbol struct {
	cumFreq int
	freq    int
}

// NewANSRangeDecoder creates a new instance of ANSRangeDecoder.
// Arguments are order and chunk size (see NewANSRangeEncoder).
func NewANSRangeDecoder(bs kanzi.InputBitStream, args ...uint) (*ANSRangeDecoder, error) {
	return NewANSRangeDecoderWithCtx(bs, nil, args...)
}

// NewANSRangeDecoderWithCtx creates a new instance of ANSRangeDecoder providing a
// context map ("chunkSize" and "listeners" keys).
func NewANSRangeDecoderWithCtx(bs kanzi.InputBitStream, ctx *map[string]interface{}, args ...uint) (*ANSRangeDecoder, error) {
	if bs == nil {
		return nil, errors.Wrap(kanzi.ErrInvalidParam, "ANS codec: invalid null bitstream parameter")
	}

	order, chkSize, _, err := ansParams(args, 2)

	if err != nil {
		return nil, err
	}

	if chkSize, err = ctxUint(ctx, "chunkSize", chkSize); err != nil {
		return nil, err
	}

	listeners, err := ctxListeners(ctx)

	if err != nil {
		return nil, err
	}

	if err = checkANSParams(order, chkSize, DEFAULT_ANS_LOG_RANGE); err != nil {
		return nil, err
	}

	this := &ANSRangeDecoder{}
	this.bitstream = bs
	this.chunkSize = int(chkSize)
	this.order = order
	dim := int(255*order + 1)
	this.alphabet = make([]int, 256)
	this.freqs = make([]int, dim*256)
	this.symbols = make([]decSymbol, dim*256)
	this.listeners = listeners
	return this, nil
}

// Decode alphabet and frequencies
func (this *ANSRangeDecoder) decodeHeader(frequencies []int) (int, error) {
	res := 0
	dim := int(255*this.order + 1)
	this.logRange = uint(8 + this.bitstream.ReadBits(3))
	scale := 1 << this.logRange

	if len(this.f2s) < dim*scale {
		this.f2s = slices.Grow(this.f2s[:0], dim*scale)[:dim*scale]
	}

	llr := uint(3)

	for 1<<llr <= this.logRange {
		llr++
	}

	for k := 0; k < dim; k++ {
		f := frequencies[k<<8 : (k+1)<<8]
		alphabetSize, err := DecodeAlphabet(this.bitstream, this.alphabet)

		if err != nil {
			return res, err
		}

		if alphabetSize == 0 {
			continue
		}

		alphabet := this.alphabet[0:alphabetSize]

		for i := range f {
			f[i] = 0
		}

		chkSize := 12
		sum := 0

		if alphabetSize < 64 {
			chkSize = 6
		}

		// Decode all frequencies (but the first one) by chunks
		for i := 1; i < alphabetSize; i += chkSize {
			// Read frequencies size for current chunk
			logMax := uint(1 + this.bitstream.ReadBits(llr))

			if 1<<logMax > scale {
				return res, errors.Wrapf(kanzi.ErrInvalidBitstream, "ANS codec: incorrect frequency size %d", logMax)
			}

			endj := min(i+chkSize, alphabetSize)

			// Read frequencies
			for j := i; j < endj; j++ {
				freq := int(this.bitstream.ReadBits(logMax))

				if freq <= 0 || freq >= scale {
					return res, errors.Wrapf(kanzi.ErrInvalidBitstream, "ANS codec: incorrect frequency %d for symbol '%d'", freq, alphabet[j])
				}

				f[alphabet[j]] = freq
				sum += freq
			}
		}

		// Infer first frequency
		if scale <= sum {
			return res, errors.Wrapf(kanzi.ErrInvalidBitstream, "ANS codec: incorrect frequency sum %d for range %d", sum, scale)
		}

		f[alphabet[0]] = scale - sum
		sum = 0
		symb := this.symbols[k<<8 : (k+1)<<8]
		freq2sym := this.f2s[k<<this.logRange : (k+1)<<this.logRange]

		// Create reverse mapping
		for _, s := range alphabet {
			for j := f[s] - 1; j >= 0; j-- {
				freq2sym[sum+j] = byte(s)
			}

			symb[s].reset(sum, f[s], this.logRange)
			sum += f[s]
		}

		res += alphabetSize
	}

	return res, nil
}

// Read decodes data from the bitstream and return it in the provided buffer.
// Return the number of bytes decoded.
func (this *ANSRangeDecoder) Read(block []byte) (int, error) {
	if block == nil {
		return 0, errors.Wrap(kanzi.ErrInvalidParam, "ANS codec: invalid null block parameter")
	}

	if len(block) == 0 {
		return 0, nil
	}

	end := len(block)
	sizeChunk := this.chunkSize

	if sizeChunk == 0 {
		sizeChunk = len(block)
	}

	sizeChunk = min(sizeChunk, len(block))
	read := this.bitstream.Read()
	notify(this.listeners, kanzi.EVT_BEFORE_ENTROPY, this.blockID, int64(len(block)))

	for i := range this.symbols {
		this.symbols[i] = decSymbol{}
	}

	for startChunk, chunk := 0, 0; startChunk < end; chunk++ {
		chunkRead := this.bitstream.Read()
		alphabetSize, err := this.decodeHeader(this.freqs)

		if err != nil {
			return startChunk, err
		}

		if alphabetSize == 0 {
			return startChunk, errors.Wrap(kanzi.ErrInvalidBitstream, "ANS codec: empty alphabet")
		}

		endChunk := min(startChunk+sizeChunk, end)

		if err = this.decodeChunk(block[startChunk:endChunk]); err != nil {
			return startChunk, err
		}

		notify(this.listeners, kanzi.EVT_AFTER_CHUNK, chunk, int64((this.bitstream.Read()-chunkRead+7)>>3))
		startChunk = endChunk
	}

	notify(this.listeners, kanzi.EVT_AFTER_ENTROPY, this.blockID, int64((this.bitstream.Read()-read+7)>>3))
	this.blockID++
	return end, nil
}

func (this *ANSRangeDecoder) decodeChunk(block []byte) error {
	// Read chunk size, initial ANS state and encoded data
	v, err := ReadVarInt(this.bitstream)

	if err != nil {
		return err
	}

	sz := int(v)

	// At most 2 bytes per symbol
	if sz > 2*len(block)+64 {
		return errors.Wrapf(kanzi.ErrInvalidBitstream, "ANS codec: incorrect chunk size %d", sz)
	}

	st := int(this.bitstream.ReadBits(32))

	if len(this.buffer) < sz {
		this.buffer = slices.Grow(this.buffer[:0], sz)[:sz]
	}

	buf := this.buffer[0:sz]

	if sz > 0 {
		this.bitstream.ReadArray(buf, uint(8*sz))
	}

	idx := 0
	lr := this.logRange
	mask := (1 << lr) - 1

	// decodeSymbol computes the next ANS state then renormalizes.
	// D(x) = (s, q_s (x/M) + mod(x,M) - b_s) where s is such b_s <= x mod M < b_{s+1}
	// Past the end of the coded data, zeros are shifted in.
	decodeSymbol := func(sym *decSymbol) {
		st = sym.freq*(st>>lr) + (st & mask) - sym.cumFreq

		for k := 0; st < ANS_TOP && k < 4; k++ {
			st <<= 8

			if idx < sz {
				st |= int(buf[idx])
				idx++
			}
		}
	}

	if this.order == 0 {
		freq2sym := this.f2s[0 : mask+1]
		symb := this.symbols[0:256]

		for i := range block {
			cur := freq2sym[st&mask]
			block[i] = cur
			decodeSymbol(&symb[cur])
		}
	} else {
		symb := this.symbols
		prv := 0

		for i := range block {
			cur := int(this.f2s[(prv<<lr)+(st&mask)])
			block[i] = byte(cur)
			decodeSymbol(&symb[(prv<<8)|cur])
			prv = cur
		}
	}

	return nil
}

// BitStream returns the underlying bitstream
func (this *ANSRangeDecoder) BitStream() kanzi.InputBitStream {
	return this.bitstream
}

// Dispose this implementation does nothing
func (this *ANSRangeDecoder) Dispose() {
}

func (this *decSymbol) reset(cumFreq, freq int, logRange uint) {
	// Mirror encoder
	if freq >= 1<<logRange {
		freq = (1 << logRange) - 1
	}

	this.cumFreq = cumFreq
	this.freq = freq
}
