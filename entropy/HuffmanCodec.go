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

const (
	HUF_MIN_CHUNK_SIZE   = uint(1024)
	HUF_MAX_CHUNK_SIZE   = uint(1 << 14)
	_HUF_MAX_SYMBOL_SIZE = 12
	_HUF_BUFFER_SIZE     = (_HUF_MAX_SYMBOL_SIZE << 8) + 256
	_HUF_DECODING_MASK   = (1 << _HUF_MAX_SYMBOL_SIZE) - 1
)

// huffmanParams returns the chunk size from the positional argument and the
// "chunkSize" context key. 0 selects the default (and maximum) chunk size.
func huffmanParams(ctx *map[string]interface{}, args []uint) (int, []kanzi.Listener, error) {
	if len(args) > 1 {
		return 0, nil, errors.Wrap(kanzi.ErrInvalidParam, "Huffman codec: at most one chunk size can be provided")
	}

	chkSize := HUF_MAX_CHUNK_SIZE

	if len(args) == 1 {
		chkSize = args[0]
	}

	chkSize, err := ctxUint(ctx, "chunkSize", chkSize)

	if err != nil {
		return 0, nil, err
	}

	if chkSize == 0 {
		chkSize = HUF_MAX_CHUNK_SIZE
	}

	if chkSize < HUF_MIN_CHUNK_SIZE {
		return 0, nil, errors.Wrapf(kanzi.ErrInvalidParam, "Huffman codec: the chunk size must be at least %d", HUF_MIN_CHUNK_SIZE)
	}

	if chkSize > HUF_MAX_CHUNK_SIZE {
		return 0, nil, errors.Wrapf(kanzi.ErrInvalidParam, "Huffman codec: the chunk size must be at most %d", HUF_MAX_CHUNK_SIZE)
	}

	listeners, err := ctxListeners(ctx)

	if err != nil {
		return 0, nil, err
	}

	return int(chkSize), listeners, nil
}

// generateCanonicalCodes sorts the symbols by code length then symbol value
// and assigns the canonical codes. Returns the number of codes generated.
func generateCanonicalCodes(sizes []byte, codes []uint16, symbols []int) (int, error) {
	count := len(symbols)

	if count == 0 {
		return 0, nil
	}

	if count > 1 {
		var buf [_HUF_BUFFER_SIZE]byte

		for _, s := range symbols {
			if s > 255 || sizes[s] == 0 || sizes[s] > _HUF_MAX_SYMBOL_SIZE {
				return -1, errors.Wrapf(kanzi.ErrInvalidBitstream, "Huffman codec: invalid code length for symbol %d", s)
			}

			buf[(int(sizes[s]-1)<<8)|s] = 1
		}

		for i, n := 0, 0; n < count; i++ {
			symbols[n] = i & 0xFF
			n += int(buf[i])
		}
	}

	code := uint16(0)
	curLen := sizes[symbols[0]]

	for _, s := range symbols {
		if sizes[s] > curLen {
			code <<= sizes[s] - curLen
			curLen = sizes[s]
		}

		codes[s] = code
		code++
	}

	return count, nil
}

// HuffmanEncoder static Huffman encoder. The code lengths are computed per
// chunk and transmitted (Exp-Golomb coded differences) ahead of the data.
// Canonical codes are generated in place instead of walking a tree.
type HuffmanEncoder struct {
	bitstream kanzi.OutputBitStream
	codes     [256]uint16 // code length << 12 | code
	buffer    []byte
	eu        *EntropyUtils
	listeners []kanzi.Listener
	chunkSize int
	blockID   int
}

// NewHuffmanEncoder creates an instance of HuffmanEncoder.
// Since the number of args is variable, this function can be called like this:
// NewHuffmanEncoder(bs) or NewHuffmanEncoder(bs, 4096) (the second argument
// being the chunk size)
func NewHuffmanEncoder(bs kanzi.OutputBitStream, args ...uint) (*HuffmanEncoder, error) {
	return NewHuffmanEncoderWithCtx(bs, nil, args...)
}

// NewHuffmanEncoderWithCtx creates an instance of HuffmanEncoder providing a
// context map ("chunkSize" and "listeners" keys).
func NewHuffmanEncoderWithCtx(bs kanzi.OutputBitStream, ctx *map[string]interface{}, args ...uint) (*HuffmanEncoder, error) {
	if bs == nil {
		return nil, errors.Wrap(kanzi.ErrInvalidParam, "Huffman codec: invalid null bitstream parameter")
	}

	chkSize, listeners, err := huffmanParams(ctx, args)

	if err != nil {
		return nil, err
	}

	this := &HuffmanEncoder{}
	this.bitstream = bs
	this.chunkSize = chkSize
	this.eu = NewEntropyUtils()
	this.listeners = listeners
	return this, nil
}

// Rebuild the Huffman codes and write the alphabet and the code lengths
func (this *HuffmanEncoder) updateFrequencies(freqs []int) (int, error) {
	count := 0
	var sizes [256]byte
	var alphabet [256]int

	for i := range this.codes {
		this.codes[i] = 0

		if freqs[i] > 0 {
			alphabet[count] = i
			count++
		}
	}

	symbols := alphabet[0:count]

	if _, err := EncodeAlphabet(this.bitstream, symbols, 256); err != nil {
		return count, err
	}

	if count == 0 {
		return 0, nil
	}

	if count == 1 {
		this.codes[symbols[0]] = 1 << 12
		sizes[symbols[0]] = 1
	} else {
		var ranks [256]int

		for retries := uint(0); ; retries++ {
			// Sort ranks by increasing freqs (first key) and increasing value (second key)
			for i, s := range symbols {
				ranks[i] = (freqs[s] << 8) | s
			}

			maxCodeLen, err := this.computeCodeLengths(sizes[:], ranks[0:count])

			if err != nil {
				return count, err
			}

			if maxCodeLen <= _HUF_MAX_SYMBOL_SIZE {
				if _, err := generateCanonicalCodes(sizes[:], this.codes[:], ranks[0:count]); err != nil {
					return count, err
				}

				break
			}

			if retries > 2 {
				return count, errors.Errorf("Huffman codec: max code length (%d bits) exceeded", _HUF_MAX_SYMBOL_SIZE)
			}

			// The codes are too long: flatten the distribution by normalizing
			// the frequencies to a smaller scale (boosts the rare symbols).
			// With a total of 256, no code can be longer than 11 bits.
			var f [256]int
			var alpha [256]int
			totalFreq := 0

			for i, s := range symbols {
				f[i] = freqs[s]
				totalFreq += f[i]
			}

			if _, err := this.eu.NormalizeFrequencies(f[:count], alpha[:count], totalFreq, int(HUF_MAX_CHUNK_SIZE>>(2*retries+2))); err != nil {
				return count, err
			}

			for i, s := range symbols {
				freqs[s] = f[i]
			}
		}
	}

	// Transmit code lengths only, frequencies and codes do not matter
	egenc, err := NewExpGolombEncoder(this.bitstream, true)

	if err != nil {
		return count, err
	}

	prevSize := byte(2)

	for _, s := range symbols {
		curSize := sizes[s]
		this.codes[s] |= uint16(curSize) << 12
		egenc.EncodeByte(curSize - prevSize)
		prevSize = curSize
	}

	egenc.Dispose()
	return count, nil
}

// Called only when more than 1 symbol (len(ranks) >= 2)
func (this *HuffmanEncoder) computeCodeLengths(sizes []byte, ranks []int) (int, error) {
	var frequencies [256]int
	freqs := frequencies[0:len(ranks)]
	slices.Sort(ranks)

	for i := range ranks {
		freqs[i] = ranks[i] >> 8
		ranks[i] &= 0xFF

		if freqs[i] == 0 {
			return 0, errors.New("Huffman codec: invalid code length 0")
		}
	}

	// See [In-Place Calculation of Minimum-Redundancy Codes]
	// by Alistair Moffat & Jyrki Katajainen
	computeInPlaceSizesPhase1(freqs)
	maxCodeLen := computeInPlaceSizesPhase2(freqs)

	if maxCodeLen <= _HUF_MAX_SYMBOL_SIZE {
		for i := range freqs {
			sizes[ranks[i]] = byte(freqs[i])
		}
	}

	return maxCodeLen, nil
}

func computeInPlaceSizesPhase1(data []int) {
	n := len(data)

	for s, r, t := 0, 0, 0; t < n-1; t++ {
		sum := 0

		for i := 0; i < 2; i++ {
			if s >= n || (r < t && data[r] < data[s]) {
				sum += data[r]
				data[r] = t
				r++
				continue
			}

			sum += data[s]

			if s > t {
				data[s] = 0
			}

			s++
		}

		data[t] = sum
	}
}

// len(data) must be at least 2
func computeInPlaceSizesPhase2(data []int) int {
	if len(data) < 2 {
		return 0
	}

	levelTop := len(data) - 2 // root
	depth := 1
	i := len(data)
	totalNodesAtLevel := 2

	for i > 0 {
		k := levelTop

		for k > 0 && data[k-1] >= levelTop {
			k--
		}

		internalNodesAtLevel := levelTop - k
		leavesAtLevel := totalNodesAtLevel - internalNodesAtLevel

		for j := 0; j < leavesAtLevel; j++ {
			i--
			data[i] = depth
		}

		totalNodesAtLevel = internalNodesAtLevel << 1
		levelTop = k
		depth++
	}

	return depth - 1
}

// Write encodes the data provided into the bitstream. Return the number of bytes
// read from the input. The code lengths are computed for each chunk of data.
func (this *HuffmanEncoder) Write(block []byte) (int, error) {
	if block == nil {
		return 0, errors.Wrap(kanzi.ErrInvalidParam, "Huffman codec: invalid null block parameter")
	}

	if len(block) == 0 {
		return 0, nil
	}

	end := len(block)
	written := this.bitstream.Written()
	notify(this.listeners, kanzi.EVT_BEFORE_ENTROPY, this.blockID, int64(end))

	// Worst case: 12 bits per symbol
	if size := (3*min(this.chunkSize, end))/2 + 8; len(this.buffer) < size {
		this.buffer = slices.Grow(this.buffer[:0], size)[:size]
	}

	var freqs [256]int

	for startChunk, chunk := 0, 0; startChunk < end; chunk++ {
		endChunk := min(startChunk+this.chunkSize, end)
		chunkWritten := this.bitstream.Written()
		kanzi.ComputeHistogram(block[startChunk:endChunk], freqs[:], true, false)
		count, err := this.updateFrequencies(freqs[:])

		if err != nil {
			return startChunk, err
		}

		// Nothing else to write if only one symbol
		if count > 1 {
			this.encodeChunk(block[startChunk:endChunk])
		}

		notify(this.listeners, kanzi.EVT_AFTER_CHUNK, chunk, int64((this.bitstream.Written()-chunkWritten+7)>>3))
		startChunk = endChunk
	}

	notify(this.listeners, kanzi.EVT_AFTER_ENTROPY, this.blockID, int64((this.bitstream.Written()-written+7)>>3))
	this.blockID++
	return end, nil
}

func (this *HuffmanEncoder) encodeChunk(block []byte) {
	buf := this.buffer
	c := &this.codes
	idx := 0
	state := uint64(0)
	bits := uint(0) // number of pending bits in state

	for _, b := range block {
		code := c[b]
		codeLen := uint(code >> 12)
		state = (state << codeLen) | uint64(code&0x0FFF)
		bits += codeLen

		for bits >= 8 {
			bits -= 8
			buf[idx] = byte(state >> bits)
			idx++
		}
	}

	nbBits := 8*idx + int(bits)

	if bits > 0 {
		buf[idx] = byte(state << (8 - bits))
		idx++
	}

	// Number of streams (only one supported), chunk size in bits, then data
	this.bitstream.WriteBits(0, 2)
	WriteVarInt(this.bitstream, uint32(nbBits))
	this.bitstream.WriteArray(buf[0:idx], uint(nbBits))
}

// Dispose this implementation does nothing
func (this *HuffmanEncoder) Dispose() {
}

// BitStream returns the underlying bitstream
func (this *HuffmanEncoder) BitStream() kanzi.OutputBitStream {
	return this.bitstream
}

// HuffmanDecoder static Huffman decoder. Symbols are decoded with a table
// indexed by the next 12 bits of the stream.
type HuffmanDecoder struct {
	bitstream kanzi.InputBitStream
	codes     [256]uint16
	alphabet  [256]int
	sizes     [256]byte
	buffer    []byte
	table     []uint16 // code -> symbol << 8 | code length
	listeners []kanzi.Listener
	chunkSize int
	blockID   int
}

// NewHuffmanDecoder creates an instance of HuffmanDecoder.
// The chunk size must match the one used by the encoder.
func NewHuffmanDecoder(bs kanzi.InputBitStream, args ...uint) (*HuffmanDecoder, error) {
	return NewHuffmanDecoderWithCtx(bs, nil, args...)
}

// NewHuffmanDecoderWithCtx creates an instance of HuffmanDecoder providing a
// context map ("chunkSize" and "listeners" keys).
func NewHuffmanDecoderWithCtx(bs kanzi.InputBitStream, ctx *map[string]interface{}, args ...uint) (*HuffmanDecoder, error) {
	if bs == nil {
		return nil, errors.Wrap(kanzi.ErrInvalidParam, "Huffman codec: invalid null bitstream parameter")
	}

	chkSize, listeners, err := huffmanParams(ctx, args)

	if err != nil {
		return nil, err
	}

	this := &HuffmanDecoder{}
	this.bitstream = bs
	this.table = make([]uint16, 1<<_HUF_MAX_SYMBOL_SIZE)
	this.chunkSize = chkSize
	this.listeners = listeners
	return this, nil
}

// readLengths decodes the alphabet and the code lengths then generates
// the canonical codes.
func (this *HuffmanDecoder) readLengths() (int, error) {
	count, err := DecodeAlphabet(this.bitstream, this.alphabet[:])

	if count == 0 || err != nil {
		return count, err
	}

	egdec, err := NewExpGolombDecoder(this.bitstream, true)

	if err != nil {
		return 0, err
	}

	curSize := int8(2)
	symbols := this.alphabet[0:count]

	for _, s := range symbols {
		delta, err := egdec.decodeByte()

		if err != nil {
			return 0, err
		}

		this.codes[s] = 0
		curSize += int8(delta)

		if curSize <= 0 || curSize > _HUF_MAX_SYMBOL_SIZE {
			return 0, errors.Wrapf(kanzi.ErrInvalidBitstream, "Huffman codec: incorrect size %d for symbol %d", curSize, s)
		}

		this.sizes[s] = byte(curSize)
	}

	egdec.Dispose()
	return generateCanonicalCodes(this.sizes[:], this.codes[:], symbols)
}

func (this *HuffmanDecoder) buildDecodingTable(count int) error {
	for i := range this.table {
		this.table[i] = 0
	}

	for _, s := range this.alphabet[0:count] {
		size := uint(this.sizes[s])
		code := uint(this.codes[s])

		if code >= 1<<size {
			return errors.Wrap(kanzi.ErrInvalidBitstream, "Huffman codec: incorrect code lengths")
		}

		// All 12 bit values starting with the code point to symbol s
		val := (uint16(s) << 8) | uint16(size)
		idx := code << (_HUF_MAX_SYMBOL_SIZE - size)
		t := this.table[idx : idx+(1<<(_HUF_MAX_SYMBOL_SIZE-size))]

		for j := range t {
			t[j] = val
		}
	}

	return nil
}

// Read decodes data from the bitstream and return it in the provided buffer.
// Return the number of bytes decoded.
func (this *HuffmanDecoder) Read(block []byte) (int, error) {
	if block == nil {
		return 0, errors.Wrap(kanzi.ErrInvalidParam, "Huffman codec: invalid null block parameter")
	}

	if len(block) == 0 {
		return 0, nil
	}

	end := len(block)
	read := this.bitstream.Read()
	notify(this.listeners, kanzi.EVT_BEFORE_ENTROPY, this.blockID, int64(end))

	for startChunk, chunk := 0, 0; startChunk < end; chunk++ {
		endChunk := min(startChunk+this.chunkSize, end)
		chunkRead := this.bitstream.Read()

		// For each chunk, read code lengths, rebuild codes, rebuild decoding table
		alphabetSize, err := this.readLengths()

		if err != nil {
			return startChunk, err
		}

		if alphabetSize == 0 {
			return startChunk, errors.Wrap(kanzi.ErrInvalidBitstream, "Huffman codec: empty alphabet")
		}

		if alphabetSize == 1 {
			// Shortcut for chunks with only one symbol
			for i := startChunk; i < endChunk; i++ {
				block[i] = byte(this.alphabet[0])
			}
		} else {
			if err = this.buildDecodingTable(alphabetSize); err != nil {
				return startChunk, err
			}

			if err = this.decodeChunk(block[startChunk:endChunk]); err != nil {
				return startChunk, err
			}
		}

		notify(this.listeners, kanzi.EVT_AFTER_CHUNK, chunk, int64((this.bitstream.Read()-chunkRead+7)>>3))
		startChunk = endChunk
	}

	notify(this.listeners, kanzi.EVT_AFTER_ENTROPY, this.blockID, int64((this.bitstream.Read()-read+7)>>3))
	this.blockID++
	return end, nil
}

func (this *HuffmanDecoder) decodeChunk(block []byte) error {
	if this.bitstream.ReadBits(2) != 0 {
		return errors.Wrap(kanzi.ErrInvalidBitstream, "Huffman codec: unsupported number of streams")
	}

	szBits, err := ReadVarInt(this.bitstream)

	if err != nil {
		return err
	}

	if int(szBits) > _HUF_MAX_SYMBOL_SIZE*len(block) {
		return errors.Wrapf(kanzi.ErrInvalidBitstream, "Huffman codec: incorrect chunk size %d bits", szBits)
	}

	sz := int(szBits+7) >> 3

	if len(this.buffer) < sz {
		this.buffer = slices.Grow(this.buffer[:0], sz)[:sz]
	}

	buf := this.buffer[0:sz]

	if szBits > 0 {
		this.bitstream.ReadArray(buf, uint(szBits))
	}

	state := uint64(0)
	bits := uint(0) // number of unused bits in state
	idx := 0

	for i := range block {
		// Past the end of the data, shift in zeros
		for bits < _HUF_MAX_SYMBOL_SIZE {
			state <<= 8

			if idx < sz {
				state |= uint64(buf[idx])
			}

			idx++
			bits += 8
		}

		val := this.table[(state>>(bits-_HUF_MAX_SYMBOL_SIZE))&_HUF_DECODING_MASK]

		if val&0xFF == 0 {
			return errors.Wrap(kanzi.ErrInvalidBitstream, "Huffman codec: incorrect code")
		}

		bits -= uint(val & 0xFF)
		block[i] = byte(val >> 8)
	}

	return nil
}

// BitStream returns the underlying bitstream
func (this *HuffmanDecoder) BitStream() kanzi.InputBitStream {
	return this.bitstream
}

// Dispose this implementation does nothing
func (this *HuffmanDecoder) Dispose() {
}
