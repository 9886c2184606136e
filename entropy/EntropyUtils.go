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
	"container/heap"

	kanzi "github.com/flanglet/kanzi-entropy"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	INCOMPRESSIBLE_THRESHOLD = 973
	FULL_ALPHABET            = 0
	PARTIAL_ALPHABET         = 1
	ALPHABET_256             = 0
	ALPHABET_NOT_256         = 1
	DELTA_ENCODED_ALPHABET   = 0
	BIT_ENCODED_ALPHABET_256 = 1
	PRESENT_SYMBOLS_MASK     = 0
	ABSENT_SYMBOLS_MASK      = 1

	_MAX_VARINT_BYTES = 5 // 32 bit values
)

type freqSortData struct {
	frequencies []int
	errors      []int
	symbol      int
}

// freqSortPriorityQueue pops the symbol with the largest rounding error first
// (then the largest frequency, then the largest symbol).
type freqSortPriorityQueue []*freqSortData

func (this freqSortPriorityQueue) Len() int {
	return len(this)
}

func (this freqSortPriorityQueue) Less(i, j int) bool {
	di := this[i]
	dj := this[j]

	// Decreasing error
	if di.errors[di.symbol] != dj.errors[dj.symbol] {
		return di.errors[di.symbol] > dj.errors[dj.symbol]
	}

	// Decreasing frequency
	if di.frequencies[di.symbol] != dj.frequencies[dj.symbol] {
		return di.frequencies[di.symbol] > dj.frequencies[dj.symbol]
	}

	// Decreasing symbol
	return dj.symbol < di.symbol
}

func (this freqSortPriorityQueue) Swap(i, j int) {
	this[i], this[j] = this[j], this[i]
}

func (this *freqSortPriorityQueue) Push(data interface{}) {
	*this = append(*this, data.(*freqSortData))
}

func (this *freqSortPriorityQueue) Pop() interface{} {
	old := *this
	n := len(old)
	data := old[n-1]
	*this = old[0 : n-1]
	return data
}

// EntropyUtils holds the scratch space used to normalize frequencies
// so that it can be reused across chunks.
type EntropyUtils struct {
	buffer []int
}

// NewEntropyUtils creates a new instance of EntropyUtils
func NewEntropyUtils() *EntropyUtils {
	return &EntropyUtils{buffer: make([]int, 256)}
}

// NormalizeFrequencies scales the frequencies so that they sum to 'scale'.
// Every symbol with a non zero frequency keeps a frequency of at least 1.
// The present symbols are written in increasing order to 'alphabet'.
// Returns the size of the alphabet.
func (this *EntropyUtils) NormalizeFrequencies(freqs []int, alphabet []int, totalFreq, scale int) (int, error) {
	if len(alphabet) > 1<<8 {
		return 0, errors.Wrapf(kanzi.ErrInvalidParam, "invalid alphabet size parameter: %d (must be less than or equal to 256)", len(alphabet))
	}

	if scale < 1<<8 || scale > 1<<16 {
		return 0, errors.Wrapf(kanzi.ErrInvalidParam, "invalid range parameter: %d (must be in [256..65536])", scale)
	}

	if len(freqs) < len(alphabet) {
		return 0, errors.Wrapf(kanzi.ErrInvalidParam, "invalid frequency array length: %d (must be at least %d)", len(freqs), len(alphabet))
	}

	if len(alphabet) == 0 || totalFreq == 0 {
		return 0, nil
	}

	alphabetSize := 0

	// shortcut
	if totalFreq == scale {
		for i := range alphabet {
			if freqs[i] != 0 {
				alphabet[alphabetSize] = i
				alphabetSize++
			}
		}

		return alphabetSize, nil
	}

	if len(this.buffer) < len(alphabet) {
		this.buffer = make([]int, len(alphabet))
	}

	errs := this.buffer
	sumScaledFreq := 0
	freqMax := 0
	idxMax := -1

	// Scale frequencies by stretching distribution over complete range
	for i := range alphabet {
		alphabet[i] = 0
		errs[i] = 0
		f := freqs[i]

		if f == 0 {
			continue
		}

		if f > freqMax {
			freqMax = f
			idxMax = i
		}

		sf := int64(f) * int64(scale)
		var scaledFreq int

		if sf <= int64(totalFreq) {
			// Quantum of frequency
			scaledFreq = 1
		} else {
			// Find best frequency rounding value
			scaledFreq = int(sf / int64(totalFreq))
			errCeiling := int64(scaledFreq+1)*int64(totalFreq) - sf
			errFloor := sf - int64(scaledFreq)*int64(totalFreq)

			if errCeiling < errFloor {
				scaledFreq++
				errs[i] = int(errCeiling)
			} else {
				errs[i] = int(errFloor)
			}
		}

		alphabet[alphabetSize] = i
		alphabetSize++
		sumScaledFreq += scaledFreq
		freqs[i] = scaledFreq
	}

	if alphabetSize == 0 {
		return 0, nil
	}

	if alphabetSize == 1 {
		freqs[alphabet[0]] = scale
		return 1, nil
	}

	if sumScaledFreq == scale {
		return alphabetSize, nil
	}

	if freqs[idxMax] > sumScaledFreq-scale {
		// Fast path: just adjust the max frequency
		freqs[idxMax] += scale - sumScaledFreq
		return alphabetSize, nil
	}

	// Slow path: spread error across frequencies
	inc := 1

	if sumScaledFreq > scale {
		inc = -1
	}

	queue := make(freqSortPriorityQueue, 0, alphabetSize)

	// Create sorted queue of present symbols (except those with 'quantum frequency')
	for i := 0; i < alphabetSize; i++ {
		if errs[alphabet[i]] > 0 && freqs[alphabet[i]] != -inc {
			heap.Push(&queue, &freqSortData{errors: errs, frequencies: freqs, symbol: alphabet[i]})
		}
	}

	for sumScaledFreq != scale && len(queue) > 0 {
		// Remove symbol with highest error
		fsd := heap.Pop(&queue).(*freqSortData)

		// Do not zero out any frequency
		if freqs[fsd.symbol] == -inc {
			continue
		}

		// Distort frequency and error
		freqs[fsd.symbol] += inc
		errs[fsd.symbol] -= scale
		sumScaledFreq += inc
		heap.Push(&queue, fsd)
	}

	// The queue may run dry before the sum is reached: sweep the symbols.
	// It terminates since alphabetSize <= 256 <= scale.
	for i := 0; sumScaledFreq != scale; i = (i + 1) % alphabetSize {
		s := alphabet[i]

		if inc < 0 && freqs[s] == 1 {
			continue
		}

		freqs[s] += inc
		sumScaledFreq += inc
	}

	return alphabetSize, nil
}

// EncodeAlphabet writes the symbols present in 'alphabet' (sorted in increasing
// order) to the bitstream. The alphabet is a subset of [0..alphabetSize) and
// alphabetSize must be a power of 2 in [1..256].
// Returns the number of symbols encoded.
func EncodeAlphabet(obs kanzi.OutputBitStream, alphabet []int, alphabetSize int) (int, error) {
	count := len(alphabet)

	if alphabetSize <= 0 || alphabetSize > 256 || alphabetSize&(alphabetSize-1) != 0 {
		return 0, errors.Wrapf(kanzi.ErrInvalidParam, "invalid alphabet size: %d (must be a power of 2 in [1..256])", alphabetSize)
	}

	if count > alphabetSize {
		return 0, errors.Wrapf(kanzi.ErrInvalidParam, "invalid symbol count: %d (must be at most %d)", count, alphabetSize)
	}

	// First, push alphabet encoding mode
	if count == alphabetSize {
		// Full alphabet
		obs.WriteBit(FULL_ALPHABET)

		if count == 256 {
			obs.WriteBit(ALPHABET_256) // shortcut
		} else {
			log := bitLength(count)

			// Write alphabet size
			obs.WriteBit(ALPHABET_NOT_256)
			obs.WriteBits(uint64(log-1), 5)
			obs.WriteBits(uint64(count), log)
		}

		return count, nil
	}

	obs.WriteBit(PARTIAL_ALPHABET)

	if alphabetSize == 256 && count >= 32 && count <= 224 {
		// Regular alphabet of symbols less than 256
		obs.WriteBit(BIT_ENCODED_ALPHABET_256)
		masks := [4]uint64{}

		for _, s := range alphabet {
			masks[s>>6] |= uint64(1) << uint(s&63)
		}

		for i := range masks {
			obs.WriteBits(masks[i], 64)
		}

		return count, nil
	}

	obs.WriteBit(DELTA_ENCODED_ALPHABET)
	var diffs []int
	n := count
	mode := PRESENT_SYMBOLS_MASK

	if alphabetSize-count < count {
		// Encode all missing symbols
		n = alphabetSize - count
		mode = ABSENT_SYMBOLS_MASK
		diffs = make([]int, 0, n)
		previous := 0
		i := 0

		for symbol := 0; symbol < alphabetSize; symbol++ {
			if i < count && alphabet[i] == symbol {
				i++
				continue
			}

			diffs = append(diffs, symbol-previous)
			previous = symbol + 1
		}
	} else {
		// Encode all present symbols
		diffs = make([]int, count)
		previous := 0

		for i, s := range alphabet {
			diffs[i] = s - previous
			previous = s + 1
		}
	}

	// Write length
	log := bitLength(n)
	obs.WriteBits(uint64(log-1), 4)
	obs.WriteBits(uint64(n), log)

	if n == 0 {
		return 0, nil
	}

	obs.WriteBit(mode)

	if mode == ABSENT_SYMBOLS_MASK {
		// Write log(alphabet size)
		obs.WriteBits(uint64(bitLength(alphabetSize)-1), 5)
	}

	ckSize := 16

	if n <= 64 {
		ckSize = 8
	}

	// Encode all deltas by chunks
	for i := 0; i < n; i += ckSize {
		end := i + ckSize

		if end > n {
			end = n
		}

		max := 0

		// Find log(max(deltas)) for this chunk
		for _, d := range diffs[i:end] {
			if max < d {
				max = d
			}
		}

		log := bitLength(max)
		obs.WriteBits(uint64(log-1), 4)

		// Write deltas for this chunk
		for _, d := range diffs[i:end] {
			obs.WriteBits(uint64(d), log)
		}
	}

	return count, nil
}

// DecodeAlphabet reads an alphabet written by EncodeAlphabet. The symbols are
// stored in increasing order in 'alphabet', each one less than len(alphabet).
// Returns the number of symbols decoded.
func DecodeAlphabet(ibs kanzi.InputBitStream, alphabet []int) (int, error) {
	// Read encoding mode from bitstream
	if ibs.ReadBit() == FULL_ALPHABET {
		alphabetSize := 256

		if ibs.ReadBit() == ALPHABET_NOT_256 {
			log := uint(1 + ibs.ReadBits(5))
			alphabetSize = int(ibs.ReadBits(log))
		}

		if alphabetSize > len(alphabet) {
			return 0, errors.Wrapf(kanzi.ErrInvalidBitstream, "incorrect alphabet size: %d", alphabetSize)
		}

		// Full alphabet
		for i := 0; i < alphabetSize; i++ {
			alphabet[i] = i
		}

		return alphabetSize, nil
	}

	count := 0

	if ibs.ReadBit() == BIT_ENCODED_ALPHABET_256 {
		if len(alphabet) < 256 {
			return 0, errors.Wrapf(kanzi.ErrInvalidBitstream, "incorrect alphabet size: 256")
		}

		// Decode presence flags
		for i := 0; i < 256; i += 64 {
			val := ibs.ReadBits(64)

			for j := 0; j < 64; j++ {
				if val&(uint64(1)<<uint(j)) != 0 {
					alphabet[count] = i + j
					count++
				}
			}
		}

		return count, nil
	}

	// DELTA_ENCODED_ALPHABET
	log := uint(1 + ibs.ReadBits(4))
	count = int(ibs.ReadBits(log))

	if count == 0 {
		return 0, nil
	}

	if count > len(alphabet) {
		return 0, errors.Wrapf(kanzi.ErrInvalidBitstream, "incorrect symbol count: %d", count)
	}

	ckSize := 16

	if count <= 64 {
		ckSize = 8
	}

	n := 0
	symbol := 0

	if ibs.ReadBit() == ABSENT_SYMBOLS_MASK {
		alphabetSize := 1 << uint(ibs.ReadBits(5))

		if alphabetSize > len(alphabet) || count > alphabetSize {
			return 0, errors.Wrapf(kanzi.ErrInvalidBitstream, "incorrect alphabet size: %d", alphabetSize)
		}

		// Read missing symbols
		for i := 0; i < count; i += ckSize {
			log = uint(1 + ibs.ReadBits(4))

			// Read deltas for this chunk
			for j := i; j < count && j < i+ckSize; j++ {
				next := symbol + int(ibs.ReadBits(log))

				for symbol < next && n < alphabetSize {
					alphabet[n] = symbol
					symbol++
					n++
				}

				symbol++
			}
		}

		// Remaining symbols after the last missing one are all present
		for symbol < alphabetSize && n < alphabetSize {
			alphabet[n] = symbol
			n++
			symbol++
		}

		if n != alphabetSize-count {
			return 0, errors.Wrap(kanzi.ErrInvalidBitstream, "incorrect missing symbol deltas")
		}

		return n, nil
	}

	// Read present symbols
	for i := 0; i < count; i += ckSize {
		log = uint(1 + ibs.ReadBits(4))

		// Read deltas for this chunk
		for j := i; j < count && j < i+ckSize; j++ {
			symbol += int(ibs.ReadBits(log))

			if symbol >= len(alphabet) {
				return 0, errors.Wrapf(kanzi.ErrInvalidBitstream, "incorrect symbol: %d", symbol)
			}

			alphabet[j] = symbol
			symbol++
		}
	}

	return count, nil
}

// bitLength returns the number of bits required to write x (at least 1)
func bitLength(x int) uint {
	log := uint(1)

	for 1<<log <= x {
		log++
	}

	return log
}

// WriteVarInt writes a 32 bit value as a little endian base 128 varint
// (7 bits per byte, lowest group first). Returns the number of bytes written.
func WriteVarInt(bs kanzi.OutputBitStream, value uint32) int {
	var buf [_MAX_VARINT_BYTES]byte
	b := protowire.AppendVarint(buf[:0], uint64(value))

	for _, v := range b {
		bs.WriteBits(uint64(v), 8)
	}

	return len(b)
}

// ReadVarInt reads a varint written by WriteVarInt.
func ReadVarInt(bs kanzi.InputBitStream) (uint32, error) {
	var buf [_MAX_VARINT_BYTES]byte
	n := 0

	for n < len(buf) {
		buf[n] = byte(bs.ReadBits(8))
		n++

		if buf[n-1] < 0x80 {
			break
		}
	}

	v, length := protowire.ConsumeVarint(buf[:n])

	if length < 0 {
		return 0, errors.Wrap(kanzi.ErrInvalidBitstream, protowire.ParseError(length).Error())
	}

	if v > 0xFFFFFFFF {
		return 0, errors.Wrapf(kanzi.ErrInvalidBitstream, "varint overflow: %d", v)
	}

	return uint32(v), nil
}

// ComputeFirstOrderEntropy1024 returns the first order entropy in the [0..1024] range
// and fills in the histogram with order 0 frequencies. Incoming array size must be
// at least 256.
func ComputeFirstOrderEntropy1024(block []byte, histo []int) int {
	if len(block) == 0 {
		return 0
	}

	kanzi.ComputeHistogram(block, histo[0:256], true, false)
	sum := uint64(0)
	logLength1024, _ := kanzi.Log2_1024(uint32(len(block)))

	for i := 0; i < 256; i++ {
		if histo[i] == 0 {
			continue
		}

		log1024, _ := kanzi.Log2_1024(uint32(histo[i]))
		sum += (uint64(histo[i]) * uint64(logLength1024-log1024)) >> 3
	}

	return int(sum / uint64(len(block)))
}
