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
	"bytes"
	"fmt"
	"math/rand"
	"testing"

	kanzi "github.com/flanglet/kanzi-entropy"
	"github.com/flanglet/kanzi-entropy/bitstream"
	"github.com/flanglet/kanzi-entropy/util"
	"github.com/pkg/errors"
)

var (
	_ kanzi.EntropyEncoder = (*HuffmanEncoder)(nil)
	_ kanzi.EntropyDecoder = (*HuffmanDecoder)(nil)
	_ kanzi.EntropyEncoder = (*RangeEncoder)(nil)
	_ kanzi.EntropyDecoder = (*RangeDecoder)(nil)
	_ kanzi.EntropyEncoder = (*ANSRangeEncoder)(nil)
	_ kanzi.EntropyDecoder = (*ANSRangeDecoder)(nil)
	_ kanzi.EntropyEncoder = (*BinaryEntropyEncoder)(nil)
	_ kanzi.EntropyDecoder = (*BinaryEntropyDecoder)(nil)
	_ kanzi.EntropyEncoder = (*ExpGolombEncoder)(nil)
	_ kanzi.EntropyDecoder = (*ExpGolombDecoder)(nil)
	_ kanzi.EntropyEncoder = (*NullEntropyEncoder)(nil)
	_ kanzi.EntropyDecoder = (*NullEntropyDecoder)(nil)
	_ kanzi.Predictor      = (*TPAQPredictor)(nil)
	_ kanzi.Predictor      = (*FPAQPredictor)(nil)
	_ kanzi.Predictor      = (*CMPredictor)(nil)
)

func TestHuffman(b *testing.T) {
	if err := testEntropyCorrectness("HUFFMAN", nil); err != nil {
		b.Error(err)
	}
}

func TestRange(b *testing.T) {
	if err := testEntropyCorrectness("RANGE", nil); err != nil {
		b.Error(err)
	}
}

func TestANS0(b *testing.T) {
	if err := testEntropyCorrectness("ANS0", nil); err != nil {
		b.Error(err)
	}
}

func TestANS1(b *testing.T) {
	if err := testEntropyCorrectness("ANS1", nil); err != nil {
		b.Error(err)
	}
}

func TestFPAQ(b *testing.T) {
	if err := testEntropyCorrectness("FPAQ", nil); err != nil {
		b.Error(err)
	}
}

func TestCM(b *testing.T) {
	if err := testEntropyCorrectness("CM", nil); err != nil {
		b.Error(err)
	}
}

func TestTPAQ(b *testing.T) {
	ctx := map[string]interface{}{"logStates": uint(16), "size": uint(4096)}

	if err := testEntropyCorrectness("TPAQ", ctx); err != nil {
		b.Error(err)
	}
}

func TestTPAQX(b *testing.T) {
	ctx := map[string]interface{}{"logStates": uint(16), "size": uint(4096)}

	if err := testEntropyCorrectness("TPAQX", ctx); err != nil {
		b.Error(err)
	}
}

func TestExpGolomb(b *testing.T) {
	for _, signed := range []bool{true, false} {
		ctx := map[string]interface{}{"signed": signed}

		if err := testEntropyCorrectness("EXPGOLOMB", ctx); err != nil {
			b.Error(err)
		}
	}
}

func TestNone(b *testing.T) {
	if err := testEntropyCorrectness("NONE", nil); err != nil {
		b.Error(err)
	}
}

func getEncoder(name string, ctx map[string]interface{}, obs kanzi.OutputBitStream) (kanzi.EntropyEncoder, error) {
	eType, err := GetType(name)

	if err != nil {
		return nil, err
	}

	return NewEntropyEncoder(obs, ctx, eType)
}

func getDecoder(name string, ctx map[string]interface{}, ibs kanzi.InputBitStream) (kanzi.EntropyDecoder, error) {
	eType, err := GetType(name)

	if err != nil {
		return nil, err
	}

	return NewEntropyDecoder(ibs, ctx, eType)
}

// roundTrip encodes the blocks one after the other with the named codec,
// decodes them and checks that the input is recovered and that the decoder
// consumed exactly the bits written by the encoder.
func roundTrip(name string, ctx map[string]interface{}, blocks ...[]byte) error {
	bs := util.NewBufferStream(nil)
	obs, err := bitstream.NewDefaultOutputBitStream(bs, 16384)

	if err != nil {
		return err
	}

	ec, err := getEncoder(name, ctx, obs)

	if err != nil {
		return errors.Wrap(err, "cannot create entropy encoder")
	}

	for _, block := range blocks {
		if _, err := ec.Write(block); err != nil {
			return errors.Wrap(err, "error during encoding")
		}
	}

	ec.Dispose()
	obs.Close()
	ibs, err := bitstream.NewDefaultInputBitStream(bs, 16384)

	if err != nil {
		return err
	}

	ed, err := getDecoder(name, ctx, ibs)

	if err != nil {
		return errors.Wrap(err, "cannot create entropy decoder")
	}

	for i, block := range blocks {
		res := make([]byte, len(block))

		if _, err := ed.Read(res); err != nil {
			return errors.Wrap(err, "error during decoding")
		}

		if bytes.Equal(block, res) == false {
			for j := range block {
				if block[j] != res[j] {
					return fmt.Errorf("%s: block %d differs at index %d: expected %d, got %d", name, i, j, block[j], res[j])
				}
			}
		}
	}

	ed.Dispose()

	if ibs.Read() != obs.Written() {
		return fmt.Errorf("%s: %d bits written but %d bits read", name, obs.Written(), ibs.Read())
	}

	return nil
}

func testEntropyCorrectness(name string, ctx map[string]interface{}) error {
	rnd := rand.New(rand.NewSource(12345))

	for ii := 0; ii < 20; ii++ {
		var values []byte

		switch ii {
		case 0:
			values = []byte{}

		case 1:
			values = make([]byte, 32)

			for i := range values {
				values[i] = byte(2) // all identical
			}

		case 2:
			values = []byte{0x3d, 0x4d, 0x54, 0x47, 0x5a, 0x36, 0x39, 0x26, 0x72, 0x6f, 0x6c, 0x65, 0x3d, 0x70, 0x72, 0x65}

		case 3:
			values = []byte{0, 0, 32, 15, -4 & 0xFF, 16, 0, 16, 0, 7, -1 & 0xFF, -4 & 0xFF, -32 & 0xFF, 0, 31, -1 & 0xFF}

		case 4:
			values = make([]byte, 32)

			for i := range values {
				values[i] = byte(2 + (i & 1)) // 2 symbols
			}

		case 5:
			values = []byte{0, 0, 0, 1, 1, 2}

		case 6:
			values = make([]byte, 3000)

			for i := range values {
				values[i] = byte(rnd.Intn(256))
			}

		case 7:
			values = []byte("The quick brown fox jumps over the lazy dog. The quick brown fox jumps over the lazy dog again.")

		default:
			values = make([]byte, 256)

			for i := range values {
				values[i] = byte(64 + 4*ii + rnd.Intn(8*ii+1))
			}
		}

		if err := roundTrip(name, ctx, values); err != nil {
			return errors.Wrapf(err, "test %d", ii)
		}
	}

	// Several blocks with the same codec instances
	blocks := [][]byte{
		bytes.Repeat([]byte("abracadabra"), 100),
		[]byte{},
		bytes.Repeat([]byte{7, 8, 9, 0}, 700),
	}

	return roundTrip(name, ctx, blocks...)
}

func TestANSAllLogRanges(b *testing.T) {
	rnd := rand.New(rand.NewSource(7))

	// Big enough to keep the requested log range for every value
	values := make([]byte, 70000)

	for i := range values {
		// Skewed distribution with a long tail
		values[i] = byte(min(rnd.ExpFloat64()*12, 255))
	}

	for order := uint(0); order <= 1; order++ {
		for lr := uint(8); lr <= 16; lr++ {
			bs := util.NewBufferStream(nil)
			obs, _ := bitstream.NewDefaultOutputBitStream(bs, 16384)
			ec, err := NewANSRangeEncoder(obs, order, 0, lr)

			if err != nil {
				b.Fatal(err)
			}

			if _, err := ec.Write(values); err != nil {
				b.Fatalf("Order %d, log range %d: %v", order, lr, err)
			}

			ec.Dispose()
			obs.Close()

			// The 3 bit header field holds log ranges up to 15
			ibs, _ := bitstream.NewDefaultInputBitStream(bs, 16384)

			if res := uint(ibs.ReadBits(3)) + 8; res != min(lr, 15) {
				b.Errorf("Order %d, log range %d: header holds %d", order, lr, res)
			}

			bs.SetOffset(0)
			ibs, _ = bitstream.NewDefaultInputBitStream(bs, 16384)
			ed, err := NewANSRangeDecoder(ibs, order, 0)

			if err != nil {
				b.Fatal(err)
			}

			res := make([]byte, len(values))

			if _, err := ed.Read(res); err != nil || bytes.Equal(res, values) == false {
				b.Errorf("Order %d, log range %d: decoded data differs from the original (%v)", order, lr, err)
			}
		}
	}

	// Same through the factory with small blocks (log range downshift)
	for _, name := range []string{"ANS0", "ANS1"} {
		for lr := uint(8); lr <= 16; lr++ {
			ctx := map[string]interface{}{"logRange": lr}

			if err := roundTrip(name, ctx, values[:20000]); err != nil {
				b.Errorf("%s, log range %d: %v", name, lr, err)
			}
		}
	}
}

func TestANSChunks(b *testing.T) {
	values := []byte{1, 2, 3, 1, 2, 3, 200, 200, 200, 4}

	// Whole block as one chunk
	ctx := map[string]interface{}{"chunkSize": uint(0)}

	if err := roundTrip("ANS0", ctx, values); err != nil {
		b.Error(err)
	}

	big := make([]byte, 10*1024+17)
	rnd := rand.New(rand.NewSource(99))

	for i := range big {
		// Change statistics from chunk to chunk
		big[i] = byte(rnd.Intn(16) + 16*(i/1024))
	}

	for _, name := range []string{"ANS0", "ANS1"} {
		for _, chunkSize := range []uint{0, 1024, 3000, 1 << 16} {
			ctx := map[string]interface{}{"chunkSize": chunkSize}

			if err := roundTrip(name, ctx, big, values); err != nil {
				b.Errorf("%s, chunk size %d: %v", name, chunkSize, err)
			}
		}
	}
}

func TestANSScenario(b *testing.T) {
	values := []byte{0, 0, 0, 1, 1, 2}
	bs := util.NewBufferStream(nil)
	obs, _ := bitstream.NewDefaultOutputBitStream(bs, 16384)
	ec, err := NewANSRangeEncoder(obs, 0, 0, 12)

	if err != nil {
		b.Fatal(err)
	}

	if n, err := ec.Write(values); n != len(values) || err != nil {
		b.Fatalf("Write returned %d (%v)", n, err)
	}

	ec.Dispose()
	obs.Close()
	ibs, _ := bitstream.NewDefaultInputBitStream(bs, 16384)

	// Header: log range (downshifted to 8 for 6 bytes) then alphabet {0,1,2}
	if lr := ibs.ReadBits(3) + 8; lr != 8 {
		b.Errorf("Expected log range 8, got %d", lr)
	}

	alphabet := make([]int, 256)
	count, err := DecodeAlphabet(ibs, alphabet)

	if err != nil || count != 3 || alphabet[0] != 0 || alphabet[1] != 1 || alphabet[2] != 2 {
		b.Errorf("Unexpected alphabet: %v (%v)", alphabet[:count], err)
	}

	// Frequencies of symbols 1 and 2 in one chunk (llr = 4 bits for lr = 8),
	// the frequency of symbol 0 is implicit
	logMax := uint(ibs.ReadBits(4)) + 1
	f1 := int(ibs.ReadBits(logMax))
	f2 := int(ibs.ReadBits(logMax))
	f0 := 256 - f1 - f2

	if f0 <= f1 || f1 <= f2 || f2 <= 0 {
		b.Errorf("Expected decreasing frequencies for counts 3:2:1, got %d %d %d", f0, f1, f2)
	}

	// Full decode from the start
	bs.SetOffset(0)
	ibs, _ = bitstream.NewDefaultInputBitStream(bs, 16384)
	ed, err := NewANSRangeDecoder(ibs, 0, 0)

	if err != nil {
		b.Fatal(err)
	}

	res := make([]byte, len(values))

	if _, err := ed.Read(res); err != nil || bytes.Equal(res, values) == false {
		b.Errorf("Expected %v, got %v (%v)", values, res, err)
	}

	if ibs.Read() != obs.Written() {
		b.Errorf("%d bits written but %d bits read", obs.Written(), ibs.Read())
	}
}

func TestANSInvalidParameters(b *testing.T) {
	obs, _ := bitstream.NewDefaultOutputBitStream(util.NewBufferStream(nil), 16384)
	ibs, _ := bitstream.NewDefaultInputBitStream(util.NewBufferStream(nil), 16384)

	// The decoder reads the log range from the bitstream: it only takes
	// the order and the chunk size
	tests := []struct {
		name    string
		args    []uint
		decoder bool
	}{
		{"order 2", []uint{2, 0, 12}, true},
		{"chunk size 100", []uint{0, 100, 12}, true},
		{"chunk size too big", []uint{0, ANS_MAX_CHUNK_SIZE + 1, 12}, true},
		{"log range 20", []uint{0, 0, 20}, false},
		{"log range 7", []uint{1, 0, 7}, false},
		{"too many args", []uint{0, 0, 12, 1}, false},
	}

	for _, test := range tests {
		enc, err := NewANSRangeEncoder(obs, test.args...)

		if enc != nil || errors.Cause(err) != kanzi.ErrInvalidParam {
			b.Errorf("%s: expected invalid parameter error for encoder, got %v", test.name, err)
		}

		if test.decoder == false {
			continue
		}

		dec, err := NewANSRangeDecoder(ibs, test.args[:2]...)

		if dec != nil || errors.Cause(err) != kanzi.ErrInvalidParam {
			b.Errorf("%s: expected invalid parameter error for decoder, got %v", test.name, err)
		}
	}

	if _, err := NewANSRangeDecoder(ibs, 0, 0, 12); errors.Cause(err) != kanzi.ErrInvalidParam {
		b.Errorf("Expected invalid parameter error for decoder log range argument, got %v", err)
	}

	// Context values override the positional arguments
	ctx := map[string]interface{}{"logRange": uint(17)}

	if _, err := NewANSRangeEncoderWithCtx(obs, &ctx, 0); errors.Cause(err) != kanzi.ErrInvalidParam {
		b.Errorf("Expected invalid parameter error for context log range, got %v", err)
	}

	ctx = map[string]interface{}{"chunkSize": -1}

	if _, err := NewANSRangeEncoderWithCtx(obs, &ctx, 0); errors.Cause(err) != kanzi.ErrInvalidParam {
		b.Errorf("Expected invalid parameter error for negative chunk size, got %v", err)
	}

	if _, err := NewANSRangeEncoder(nil); errors.Cause(err) != kanzi.ErrInvalidParam {
		b.Errorf("Expected invalid parameter error for nil bitstream, got %v", err)
	}
}

func TestHuffmanInvalidParameters(b *testing.T) {
	obs, _ := bitstream.NewDefaultOutputBitStream(util.NewBufferStream(nil), 16384)
	ibs, _ := bitstream.NewDefaultInputBitStream(util.NewBufferStream(nil), 16384)

	for _, args := range [][]uint{{100}, {HUF_MAX_CHUNK_SIZE + 1}, {1024, 12}} {
		if enc, err := NewHuffmanEncoder(obs, args...); enc != nil || errors.Cause(err) != kanzi.ErrInvalidParam {
			b.Errorf("Expected invalid parameter error for encoder args %v, got %v", args, err)
		}

		if dec, err := NewHuffmanDecoder(ibs, args...); dec != nil || errors.Cause(err) != kanzi.ErrInvalidParam {
			b.Errorf("Expected invalid parameter error for decoder args %v, got %v", args, err)
		}
	}

	ctx := map[string]interface{}{"chunkSize": "big"}

	if _, err := NewHuffmanEncoderWithCtx(obs, &ctx); errors.Cause(err) != kanzi.ErrInvalidParam {
		b.Errorf("Expected invalid parameter error for context chunk size, got %v", err)
	}

	if _, err := NewHuffmanDecoder(nil); errors.Cause(err) != kanzi.ErrInvalidParam {
		b.Errorf("Expected invalid parameter error for nil bitstream, got %v", err)
	}

	// 0 selects the default chunk size
	if _, err := NewHuffmanEncoder(obs, 0); err != nil {
		b.Error(err)
	}
}

func TestHuffmanLongCodes(b *testing.T) {
	// Fibonacci frequencies yield code lengths above 12 bits before the
	// frequencies get flattened
	values := make([]byte, 0, 16384)
	f0, f1 := 1, 1

	for s := 0; s < 19; s++ {
		values = append(values, bytes.Repeat([]byte{byte(s)}, f0)...)
		f0, f1 = f1, f0+f1
	}

	rnd := rand.New(rand.NewSource(3))
	rnd.Shuffle(len(values), func(i, j int) { values[i], values[j] = values[j], values[i] })

	for _, chunkSize := range []uint{0, 1024} {
		ctx := map[string]interface{}{"chunkSize": chunkSize}

		if err := roundTrip("HUFFMAN", ctx, values); err != nil {
			b.Errorf("chunk size %d: %v", chunkSize, err)
		}
	}

	var freqs [256]int
	kanzi.ComputeHistogram(values, freqs[:], true, false)
	obs, _ := bitstream.NewDefaultOutputBitStream(util.NewBufferStream(nil), 16384)
	enc, _ := NewHuffmanEncoder(obs)

	if _, err := enc.updateFrequencies(freqs[:]); err != nil {
		b.Fatal(err)
	}

	for s := 0; s < 19; s++ {
		if size := enc.codes[s] >> 12; size == 0 || size > 12 {
			b.Errorf("Invalid code length %d for symbol %d", size, s)
		}
	}
}

func TestHuffmanCorruptedLengths(b *testing.T) {
	bs := util.NewBufferStream(nil)
	obs, _ := bitstream.NewDefaultOutputBitStream(bs, 16384)

	// Alphabet {0, 1} with code lengths 2 + 12 = 14
	EncodeAlphabet(obs, []int{0, 1}, 256)
	egenc, _ := NewExpGolombEncoder(obs, true)
	egenc.EncodeByte(12)
	egenc.EncodeByte(0)
	obs.WriteBits(0, 32)
	obs.Close()

	ibs, _ := bitstream.NewDefaultInputBitStream(bs, 16384)
	dec, _ := NewHuffmanDecoder(ibs)

	if _, err := dec.Read(make([]byte, 16)); errors.Cause(err) != kanzi.ErrInvalidBitstream {
		b.Errorf("Expected invalid bitstream error, got %v", err)
	}
}

func TestRangeInvalidParameters(b *testing.T) {
	obs, _ := bitstream.NewDefaultOutputBitStream(util.NewBufferStream(nil), 16384)
	ibs, _ := bitstream.NewDefaultInputBitStream(util.NewBufferStream(nil), 16384)

	for _, args := range [][]uint{{100, 12}, {0, 20}, {4096, 7}, {4096}, {0, 12, 1}} {
		if enc, err := NewRangeEncoder(obs, args...); enc != nil || errors.Cause(err) != kanzi.ErrInvalidParam {
			b.Errorf("Expected invalid parameter error for encoder args %v, got %v", args, err)
		}
	}

	for _, args := range [][]uint{{100}, {RANGE_MAX_CHUNK_SIZE + 1}, {4096, 12}} {
		if dec, err := NewRangeDecoder(ibs, args...); dec != nil || errors.Cause(err) != kanzi.ErrInvalidParam {
			b.Errorf("Expected invalid parameter error for decoder args %v, got %v", args, err)
		}
	}

	ctx := map[string]interface{}{"logRange": uint(17)}

	if _, err := NewRangeEncoderWithCtx(obs, &ctx); errors.Cause(err) != kanzi.ErrInvalidParam {
		b.Errorf("Expected invalid parameter error for context log range, got %v", err)
	}
}

func TestRangeAllLogRanges(b *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	values := make([]byte, 70000)

	for i := range values {
		values[i] = byte(min(rnd.ExpFloat64()*12, 255))
	}

	for lr := uint(8); lr <= 16; lr++ {
		bs := util.NewBufferStream(nil)
		obs, _ := bitstream.NewDefaultOutputBitStream(bs, 16384)
		enc, err := NewRangeEncoder(obs, 0, lr)

		if err != nil {
			b.Fatal(err)
		}

		if _, err := enc.Write(values); err != nil {
			b.Fatalf("log range %d: %v", lr, err)
		}

		obs.Close()
		ibs, _ := bitstream.NewDefaultInputBitStream(bs, 16384)

		// The chunk header stores the log range minus 8 in 3 bits
		if _, err := DecodeAlphabet(ibs, make([]int, 256)); err != nil {
			b.Fatal(err)
		}

		if got := uint(ibs.ReadBits(3)) + 8; got != min(lr, 15) {
			b.Errorf("log range %d: header holds %d", lr, got)
		}

		bs.SetOffset(0)
		ibs, _ = bitstream.NewDefaultInputBitStream(bs, 16384)
		dec, _ := NewRangeDecoder(ibs, 0)
		res := make([]byte, len(values))

		if _, err := dec.Read(res); err != nil {
			b.Fatalf("log range %d: %v", lr, err)
		}

		if bytes.Equal(values, res) == false {
			b.Errorf("log range %d: decoded data differs", lr)
		}
	}
}

func TestExpGolombAllValues(b *testing.T) {
	values := make([]byte, 256)

	for i := range values {
		values[i] = byte(i)
	}

	for _, signed := range []bool{true, false} {
		bs := util.NewBufferStream(nil)
		obs, _ := bitstream.NewDefaultOutputBitStream(bs, 16384)
		ec, _ := NewExpGolombEncoder(obs, signed)

		for _, v := range values {
			ec.EncodeByte(v)
		}

		obs.Close()
		ibs, _ := bitstream.NewDefaultInputBitStream(bs, 16384)
		ed, _ := NewExpGolombDecoder(ibs, signed)

		for _, v := range values {
			if r := ed.DecodeByte(); r != v {
				b.Errorf("Signed=%v: expected %d, got %d", signed, v, r)
			}
		}
	}

	// Code lengths: 0 -> '1', 1 -> '010' (unsigned) or '0100' (signed, positive)
	if code := _EXPG_CODES[0][1]; code>>24 != 3 || code&0xFFFFFF != 2 {
		b.Errorf("Unexpected unsigned code for 1: %x", code)
	}

	if code := _EXPG_CODES[1][1]; code>>24 != 4 || code&0xFFFFFF != 4 {
		b.Errorf("Unexpected signed code for 1: %x", code)
	}

	if code := _EXPG_CODES[1][255]; code>>24 != 4 || code&0xFFFFFF != 5 {
		b.Errorf("Unexpected signed code for -1: %x", code)
	}
}

func TestExpGolombInvalidPrefix(b *testing.T) {
	bs := util.NewBufferStream(nil)
	obs, _ := bitstream.NewDefaultOutputBitStream(bs, 16384)
	obs.WriteBits(0, 16)
	obs.Close()
	ibs, _ := bitstream.NewDefaultInputBitStream(bs, 16384)
	ed, _ := NewExpGolombDecoder(ibs, false)

	if _, err := ed.Read(make([]byte, 1)); errors.Cause(err) != kanzi.ErrInvalidBitstream {
		b.Errorf("Expected invalid bitstream error, got %v", err)
	}
}

func TestBinaryEntropyInvalidChunkSize(b *testing.T) {
	bs := util.NewBufferStream(nil)
	obs, _ := bitstream.NewDefaultOutputBitStream(bs, 16384)
	WriteVarInt(obs, 1<<20)
	obs.WriteBits(0, 64)
	obs.Close()
	ibs, _ := bitstream.NewDefaultInputBitStream(bs, 16384)
	predictor, _ := NewFPAQPredictor()
	ed, _ := NewBinaryEntropyDecoder(ibs, predictor)

	if _, err := ed.Read(make([]byte, 10)); errors.Cause(err) != kanzi.ErrInvalidBitstream {
		b.Errorf("Expected invalid bitstream error, got %v", err)
	}

	if _, err := NewBinaryEntropyDecoder(ibs, nil); errors.Cause(err) != kanzi.ErrInvalidParam {
		b.Errorf("Expected invalid parameter error for nil predictor, got %v", err)
	}
}

func TestBinaryEntropyCompression(b *testing.T) {
	// A low entropy block must shrink
	values := bytes.Repeat([]byte("0123456789abcdef"), 1024)
	ctx := map[string]interface{}{"logStates": uint(16), "size": uint(len(values))}

	for _, name := range []string{"FPAQ", "CM", "TPAQ"} {
		bs := util.NewBufferStream(nil)
		obs, _ := bitstream.NewDefaultOutputBitStream(bs, 16384)
		ec, err := getEncoder(name, ctx, obs)

		if err != nil {
			b.Fatal(err)
		}

		ec.Write(values)
		ec.Dispose()
		obs.Close()

		if bs.Len() >= len(values) {
			b.Errorf("%s: no compression (%d -> %d bytes)", name, len(values), bs.Len())
		}
	}
}

func TestFactory(b *testing.T) {
	for _, eType := range []uint32{NONE_TYPE, HUFFMAN_TYPE, FPAQ_TYPE, RANGE_TYPE, ANS0_TYPE, CM_TYPE, TPAQ_TYPE, ANS1_TYPE, TPAQX_TYPE, EXPGOLOMB_TYPE} {
		name := GetName(eType)

		if name == "" {
			b.Errorf("No name for type %d", eType)
			continue
		}

		if t, err := GetType(name); err != nil || t != eType {
			b.Errorf("Type mismatch for %s: %d (%v)", name, t, err)
		}
	}

	if t, err := GetType("tpaqx"); err != nil || t != TPAQX_TYPE {
		b.Errorf("Names must be case insensitive: %d (%v)", t, err)
	}

	if name := GetName(42); name != "" {
		b.Errorf("Expected an empty name for an unknown type, got %s", name)
	}

	if _, err := GetType("HUFFMAN2"); errors.Cause(err) != kanzi.ErrInvalidParam {
		b.Errorf("Expected invalid parameter error for unknown name, got %v", err)
	}

	obs, _ := bitstream.NewDefaultOutputBitStream(util.NewBufferStream(nil), 16384)

	if _, err := NewEntropyEncoder(obs, nil, 42); errors.Cause(err) != kanzi.ErrInvalidParam {
		b.Errorf("Expected invalid parameter error for unknown type, got %v", err)
	}

	ctx := map[string]interface{}{"logStates": uint(40)}

	if _, err := NewEntropyEncoder(obs, ctx, TPAQ_TYPE); errors.Cause(err) != kanzi.ErrInvalidParam {
		b.Errorf("Expected invalid parameter error for logStates, got %v", err)
	}

	ctx = map[string]interface{}{"signed": "yes"}

	if _, err := NewEntropyEncoder(obs, ctx, EXPGOLOMB_TYPE); errors.Cause(err) != kanzi.ErrInvalidParam {
		b.Errorf("Expected invalid parameter error for signed flag, got %v", err)
	}
}

type eventCollector struct {
	events []*kanzi.Event
}

func (this *eventCollector) ProcessEvent(evt *kanzi.Event) {
	this.events = append(this.events, evt)
}

func TestListeners(b *testing.T) {
	values := make([]byte, 3000)

	for i := range values {
		values[i] = byte(i % 17)
	}

	for _, name := range []string{"ANS0", "HUFFMAN", "RANGE", "FPAQ"} {
		collector := &eventCollector{}
		ctx := map[string]interface{}{"chunkSize": uint(1024), "listeners": collector}
		bs := util.NewBufferStream(nil)
		obs, _ := bitstream.NewDefaultOutputBitStream(bs, 16384)
		ec, err := getEncoder(name, ctx, obs)

		if err != nil {
			b.Fatal(err)
		}

		ec.Write(values)
		ec.Dispose()
		obs.Close()
		evts := collector.events

		if len(evts) < 3 {
			b.Fatalf("%s: expected at least 3 events, got %d", name, len(evts))
		}

		first, last := evts[0], evts[len(evts)-1]

		if first.Type() != kanzi.EVT_BEFORE_ENTROPY || first.Size() != int64(len(values)) {
			b.Errorf("%s: unexpected first event: %v", name, first)
		}

		if last.Type() != kanzi.EVT_AFTER_ENTROPY || last.Size() != int64(bs.Len()) {
			b.Errorf("%s: unexpected last event: %v (stream is %d bytes)", name, last, bs.Len())
		}

		chunks := 0

		for _, evt := range evts[1 : len(evts)-1] {
			if evt.Type() != kanzi.EVT_AFTER_CHUNK {
				b.Errorf("%s: unexpected event type %d", name, evt.Type())
			}

			chunks++
		}

		// 3 chunks of at most 1024 bytes, one chunk for the binary coder
		if name != "FPAQ" && chunks != 3 || name == "FPAQ" && chunks != 1 {
			b.Errorf("%s: unexpected number of chunk events: %d", name, chunks)
		}
	}
}
