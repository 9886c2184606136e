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

// TPAQ predictor
// Derived from a heavily modified version of Tangelo 2.4 (by Jan Ondrus).
// PAQ8 is written by Matt Mahoney.
// See http://encode.ru/threads/1738-TANGELO-new-compressor-(derived-from-PAQ8-FP8)

const (
	TPAQ_MAX_LENGTH     = 88
	TPAQ_MIN_LOG_STATES = 16
	TPAQ_MAX_LOG_STATES = 30
	TPAQ_MASK_80808080  = int32(-2139062144) // 0x80808080
	TPAQ_MASK_F0F0F0F0  = int32(-252645136)  // 0xF0F0F0F0
	TPAQ_HASH           = int32(0x7FEB352D)
	_TPAQ_MIN_BUFFER    = 1 << 16
	_TPAQ_MAX_BUFFER    = 1 << 26
	_TPAQ_MIN_HASH      = 1 << 16
	_TPAQ_MAX_HASH      = 1 << 24
)

func hashTPAQ(x, y int32) int32 {
	h := x*TPAQ_HASH ^ y*TPAQ_HASH
	return h>>1 ^ h>>9 ^ x>>2 ^ y>>3 ^ TPAQ_HASH
}

func createContext(ctxID, cx int32) int32 {
	cx = cx*987654323 + ctxID
	cx = (cx << 16) | int32(uint32(cx)>>16)
	return cx*123456791 + ctxID
}

// TPAQPredictor is a context mixing bit predictor. Seven context models
// (orders 1 to 4, word and sparse contexts) and a match model feed a mixer
// selected by the partial byte. The mixer output is refined by an APM.
type TPAQPredictor struct {
	pr              int   // next predicted value (0-4095)
	c0              int32 // bitwise context: last 0-7 bits with a leading 1 (1-255)
	c4              int32 // last 4 whole bytes, last is in low 8 bits
	c8              int32 // last 8 to 4 whole bytes, last is in low 8 bits
	bpos            uint  // number of bits in c0 (0-7)
	pos             int32
	binCount        int32
	matchLen        int32
	matchPos        int32
	hash            int32
	statesMask      int32
	mixersMask      int32
	hashMask        int32
	bufferMask      int32
	sse0            AdaptiveProbMap
	sse1            AdaptiveProbMap
	mixers          []TPAQMixer
	mixer           *TPAQMixer // current mixer
	buffer          []int8
	hashes          []int32 // hash table(context, buffer position)
	bigStatesMap    []uint8 // hash table(context, prediction)
	smallStatesMap0 []uint8 // direct table(order 1 context, prediction)
	smallStatesMap1 []uint8 // direct table(order 2 context, prediction)
	cp              [7]int32 // context pointers: indexes in the states maps
	ctx             [7]int32 // contexts
	extra           bool
}

// NewTPAQPredictor creates a new instance of TPAQPredictor.
// The context map keys are:
// "codec" ("TPAQX" enables the extra mode: more memory and a second APM),
// "logStates" (log2 of the size of the states table, in [16..30]),
// "blockSize" (requested block size, selects logStates when absent),
// "size" (actual size of the block, selects the number of mixers and the
// size of the history buffer and match hash table) and
// "apm" (type of the SSE stage: "LOGISTIC" by default, "LINEAR" or "FAST_LOGISTIC").
func NewTPAQPredictor(ctx *map[string]interface{}) (*TPAQPredictor, error) {
	codec, err := ctxString(ctx, "codec", "TPAQ")

	if err != nil {
		return nil, err
	}

	extra, err := ctxBool(ctx, "extra", codec == "TPAQX")

	if err != nil {
		return nil, err
	}

	// Block size requested by the user
	// The user can request a big block size to force more states
	rbsz, err := ctxUint(ctx, "blockSize", 0)

	if err != nil {
		return nil, err
	}

	logStates := uint(26)

	if rbsz >= 64*1024*1024 {
		logStates = 29
	} else if rbsz >= 16*1024*1024 {
		logStates = 28
	} else if rbsz >= 1024*1024 {
		logStates = 27
	}

	apmName, err := ctxString(ctx, "apm", "LOGISTIC")

	if err != nil {
		return nil, err
	}

	apmType, err := GetAPMType(apmName)

	if err != nil {
		return nil, err
	}

	if logStates, err = ctxUint(ctx, "logStates", logStates); err != nil {
		return nil, err
	}

	if logStates < TPAQ_MIN_LOG_STATES || logStates > TPAQ_MAX_LOG_STATES {
		return nil, errors.Wrapf(kanzi.ErrInvalidParam, "TPAQ predictor: invalid logStates %d (must be in [%d..%d])",
			logStates, TPAQ_MIN_LOG_STATES, TPAQ_MAX_LOG_STATES)
	}

	// Actual size of the current block
	// Too many mixers hurts compression for small blocks.
	// Too few mixers hurts compression for big blocks.
	absz, err := ctxUint(ctx, "size", 0)

	if err != nil {
		return nil, err
	}

	mixersSize := 1 << 12
	bufferSize := _TPAQ_MAX_BUFFER

	if absz > 0 {
		if absz >= 16*1024*1024 {
			mixersSize = 1 << 16
		} else if absz >= 8*1024*1024 {
			mixersSize = 1 << 14
		} else if absz >= 4*1024*1024 {
			mixersSize = 1 << 12
		} else if absz >= 1024*1024 {
			mixersSize = 1 << 10
		} else {
			mixersSize = 1 << 9
		}

		bufferSize = int(kanzi.RoundUpPowerOfTwo(uint32(min(absz, _TPAQ_MAX_BUFFER))))
		bufferSize = max(bufferSize, _TPAQ_MIN_BUFFER)
	}

	hashSize := min(max(bufferSize>>2, _TPAQ_MIN_HASH), _TPAQ_MAX_HASH)
	statesSize := 1 << logStates

	// If extra mode, add more memory for states table, hash table
	// and add second SSE
	if extra == true {
		if logStates < TPAQ_MAX_LOG_STATES {
			statesSize <<= 1
		}

		hashSize <<= 2
	}

	this := &TPAQPredictor{}
	this.extra = extra
	this.mixers = make([]TPAQMixer, mixersSize)

	for i := range this.mixers {
		this.mixers[i].init()
	}

	this.mixer = &this.mixers[0]
	this.pr = 2048
	this.c0 = 1
	this.bigStatesMap = make([]uint8, statesSize)
	this.smallStatesMap0 = make([]uint8, 1<<16)
	this.smallStatesMap1 = make([]uint8, 1<<24)
	this.hashes = make([]int32, hashSize)
	this.buffer = make([]int8, bufferSize)
	this.statesMask = int32(statesSize - 1)
	this.mixersMask = int32(mixersSize - 1)
	this.hashMask = int32(hashSize - 1)
	this.bufferMask = int32(bufferSize - 1)

	if this.sse1, err = NewAdaptiveProbMap(apmType, 65536, 7); err != nil {
		return nil, err
	}

	if extra == true {
		if this.sse0, err = NewAdaptiveProbMap(apmType, 256, 7); err != nil {
			return nil, err
		}
	}

	return this, nil
}

// Update updates the probability model with the bit just coded
func (this *TPAQPredictor) Update(bit byte) {
	y := int(bit)
	this.mixer.update(y)
	this.bpos++
	this.c0 = (this.c0 << 1) | int32(bit)

	if this.c0 > 255 {
		this.updateByteContexts()
	}

	// Update the states seen with the previous context, then get initial
	// predictions for the new one
	c := this.c0
	table := &TPAQ_STATE_TRANSITIONS[bit]
	var p [7]int32

	this.smallStatesMap0[this.cp[0]] = table[this.smallStatesMap0[this.cp[0]]]
	this.cp[0] = this.ctx[0] + c
	p[0] = TPAQ_STATE_MAP[this.smallStatesMap0[this.cp[0]]]

	this.smallStatesMap1[this.cp[1]] = table[this.smallStatesMap1[this.cp[1]]]
	this.cp[1] = this.ctx[1] + c
	p[1] = TPAQ_STATE_MAP[this.smallStatesMap1[this.cp[1]]]

	for i := 2; i < 7; i++ {
		this.bigStatesMap[this.cp[i]] = table[this.bigStatesMap[this.cp[i]]]
		this.cp[i] = (this.ctx[i] + c) & this.statesMask
		p[i] = TPAQ_STATE_MAP[this.bigStatesMap[this.cp[i]]]
	}

	p7 := this.getMatchContextPred()

	// Mix predictions using the NN selected by the partial byte and the last byte
	this.mixer = &this.mixers[(((this.c4&0xFF)<<8)|c)&this.mixersMask]
	pr := this.mixer.get(p[0], p[1], p[2], p[3], p[4], p[5], p[6], p7)

	// SSE (Secondary Symbol Estimation)
	apmCtx := int(c | (this.c4 & 0xFF00))

	if this.extra == false || this.binCount < this.pos>>2 {
		pr = this.sse1.Get(y, pr, apmCtx)
	} else {
		pr = this.sse0.Get(y, pr, int(c))
		pr = (3*this.sse1.Get(y, pr, apmCtx) + pr + 2) >> 2
	}

	if pr < 2048 {
		pr++
	}

	this.pr = pr
}

// A full byte has been seen: roll history and compute the new contexts
func (this *TPAQPredictor) updateByteContexts() {
	this.buffer[this.pos&this.bufferMask] = int8(this.c0)
	this.pos++
	this.c8 = (this.c8 << 8) | ((this.c4 >> 24) & 0xFF)
	this.c4 = (this.c4 << 8) | (this.c0 & 0xFF)
	this.hash = (((this.hash * TPAQ_HASH) << 4) + this.c4) & this.hashMask
	this.c0 = 1
	this.bpos = 0
	this.binCount += (this.c4 >> 7) & 1

	// Add contexts to NN
	this.ctx[0] = (this.c4 & 0xFF) << 8
	this.ctx[1] = (this.c4 & 0xFFFF) << 8
	this.ctx[2] = createContext(2, this.c4&0x00FFFFFF)
	this.ctx[3] = createContext(3, this.c4)

	if this.binCount < this.pos>>2 {
		// Mostly text or mixed
		h1 := this.c4
		h2 := this.c8

		if h1&TPAQ_MASK_80808080 != 0 {
			h1 &= TPAQ_MASK_80808080
		}

		if h2&TPAQ_MASK_80808080 != 0 {
			h2 &= TPAQ_MASK_80808080
		}

		this.ctx[4] = createContext(4, this.c4^(this.c8&0xFFFF))
		this.ctx[5] = hashTPAQ(h1, h2)
		this.ctx[6] = hashTPAQ(this.c8&TPAQ_MASK_F0F0F0F0, this.c4&TPAQ_MASK_F0F0F0F0)
	} else {
		// Mostly binary
		this.ctx[4] = createContext(4, this.c4^(this.c4&0xFFFF))
		this.ctx[5] = hashTPAQ(this.c4>>16, this.c8>>16)
		this.ctx[6] = ((this.c4 & 0xFF) << 8) | ((this.c8 & 0xFFFF) << 16)
	}

	this.findMatch()

	// Keep track of current position
	this.hashes[this.hash] = this.pos
}

// Get returns the split value representing the probability of 1 in the [0..4095] range.
func (this *TPAQPredictor) Get() int {
	return this.pr
}

func (this *TPAQPredictor) findMatch() {
	// Update ongoing sequence match or detect match in the buffer (LZ like)
	if this.matchLen > 0 {
		if this.matchLen < TPAQ_MAX_LENGTH {
			this.matchLen++
		}

		this.matchPos++
		return
	}

	// Retrieve match position
	this.matchPos = this.hashes[this.hash]

	// Detect match
	if this.matchPos != 0 && this.pos-this.matchPos <= this.bufferMask {
		r := this.matchLen + 1

		for r <= TPAQ_MAX_LENGTH && this.buffer[(this.pos-r)&this.bufferMask] == this.buffer[(this.matchPos-r)&this.bufferMask] {
			r++
		}

		this.matchLen = r - 1
	}
}

// Get a prediction from the match model in [-2047..2048]
func (this *TPAQPredictor) getMatchContextPred() int32 {
	if this.matchLen <= 0 {
		return 0
	}

	expected := int32(this.buffer[this.matchPos&this.bufferMask]) & 0xFF

	if this.c0 != (expected|256)>>(8-this.bpos) {
		this.matchLen = 0
		return 0
	}

	// Add match length to NN inputs. Compute input based on run length
	p := this.matchLen

	if p > 24 {
		p = 24 + ((this.matchLen - 24) >> 3)
	}

	if (expected>>(7-this.bpos))&1 == 0 {
		p = -p
	}

	return p << 6
}
