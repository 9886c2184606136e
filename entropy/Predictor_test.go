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
	"math/rand"
	"testing"

	kanzi "github.com/flanglet/kanzi-entropy"
	"github.com/pkg/errors"
)

func newSmallTPAQ(b *testing.T, codec string) *TPAQPredictor {
	ctx := map[string]interface{}{"codec": codec, "logStates": uint(16), "size": uint(1 << 16)}
	p, err := NewTPAQPredictor(&ctx)

	if err != nil {
		b.Fatal(err)
	}

	return p
}

func TestTPAQStateTable(b *testing.T) {
	// Walk the states reachable from the initial state
	reached := map[uint8]bool{0: true}
	pending := []uint8{0}

	for len(pending) > 0 {
		s := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		for bit := 0; bit < 2; bit++ {
			next := TPAQ_STATE_TRANSITIONS[bit][s]

			if next == 0 {
				b.Errorf("Bit %d: state %d goes back to the initial state", bit, s)
			}

			if reached[next] == false {
				reached[next] = true
				pending = append(pending, next)
			}
		}
	}

	if len(reached) < 200 {
		b.Errorf("Only %d states reachable", len(reached))
	}

	for s, p := range TPAQ_STATE_MAP {
		if p < -2047 || p > 2047 {
			b.Errorf("State %d: prediction %d out of range", s, p)
		}
	}

	// Long runs of the same bit end in confident states
	s0, s1 := uint8(0), uint8(0)

	for i := 0; i < 64; i++ {
		s0 = TPAQ_STATE_TRANSITIONS[0][s0]
		s1 = TPAQ_STATE_TRANSITIONS[1][s1]
	}

	if TPAQ_STATE_MAP[s0] > -1000 {
		b.Errorf("Run of 0s: state %d predicts %d", s0, TPAQ_STATE_MAP[s0])
	}

	if TPAQ_STATE_MAP[s1] < 1000 {
		b.Errorf("Run of 1s: state %d predicts %d", s1, TPAQ_STATE_MAP[s1])
	}
}

func TestTPAQDeterminism(b *testing.T) {
	for _, codec := range []string{"TPAQ", "TPAQX"} {
		p1 := newSmallTPAQ(b, codec)
		p2 := newSmallTPAQ(b, codec)
		rnd := rand.New(rand.NewSource(2017))
		text := []byte("context mixing predicts the next bit from many models at once. ")

		for i := 0; i < 20000; i++ {
			val := text[i%len(text)]

			// Some noise to exercise the match model resets
			if rnd.Intn(50) == 0 {
				val = byte(rnd.Intn(256))
			}

			for shift := 7; shift >= 0; shift-- {
				if p1.Get() != p2.Get() {
					b.Fatalf("%s: predictions differ at byte %d: %d vs %d", codec, i, p1.Get(), p2.Get())
				}

				if pr := p1.Get(); pr < 0 || pr > 4095 {
					b.Fatalf("%s: prediction %d out of range", codec, pr)
				}

				bit := (val >> uint(shift)) & 1
				p1.Update(bit)
				p2.Update(bit)
			}
		}
	}
}

func TestTPAQConvergence(b *testing.T) {
	for _, codec := range []string{"TPAQ", "TPAQX"} {
		for _, val := range []byte{0x00, 0xFF} {
			p := newSmallTPAQ(b, codec)
			bit := val & 1

			// Each bit position has its own contexts, so single predictions may
			// step back during the first bytes. Averages over 16 bytes move
			// toward the extreme.
			var avgs [8]int

			for w := range avgs {
				sum := 0

				for i := 0; i < 8*16; i++ {
					sum += p.Get()
					p.Update(bit)
				}

				avgs[w] = sum / (8 * 16)
			}

			for w := 1; w < len(avgs); w++ {
				if bit == 0 && avgs[w] > avgs[w-1]+16 || bit == 1 && avgs[w] < avgs[w-1]-16 {
					b.Errorf("%s: run of %d: average prediction went from %d to %d", codec, bit, avgs[w-1], avgs[w])
				}
			}

			if bit == 0 && avgs[7] >= avgs[0] || bit == 1 && avgs[7] <= avgs[0] {
				b.Errorf("%s: run of %d: no progress (%v)", codec, bit, avgs)
			}

			for i := 0; i < 8*8192; i++ {
				p.Update(bit)
			}

			// Once converged, the prediction stays at the extreme
			for i := 0; i < 8*1024; i++ {
				pr := p.Get()

				if bit == 0 && pr > 256 || bit == 1 && pr < 3840 {
					b.Fatalf("%s: run of %d: prediction %d at bit %d", codec, bit, pr, i)
				}

				p.Update(bit)
			}
		}
	}
}

func TestTPAQMatchModel(b *testing.T) {
	p := newSmallTPAQ(b, "TPAQ")
	rnd := rand.New(rand.NewSource(5))
	seq := make([]byte, 512)

	for i := range seq {
		seq[i] = byte(rnd.Intn(256))
	}

	// The second copy of the random sequence is predicted by the match model
	for i := 0; i < 2*len(seq); i++ {
		for shift := 7; shift >= 0; shift-- {
			p.Update((seq[i%len(seq)] >> uint(shift)) & 1)
		}
	}

	if p.matchLen == 0 {
		b.Errorf("Expected a match after a repeated sequence")
	}

	if p.matchLen > TPAQ_MAX_LENGTH {
		b.Errorf("Match length %d above maximum", p.matchLen)
	}
}

func TestTPAQInvalidParameters(b *testing.T) {
	tests := []map[string]interface{}{
		{"logStates": uint(15)},
		{"logStates": uint(31)},
		{"logStates": -1},
		{"codec": 7},
		{"size": "big"},
		{"extra": 1},
	}

	for _, ctx := range tests {
		if _, err := NewTPAQPredictor(&ctx); errors.Cause(err) != kanzi.ErrInvalidParam {
			b.Errorf("Context %v: expected invalid parameter error, got %v", ctx, err)
		}
	}
}

func TestTPAQSizing(b *testing.T) {
	ctx := map[string]interface{}{"logStates": uint(16), "size": uint(1000)}
	p, err := NewTPAQPredictor(&ctx)

	if err != nil {
		b.Fatal(err)
	}

	if len(p.mixers) != 1<<9 || len(p.buffer) != _TPAQ_MIN_BUFFER || len(p.bigStatesMap) != 1<<16 {
		b.Errorf("Unexpected sizes: %d mixers, %d buffer, %d states", len(p.mixers), len(p.buffer), len(p.bigStatesMap))
	}

	if p.sse0 != nil {
		b.Errorf("Unexpected second APM in regular mode")
	}

	ctx["codec"] = "TPAQX"

	if p, err = NewTPAQPredictor(&ctx); err != nil {
		b.Fatal(err)
	}

	if len(p.bigStatesMap) != 1<<17 || len(p.hashes) != 4*_TPAQ_MIN_HASH || p.sse0 == nil {
		b.Errorf("Unexpected extra mode sizes: %d states, %d hashes", len(p.bigStatesMap), len(p.hashes))
	}
}

func TestTPAQMixer(b *testing.T) {
	var m TPAQMixer
	m.init()
	prev := m.get(64, 64, 64, 64, 64, 64, 64, 64)

	if prev <= 2048 {
		b.Errorf("Positive inputs must give a prediction above 2048, got %d", prev)
	}

	// Training on 1s with positive inputs can only raise the prediction
	for i := 0; i < 10000; i++ {
		m.update(1)
		pr := m.get(64, 64, 64, 64, 64, 64, 64, 64)

		if pr < prev {
			b.Fatalf("Prediction decreased at step %d: %d -> %d", i, prev, pr)
		}

		prev = pr
	}

	if prev < 3800 {
		b.Errorf("Mixer did not converge: %d", prev)
	}

	for _, w := range m.weights {
		if w > _TPAQ_MAX_WEIGHT || w < -_TPAQ_MAX_WEIGHT {
			b.Errorf("Weight out of range: %d", w)
		}
	}
}

func TestAdaptiveProbMaps(b *testing.T) {
	// The linear map starts as the identity
	for _, pr := range []int{0, 1, 100, 1000, 2048, 3001, 4000} {
		apm, _ := NewLinearAdaptiveProbMap(4, 7)

		if res := apm.Get(0, pr, 2); res != pr {
			b.Errorf("Linear APM: expected %d, got %d", pr, res)
		}
	}

	logistic, _ := NewLogisticAdaptiveProbMap(4, 7)
	fast, _ := NewFastLogisticAdaptiveProbMap(4, 7)

	if res := logistic.Get(0, 2048, 1); res != 2048 {
		b.Errorf("Logistic APM: expected 2048, got %d", res)
	}

	res1, res2 := 0, 0

	for i := 0; i < 500; i++ {
		res1 = logistic.Get(1, 2048, 1)
		res2 = fast.Get(1, 2048, 1)
	}

	if res1 < 3500 || res2 < 3500 {
		b.Errorf("APMs did not learn: %d, %d", res1, res2)
	}

	// Other contexts are untouched
	if res := logistic.Get(1, 2048, 3); res != 2048 {
		b.Errorf("Logistic APM: expected 2048 for an untrained context, got %d", res)
	}

	for _, params := range [][2]uint{{0, 7}, {16, 0}, {16, 16}} {
		if _, err := NewLogisticAdaptiveProbMap(params[0], params[1]); errors.Cause(err) != kanzi.ErrInvalidParam {
			b.Errorf("Parameters %v: expected invalid parameter error, got %v", params, err)
		}

		if _, err := NewLinearAdaptiveProbMap(params[0], params[1]); errors.Cause(err) != kanzi.ErrInvalidParam {
			b.Errorf("Parameters %v: expected invalid parameter error, got %v", params, err)
		}
	}
}

func TestFPAQPredictor(b *testing.T) {
	p, _ := NewFPAQPredictor()

	if p.Get() != 2048 {
		b.Errorf("Expected initial prediction 2048, got %d", p.Get())
	}

	for i := 0; i < 8*1024; i++ {
		p.Update(0)
	}

	if pr := p.Get(); pr > 100 {
		b.Errorf("Expected a prediction close to 0, got %d", pr)
	}
}

func TestCMPredictor(b *testing.T) {
	p, _ := NewCMPredictor()

	if pr := p.Get(); pr < 1900 || pr > 2200 {
		b.Errorf("Expected an initial prediction close to 2048, got %d", pr)
	}

	for i := 0; i < 8*4096; i++ {
		p.Get()
		p.Update(1)
	}

	for i := 0; i < 8*256; i++ {
		if pr := p.Get(); pr < 3800 || pr > 4095 {
			b.Fatalf("Run of 1s: prediction %d at bit %d", pr, i)
		}

		p.Update(1)
	}
}

func TestTPAQAPMTypes(b *testing.T) {
	values := bytes.Repeat([]byte("the sse stage refines the mixer output. "), 200)

	for _, name := range []string{"TPAQ", "TPAQX"} {
		for _, apm := range []string{"LINEAR", "logistic", "FAST_LOGISTIC"} {
			ctx := map[string]interface{}{"logStates": uint(16), "size": uint(len(values)), "apm": apm}

			if err := roundTrip(name, ctx, values); err != nil {
				b.Errorf("%s, APM %s: %v", name, apm, err)
			}
		}
	}

	p := newSmallTPAQ(b, "TPAQ")

	if _, ok := p.sse1.(*LogisticAdaptiveProbMap); ok == false {
		b.Errorf("Expected a logistic APM by default, got %T", p.sse1)
	}

	ctx := map[string]interface{}{"codec": "TPAQX", "logStates": uint(16), "size": uint(1 << 16), "apm": "fast_logistic"}
	p, err := NewTPAQPredictor(&ctx)

	if err != nil {
		b.Fatal(err)
	}

	if _, ok := p.sse0.(*FastLogisticAdaptiveProbMap); ok == false {
		b.Errorf("Expected a fast logistic APM, got %T", p.sse0)
	}

	ctx = map[string]interface{}{"logStates": uint(16), "apm": "CUBIC"}

	if _, err := NewTPAQPredictor(&ctx); errors.Cause(err) != kanzi.ErrInvalidParam {
		b.Errorf("Expected invalid parameter error for APM type, got %v", err)
	}

	if _, err := NewAdaptiveProbMap(3, 16, 7); errors.Cause(err) != kanzi.ErrInvalidParam {
		b.Errorf("Expected invalid parameter error for APM type, got %v", err)
	}
}
