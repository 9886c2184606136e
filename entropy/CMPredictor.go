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

const (
	_CM_FAST_RATE   = 2
	_CM_MEDIUM_RATE = 4
	_CM_SLOW_RATE   = 6
	_CM_PSCALE      = 65536
	_CM_CELLS       = 17 // interpolation cells per secondary context
)

// CMPredictor context model predictor based on BCM by Ilya Muravyov.
// See https://github.com/encode84/bcm
// Order 0, 1 and 2 counters are averaged then refined by a secondary
// estimation selected by the partial byte and a run flag (last two bytes equal).
type CMPredictor struct {
	c1       int32 // last byte
	c2       int32 // byte before last
	ctx      int32 // partial byte with a leading 1 (1-255)
	runMask  int32
	idx      int   // secondary estimation cell used by the last prediction
	counter1 []int32 // 256 partial bytes x 257 counters (order 1 then order 0)
	counter2 []int32 // 512 secondary contexts x 17 cells
}

// NewCMPredictor creates a new instance of CMPredictor
func NewCMPredictor() (*CMPredictor, error) {
	this := &CMPredictor{}
	this.ctx = 1
	this.counter1 = make([]int32, 256*257)
	this.counter2 = make([]int32, 512*_CM_CELLS)

	for i := range this.counter1 {
		this.counter1[i] = _CM_PSCALE >> 1
	}

	for i := 0; i < 512; i++ {
		cells := this.counter2[i*_CM_CELLS : (i+1)*_CM_CELLS]

		for j := 0; j < 16; j++ {
			cells[j] = int32(j << 12)
		}

		cells[16] = _CM_PSCALE - 1
	}

	return this, nil
}

// Update updates the probability model based on the internal bit counters
func (this *CMPredictor) Update(bit byte) {
	pc1 := this.counter1[this.ctx*257 : (this.ctx+1)*257]
	pc2 := this.counter2[int(this.ctx|this.runMask)*_CM_CELLS+this.idx:]

	if bit == 0 {
		pc1[256] -= pc1[256] >> _CM_FAST_RATE
		pc1[this.c1] -= pc1[this.c1] >> _CM_MEDIUM_RATE
		pc2[0] -= pc2[0] >> _CM_SLOW_RATE
		pc2[1] -= pc2[1] >> _CM_SLOW_RATE
		this.ctx += this.ctx
	} else {
		pc1[256] -= (pc1[256] - _CM_PSCALE + 16) >> _CM_FAST_RATE
		pc1[this.c1] -= (pc1[this.c1] - _CM_PSCALE + 16) >> _CM_MEDIUM_RATE
		pc2[0] -= (pc2[0] - _CM_PSCALE + 16) >> _CM_SLOW_RATE
		pc2[1] -= (pc2[1] - _CM_PSCALE + 16) >> _CM_SLOW_RATE
		this.ctx += this.ctx + 1
	}

	if this.ctx > 255 {
		this.c2 = this.c1
		this.c1 = this.ctx & 0xFF
		this.ctx = 1

		if this.c1 == this.c2 {
			this.runMask = 0x100
		} else {
			this.runMask = 0
		}
	}
}

// Get returns the value representing the probability of the next bit being 1
// in the [0..4095] range. The probability is computed from the internal
// bit counters.
func (this *CMPredictor) Get() int {
	pc1 := this.counter1[this.ctx*257 : (this.ctx+1)*257]
	p := int(13*(pc1[256]+pc1[this.c1])+6*pc1[this.c2]) >> 5
	this.idx = p >> 12
	pc2 := this.counter2[int(this.ctx|this.runMask)*_CM_CELLS+this.idx:]
	return (p + p + 3*int(pc2[0]+pc2[1]) + 64) >> 7 // rescale to [0..4095]
}
