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
)

const (
	TPAQ_BEGIN_LEARN_RATE = 60 << 7
	TPAQ_END_LEARN_RATE   = 11 << 7
	_TPAQ_MAX_WEIGHT      = 1 << 24
)

// TPAQMixer combines the predictions of 8 models using a single layer
// neural network. Inputs are stretched probabilities, the output is a
// probability in [0..4095].
// get() and update() must alternate: update() trains the weights with the
// inputs cached by the previous get().
type TPAQMixer struct {
	pr        int // squashed prediction
	skew      int32
	learnRate int32
	weights   [8]int32
	inputs    [8]int32
}

func (this *TPAQMixer) init() {
	this.pr = 2048
	this.skew = 0
	this.learnRate = TPAQ_BEGIN_LEARN_RATE

	for i := range this.weights {
		this.weights[i] = 32768
	}
}

// Adjust weights to minimize coding cost of last prediction
func (this *TPAQMixer) update(bit int) {
	err := (int32((bit<<12)-this.pr) * this.learnRate) >> 10

	if err == 0 {
		return
	}

	// Quickly decaying learn rate
	this.learnRate += (TPAQ_END_LEARN_RATE - this.learnRate) >> 31
	this.skew += err

	// Train Neural Network: update weights
	for i, p := range this.inputs {
		w := this.weights[i] + ((p * err) >> 12)

		if w > _TPAQ_MAX_WEIGHT {
			w = _TPAQ_MAX_WEIGHT
		} else if w < -_TPAQ_MAX_WEIGHT {
			w = -_TPAQ_MAX_WEIGHT
		}

		this.weights[i] = w
	}
}

func (this *TPAQMixer) get(p0, p1, p2, p3, p4, p5, p6, p7 int32) int {
	this.inputs = [8]int32{p0, p1, p2, p3, p4, p5, p6, p7}

	// Neural Network dot product (sum weights*inputs)
	dot := int64(this.skew) + 65536

	for i, p := range this.inputs {
		dot += int64(p) * int64(this.weights[i])
	}

	this.pr = kanzi.Squash(int(dot >> 17))
	return this.pr
}
