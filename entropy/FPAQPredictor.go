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
	_FPAQ_PSCALE = 1 << 16
	_FPAQ_RATE   = 6
)

// FPAQPredictor is a simple (and fast) adaptive order 0 predictor.
// Derived from fpaq0r by Matt Mahoney & Alexander Ratushnyak.
// See http://mattmahoney.net/dc/#fpaq0.
type FPAQPredictor struct {
	probs  [256]int // probability of bit=1 (16 bits) per partial byte
	ctxIdx int      // partial byte with a leading 1 (1-255)
}

// NewFPAQPredictor creates a new instance of FPAQPredictor
func NewFPAQPredictor() (*FPAQPredictor, error) {
	this := &FPAQPredictor{ctxIdx: 1}

	for i := range this.probs {
		this.probs[i] = _FPAQ_PSCALE >> 1
	}

	return this, nil
}

// Update updates the probability model
// bit == 1 -> prob += ((PSCALE-prob) >> 6);
// bit == 0 -> prob -= (prob >> 6);
func (this *FPAQPredictor) Update(bit byte) {
	b := int(bit)
	this.probs[this.ctxIdx] -= ((this.probs[this.ctxIdx] - (-b & _FPAQ_PSCALE)) >> _FPAQ_RATE) + b

	// Register the current bit or wrap after 8 bits
	if this.ctxIdx < 128 {
		this.ctxIdx = (this.ctxIdx << 1) + b
	} else {
		this.ctxIdx = 1
	}
}

// Get returns the split value representing the probability of 1 in the [0..4095] range.
func (this *FPAQPredictor) Get() int {
	return this.probs[this.ctxIdx] >> 4
}
