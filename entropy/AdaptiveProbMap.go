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
	"strings"

	kanzi "github.com/flanglet/kanzi-entropy"
	"github.com/pkg/errors"
)

const (
	LINEAR_APM        = 0
	LOGISTIC_APM      = 1
	FAST_LOGISTIC_APM = 2
)

// APM maps a probability and a context into a new probability
// that the next bit will be 1. After each guess, it updates
// its state to improve future guesses.

// AdaptiveProbMap refines a prediction in [0..4095] given a context
type AdaptiveProbMap interface {
	Get(bit int, pr int, ctx int) int
}

type adaptiveProbMap struct {
	index int      // last prob, context
	rate  uint     // update rate
	data  []uint16 // prob, context -> prob
}

// LinearAdaptiveProbMap interpolates between 65 cells per context in the
// probability domain.
type LinearAdaptiveProbMap adaptiveProbMap

// LogisticAdaptiveProbMap interpolates between 33 cells per context in the
// stretched (logistic) domain.
type LogisticAdaptiveProbMap adaptiveProbMap

// FastLogisticAdaptiveProbMap uses the nearest of 33 cells per context in the
// stretched domain, without interpolation.
type FastLogisticAdaptiveProbMap adaptiveProbMap

// NewAdaptiveProbMap creates an APM of the given type (LINEAR_APM,
// LOGISTIC_APM or FAST_LOGISTIC_APM) with n contexts.
func NewAdaptiveProbMap(mapType int, n, rate uint) (AdaptiveProbMap, error) {
	switch mapType {
	case LINEAR_APM:
		return NewLinearAdaptiveProbMap(n, rate)

	case LOGISTIC_APM:
		return NewLogisticAdaptiveProbMap(n, rate)

	case FAST_LOGISTIC_APM:
		return NewFastLogisticAdaptiveProbMap(n, rate)

	default:
		return nil, errors.Wrapf(kanzi.ErrInvalidParam, "APM: unknown type %d", mapType)
	}
}

// GetAPMType returns the APM type for a name ("LINEAR", "LOGISTIC" or
// "FAST_LOGISTIC", case insensitive).
func GetAPMType(name string) (int, error) {
	switch strings.ToUpper(name) {
	case "LINEAR":
		return LINEAR_APM, nil

	case "LOGISTIC":
		return LOGISTIC_APM, nil

	case "FAST_LOGISTIC":
		return FAST_LOGISTIC_APM, nil

	default:
		return -1, errors.Wrapf(kanzi.ErrInvalidParam, "APM: unknown type name %s", name)
	}
}

func checkAPMParams(n, rate uint) error {
	if n == 0 {
		return errors.Wrap(kanzi.ErrInvalidParam, "APM: the number of contexts must be at least 1")
	}

	if rate < 1 || rate > 15 {
		return errors.Wrapf(kanzi.ErrInvalidParam, "APM: invalid rate %d (must be in [1..15])", rate)
	}

	return nil
}

// newLogisticData allocates n contexts of 33 cells initialized to squash((j-16)*128)*16
func newLogisticData(n uint) []uint16 {
	data := make([]uint16, n*33)

	for j := 0; j <= 32; j++ {
		data[j] = uint16(kanzi.Squash((j-16)<<7) << 4)
	}

	for i := uint(1); i < n; i++ {
		copy(data[i*33:(i+1)*33], data[0:33])
	}

	return data
}

// NewLogisticAdaptiveProbMap creates an APM with n contexts and the given
// update rate (higher is slower).
func NewLogisticAdaptiveProbMap(n, rate uint) (*LogisticAdaptiveProbMap, error) {
	if err := checkAPMParams(n, rate); err != nil {
		return nil, err
	}

	return &LogisticAdaptiveProbMap{data: newLogisticData(n), rate: rate}, nil
}

// Get returns an improved prediction given the previous bit, the prediction
// and the context. The two cells used by the previous call are first moved
// toward the bit.
func (this *LogisticAdaptiveProbMap) Get(bit int, pr int, ctx int) int {
	// Update probability based on error and learning rate
	g := (-bit & 65528) + (bit << this.rate)
	this.data[this.index+1] += uint16((g - int(this.data[this.index+1])) >> this.rate)
	this.data[this.index] += uint16((g - int(this.data[this.index])) >> this.rate)
	pr = kanzi.STRETCH[pr]

	// Find index: 33*ctx + quantized prediction in [0..32]
	this.index = ((pr + 2048) >> 7) + 33*ctx

	// Return interpolated probability
	w := pr & 127
	return (int(this.data[this.index+1])*w + int(this.data[this.index])*(128-w)) >> 11
}

// NewFastLogisticAdaptiveProbMap creates an APM with n contexts and the given
// update rate.
func NewFastLogisticAdaptiveProbMap(n, rate uint) (*FastLogisticAdaptiveProbMap, error) {
	if err := checkAPMParams(n, rate); err != nil {
		return nil, err
	}

	return &FastLogisticAdaptiveProbMap{data: newLogisticData(n), rate: rate}, nil
}

// Get returns an improved prediction given the previous bit, the prediction
// and the context.
func (this *FastLogisticAdaptiveProbMap) Get(bit int, pr int, ctx int) int {
	g := (-bit & 65528) + (bit << this.rate)
	this.data[this.index] += uint16((g - int(this.data[this.index])) >> this.rate)
	this.index = ((kanzi.STRETCH[pr] + 2048) >> 7) + 33*ctx
	return int(this.data[this.index]) >> 4
}

// NewLinearAdaptiveProbMap creates an APM with n contexts and the given
// update rate.
func NewLinearAdaptiveProbMap(n, rate uint) (*LinearAdaptiveProbMap, error) {
	if err := checkAPMParams(n, rate); err != nil {
		return nil, err
	}

	this := &LinearAdaptiveProbMap{}
	this.data = make([]uint16, n*65)
	this.rate = rate

	for j := 0; j <= 64; j++ {
		this.data[j] = uint16(min(j<<6, 4095)) << 4
	}

	for i := uint(1); i < n; i++ {
		copy(this.data[i*65:(i+1)*65], this.data[0:65])
	}

	return this, nil
}

// Get returns an improved prediction given the previous bit, the prediction
// and the context.
func (this *LinearAdaptiveProbMap) Get(bit int, pr int, ctx int) int {
	g := (-bit & 65528) + (bit << this.rate)
	this.data[this.index+1] += uint16((g - int(this.data[this.index+1])) >> this.rate)
	this.data[this.index] += uint16((g - int(this.data[this.index])) >> this.rate)

	// Find index: 65*ctx + quantized prediction in [0..64]
	this.index = (pr >> 6) + 65*ctx

	// Return interpolated probability (cells are 64 apart)
	w := pr & 63
	return (int(this.data[this.index+1])*w + int(this.data[this.index])*(64-w)) >> 10
}
