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
	"time"

	kanzi "github.com/flanglet/kanzi-entropy"
	"github.com/pkg/errors"
)

const (
	NONE_TYPE      = uint32(0)  // No compression
	HUFFMAN_TYPE   = uint32(1)  // Huffman
	FPAQ_TYPE      = uint32(2)  // Fast PAQ (order 0)
	RANGE_TYPE     = uint32(4)  // Range
	ANS0_TYPE      = uint32(5)  // Asymmetric Numerical System order 0
	CM_TYPE        = uint32(6)  // Context Model
	TPAQ_TYPE      = uint32(7)  // Tangelo PAQ
	ANS1_TYPE      = uint32(8)  // Asymmetric Numerical System order 1
	TPAQX_TYPE     = uint32(9)  // Tangelo PAQ Extra
	EXPGOLOMB_TYPE = uint32(10) // Exp-Golomb
)

// NewEntropyDecoder creates a new entropy decoder using the provided type and bitstream
func NewEntropyDecoder(ibs kanzi.InputBitStream, ctx map[string]interface{},
	entropyType uint32) (kanzi.EntropyDecoder, error) {
	switch entropyType {

	case HUFFMAN_TYPE:
		return NewHuffmanDecoderWithCtx(ibs, &ctx)

	case RANGE_TYPE:
		return NewRangeDecoderWithCtx(ibs, &ctx)

	case ANS0_TYPE:
		return NewANSRangeDecoderWithCtx(ibs, &ctx, 0)

	case ANS1_TYPE:
		return NewANSRangeDecoderWithCtx(ibs, &ctx, 1)

	case FPAQ_TYPE:
		predictor, _ := NewFPAQPredictor()
		return NewBinaryEntropyDecoderWithCtx(ibs, predictor, &ctx)

	case CM_TYPE:
		predictor, _ := NewCMPredictor()
		return NewBinaryEntropyDecoderWithCtx(ibs, predictor, &ctx)

	case TPAQ_TYPE, TPAQX_TYPE:
		pctx := withCodec(ctx, GetName(entropyType))
		predictor, err := NewTPAQPredictor(&pctx)

		if err != nil {
			return nil, err
		}

		return NewBinaryEntropyDecoderWithCtx(ibs, predictor, &ctx)

	case EXPGOLOMB_TYPE:
		signed, err := ctxBool(&ctx, "signed", true)

		if err != nil {
			return nil, err
		}

		return NewExpGolombDecoder(ibs, signed)

	case NONE_TYPE:
		return NewNullEntropyDecoder(ibs)

	default:
		return nil, errors.Wrapf(kanzi.ErrInvalidParam, "unsupported entropy codec type: %d", entropyType)
	}
}

// NewEntropyEncoder creates a new entropy encoder using the provided type and bitstream
func NewEntropyEncoder(obs kanzi.OutputBitStream, ctx map[string]interface{},
	entropyType uint32) (kanzi.EntropyEncoder, error) {
	switch entropyType {

	case HUFFMAN_TYPE:
		return NewHuffmanEncoderWithCtx(obs, &ctx)

	case RANGE_TYPE:
		return NewRangeEncoderWithCtx(obs, &ctx)

	case ANS0_TYPE:
		return NewANSRangeEncoderWithCtx(obs, &ctx, 0)

	case ANS1_TYPE:
		return NewANSRangeEncoderWithCtx(obs, &ctx, 1)

	case FPAQ_TYPE:
		predictor, _ := NewFPAQPredictor()
		return NewBinaryEntropyEncoderWithCtx(obs, predictor, &ctx)

	case CM_TYPE:
		predictor, _ := NewCMPredictor()
		return NewBinaryEntropyEncoderWithCtx(obs, predictor, &ctx)

	case TPAQ_TYPE, TPAQX_TYPE:
		pctx := withCodec(ctx, GetName(entropyType))
		predictor, err := NewTPAQPredictor(&pctx)

		if err != nil {
			return nil, err
		}

		return NewBinaryEntropyEncoderWithCtx(obs, predictor, &ctx)

	case EXPGOLOMB_TYPE:
		signed, err := ctxBool(&ctx, "signed", true)

		if err != nil {
			return nil, err
		}

		return NewExpGolombEncoder(obs, signed)

	case NONE_TYPE:
		return NewNullEntropyEncoder(obs)

	default:
		return nil, errors.Wrapf(kanzi.ErrInvalidParam, "unsupported entropy codec type: %d", entropyType)
	}
}

// GetName returns the name of the entropy codec given its type
// (empty for an unknown type).
func GetName(entropyType uint32) string {
	switch entropyType {

	case HUFFMAN_TYPE:
		return "HUFFMAN"

	case RANGE_TYPE:
		return "RANGE"

	case ANS0_TYPE:
		return "ANS0"

	case ANS1_TYPE:
		return "ANS1"

	case FPAQ_TYPE:
		return "FPAQ"

	case CM_TYPE:
		return "CM"

	case TPAQ_TYPE:
		return "TPAQ"

	case TPAQX_TYPE:
		return "TPAQX"

	case EXPGOLOMB_TYPE:
		return "EXPGOLOMB"

	case NONE_TYPE:
		return "NONE"

	default:
		return ""
	}
}

// GetType returns the type of the entropy codec given its name
func GetType(entropyName string) (uint32, error) {
	switch strings.ToUpper(entropyName) {

	case "HUFFMAN":
		return HUFFMAN_TYPE, nil

	case "RANGE":
		return RANGE_TYPE, nil

	case "ANS0":
		return ANS0_TYPE, nil

	case "ANS1":
		return ANS1_TYPE, nil

	case "FPAQ":
		return FPAQ_TYPE, nil

	case "CM":
		return CM_TYPE, nil

	case "TPAQ":
		return TPAQ_TYPE, nil

	case "TPAQX":
		return TPAQX_TYPE, nil

	case "EXPGOLOMB":
		return EXPGOLOMB_TYPE, nil

	case "NONE":
		return NONE_TYPE, nil

	default:
		return 0, errors.Wrapf(kanzi.ErrInvalidParam, "unsupported entropy codec type: '%s'", entropyName)
	}
}

// withCodec returns a copy of the context with the "codec" key set
func withCodec(ctx map[string]interface{}, name string) map[string]interface{} {
	res := make(map[string]interface{}, len(ctx)+1)

	for k, v := range ctx {
		res[k] = v
	}

	res["codec"] = name
	return res
}

// ctxUint returns the value of an unsigned integer key of the context map
// or the default value if the key is absent.
func ctxUint(ctx *map[string]interface{}, key string, def uint) (uint, error) {
	if ctx == nil {
		return def, nil
	}

	val, containsKey := (*ctx)[key]

	if containsKey == false {
		return def, nil
	}

	switch v := val.(type) {
	case uint:
		return v, nil

	case int:
		if v >= 0 {
			return uint(v), nil
		}

	case uint32:
		return uint(v), nil
	}

	return 0, errors.Wrapf(kanzi.ErrInvalidParam, "invalid value for context key '%s': %v", key, val)
}

func ctxBool(ctx *map[string]interface{}, key string, def bool) (bool, error) {
	if ctx == nil {
		return def, nil
	}

	val, containsKey := (*ctx)[key]

	if containsKey == false {
		return def, nil
	}

	if b, ok := val.(bool); ok {
		return b, nil
	}

	return false, errors.Wrapf(kanzi.ErrInvalidParam, "invalid value for context key '%s': %v", key, val)
}

func ctxString(ctx *map[string]interface{}, key string, def string) (string, error) {
	if ctx == nil {
		return def, nil
	}

	val, containsKey := (*ctx)[key]

	if containsKey == false {
		return def, nil
	}

	if s, ok := val.(string); ok {
		return s, nil
	}

	return "", errors.Wrapf(kanzi.ErrInvalidParam, "invalid value for context key '%s': %v", key, val)
}

func ctxListeners(ctx *map[string]interface{}) ([]kanzi.Listener, error) {
	if ctx == nil {
		return nil, nil
	}

	val, containsKey := (*ctx)["listeners"]

	if containsKey == false {
		return nil, nil
	}

	switch v := val.(type) {
	case []kanzi.Listener:
		return v, nil

	case kanzi.Listener:
		return []kanzi.Listener{v}, nil
	}

	return nil, errors.Wrapf(kanzi.ErrInvalidParam, "invalid value for context key 'listeners': %T", val)
}

func notify(listeners []kanzi.Listener, evtType, id int, size int64) {
	if len(listeners) > 0 {
		kanzi.NotifyListeners(listeners, kanzi.NewEvent(evtType, id, size, time.Now()))
	}
}
