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

package util

import (
	"fmt"
	"io"
	"sync"
	"time"

	kanzi "github.com/flanglet/kanzi-entropy"
	"github.com/pkg/errors"
)

// EventPrinter is a kanzi.Listener writing one line per entropy event.
// Level 0 prints nothing, level 1 prints the block level events with the
// coding time and ratio, level 2 and above also prints the chunk events.
type EventPrinter struct {
	writer io.Writer
	level  uint
	lock   sync.Mutex
	starts map[int]blockInfo
}

type blockInfo struct {
	time0 time.Time
	size0 int64
}

// NewEventPrinter creates a new instance of EventPrinter
func NewEventPrinter(level uint, writer io.Writer) (*EventPrinter, error) {
	if writer == nil {
		return nil, errors.Wrap(kanzi.ErrInvalidParam, "event printer: invalid null writer parameter")
	}

	this := &EventPrinter{}
	this.writer = writer
	this.level = level
	this.starts = make(map[int]blockInfo)
	return this, nil
}

// ProcessEvent receives an event and writes a log record to the internal writer
func (this *EventPrinter) ProcessEvent(evt *kanzi.Event) {
	if this.level == 0 || evt == nil {
		return
	}

	this.lock.Lock()
	defer this.lock.Unlock()

	switch evt.Type() {
	case kanzi.EVT_BEFORE_ENTROPY:
		this.starts[evt.ID()] = blockInfo{time0: evt.Time(), size0: evt.Size()}
		fmt.Fprintln(this.writer, evt)

	case kanzi.EVT_AFTER_ENTROPY:
		bi, exists := this.starts[evt.ID()]

		if exists == false {
			fmt.Fprintln(this.writer, evt)
			return
		}

		delete(this.starts, evt.ID())
		durationMS := evt.Time().Sub(bi.time0).Nanoseconds() / int64(time.Millisecond)

		if bi.size0 > 0 {
			ratio := float64(evt.Size()) / float64(bi.size0)
			fmt.Fprintf(this.writer, "%s [%d ms] [ratio %.4f]\n", evt, durationMS, ratio)
		} else {
			fmt.Fprintf(this.writer, "%s [%d ms]\n", evt, durationMS)
		}

	default:
		if this.level >= 2 {
			fmt.Fprintln(this.writer, evt)
		}
	}
}
