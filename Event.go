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

package kanzi

import (
	"fmt"
	"time"
)

const (
	EVT_BEFORE_ENTROPY = 4 // A block is about to be entropy coded
	EVT_AFTER_ENTROPY  = 5 // A block has been entropy coded
	EVT_AFTER_CHUNK    = 9 // A chunk (own frequency table) has been coded
)

// Event is sent to listeners by the entropy codecs. The id is the index of
// the block for block level events and the index of the chunk within the
// block for chunk events. The size is a number of bytes: uncoded size before
// entropy coding, coded size after.
type Event struct {
	eventType int
	id        int
	size      int64
	eventTime time.Time
	msg       string
}

// NewEvent creates a new event. A zero time means 'now'.
func NewEvent(evtType, id int, size int64, evtTime time.Time) *Event {
	if evtTime.IsZero() {
		evtTime = time.Now()
	}

	return &Event{eventType: evtType, id: id, size: size, eventTime: evtTime}
}

// NewEventFromString creates an event carrying a free form message.
func NewEventFromString(evtType, id int, msg string, evtTime time.Time) *Event {
	evt := NewEvent(evtType, id, 0, evtTime)
	evt.msg = msg
	return evt
}

func (this *Event) Type() int {
	return this.eventType
}

func (this *Event) ID() int {
	return this.id
}

func (this *Event) Time() time.Time {
	return this.eventTime
}

func (this *Event) Size() int64 {
	return this.size
}

func (this *Event) String() string {
	if len(this.msg) > 0 {
		return this.msg
	}

	t := "UNKNOWN"
	id := ""

	switch this.eventType {
	case EVT_BEFORE_ENTROPY:
		t = "BEFORE_ENTROPY"

	case EVT_AFTER_ENTROPY:
		t = "AFTER_ENTROPY"

	case EVT_AFTER_CHUNK:
		t = "AFTER_CHUNK"
	}

	if this.id >= 0 {
		id = fmt.Sprintf(", \"id\": %d", this.id)
	}

	return fmt.Sprintf("{ \"type\":\"%s\"%s, \"size\":%d, \"time\":%d }", t, id, this.size,
		this.eventTime.UnixNano()/1000000)
}

// Listener is notified of the events emitted by the entropy codecs.
// Codecs call ProcessEvent synchronously from the coding goroutine.
type Listener interface {
	ProcessEvent(evt *Event)
}

// NotifyListeners sends the event to all listeners.
func NotifyListeners(listeners []Listener, evt *Event) {
	for _, l := range listeners {
		l.ProcessEvent(evt)
	}
}
