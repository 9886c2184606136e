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
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	kanzi "github.com/flanglet/kanzi-entropy"
	"github.com/pkg/errors"
)

func TestBufferStream(t *testing.T) {
	bs := NewBufferStream(nil)
	bs.Write([]byte("abc"))
	bs.Write([]byte("def"))
	buf := make([]byte, 4)

	if n, err := bs.Read(buf); n != 4 || err != nil || string(buf) != "abcd" {
		t.Errorf("First read: got %d bytes %q (%v)", n, buf[:n], err)
	}

	if n, err := bs.Read(buf); n != 2 || err != nil || string(buf[:n]) != "ef" {
		t.Errorf("Second read: got %d bytes %q (%v)", n, buf[:n], err)
	}

	if _, err := bs.Read(buf); err != io.EOF {
		t.Errorf("Expected EOF, got %v", err)
	}

	if err := bs.SetOffset(1); err != nil || bs.Offset() != 1 {
		t.Errorf("SetOffset failed: %v", err)
	}

	if err := bs.SetOffset(7); err == nil {
		t.Errorf("Expected an error for an offset past the end")
	}

	bs.Close()

	if _, err := bs.Write([]byte("x")); err == nil {
		t.Errorf("Expected an error when writing to a closed stream")
	}
}

func TestEventPrinter(t *testing.T) {
	if _, err := NewEventPrinter(1, nil); errors.Cause(err) != kanzi.ErrInvalidParam {
		t.Errorf("Expected invalid parameter error, got %v", err)
	}

	var out bytes.Buffer
	printer, _ := NewEventPrinter(1, &out)
	t0 := time.Unix(1000, 0)
	printer.ProcessEvent(kanzi.NewEvent(kanzi.EVT_BEFORE_ENTROPY, 0, 1000, t0))
	printer.ProcessEvent(kanzi.NewEvent(kanzi.EVT_AFTER_CHUNK, 0, 100, t0))
	printer.ProcessEvent(kanzi.NewEvent(kanzi.EVT_AFTER_ENTROPY, 0, 250, t0.Add(3*time.Millisecond)))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")

	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines at level 1, got %d: %q", len(lines), out.String())
	}

	if !strings.Contains(lines[0], "BEFORE_ENTROPY") {
		t.Errorf("Unexpected first line: %s", lines[0])
	}

	if !strings.Contains(lines[1], "AFTER_ENTROPY") || !strings.Contains(lines[1], "[3 ms]") ||
		!strings.Contains(lines[1], "[ratio 0.2500]") {
		t.Errorf("Unexpected second line: %s", lines[1])
	}

	out.Reset()
	verbose, _ := NewEventPrinter(2, &out)
	verbose.ProcessEvent(kanzi.NewEvent(kanzi.EVT_AFTER_CHUNK, 3, 100, t0))

	if !strings.Contains(out.String(), "AFTER_CHUNK") || !strings.Contains(out.String(), "\"id\": 3") {
		t.Errorf("Unexpected chunk line: %s", out.String())
	}

	out.Reset()
	silent, _ := NewEventPrinter(0, &out)
	silent.ProcessEvent(kanzi.NewEvent(kanzi.EVT_BEFORE_ENTROPY, 0, 1000, t0))

	if out.Len() != 0 {
		t.Errorf("Expected no output at level 0")
	}
}
