// Copyright (c) 2019 Cisco and/or its affiliates.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at:
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package flowwriter

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/contiv/sfc-classifier/plugins/classifier/model"
	"github.com/contiv/sfc-classifier/plugins/classifier/writer"
)

// Batch is a recorded CommitBatch call.
type Batch struct {
	SwitchID string
	TableID  uint8
	Ops      []writer.FlowOp
}

// MockFlowWriter records committed batches and keeps the resulting
// set of installed rules.
type MockFlowWriter struct {
	sync.Mutex
	batches   []Batch
	installed map[string]model.FlowBody
	failing   map[string]error
	held      map[string]*hold
}

// hold keeps batches of a switch waiting inside CommitBatch.
type hold struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// NewMockFlowWriter creates a new instance of the mock writer.
func NewMockFlowWriter() *MockFlowWriter {
	return &MockFlowWriter{
		installed: make(map[string]model.FlowBody),
		failing:   make(map[string]error),
		held:      make(map[string]*hold),
	}
}

// HoldSwitch makes batches for the given switch wait inside CommitBatch until
// release is called. A value is sent to entered whenever a batch starts waiting.
func (w *MockFlowWriter) HoldSwitch(switchID string) (entered <-chan struct{}, release func()) {
	h := &hold{
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
	w.Lock()
	w.held[switchID] = h
	w.Unlock()
	return h.entered, func() {
		h.once.Do(func() {
			w.Lock()
			delete(w.held, switchID)
			w.Unlock()
			close(h.release)
		})
	}
}

// FailSwitch makes every batch for the given switch fail with the given error.
// Nil error clears the failure.
func (w *MockFlowWriter) FailSwitch(switchID string, err error) {
	w.Lock()
	defer w.Unlock()
	if err == nil {
		delete(w.failing, switchID)
		return
	}
	w.failing[switchID] = err
}

// CommitBatch records the batch and applies it to the installed rules.
func (w *MockFlowWriter) CommitBatch(ctx context.Context, switchID string, tableID uint8, ops []writer.FlowOp) error {
	w.Lock()
	h := w.held[switchID]
	w.Unlock()
	if h != nil {
		h.entered <- struct{}{}
		<-h.release
	}

	w.Lock()
	defer w.Unlock()
	if err, fail := w.failing[switchID]; fail {
		return errors.Wrapf(err, "switch %s", switchID)
	}
	w.batches = append(w.batches, Batch{
		SwitchID: switchID,
		TableID:  tableID,
		Ops:      append([]writer.FlowOp(nil), ops...),
	})
	for _, op := range ops {
		id := flowID(switchID, tableID, op.Key)
		if op.IsDelete() {
			delete(w.installed, id)
			continue
		}
		w.installed[id] = op.Body
	}
	return nil
}

// Batches returns all successfully committed batches.
func (w *MockFlowWriter) Batches() []Batch {
	w.Lock()
	defer w.Unlock()
	return append([]Batch(nil), w.batches...)
}

// Reset forgets recorded batches (installed rules are kept).
func (w *MockFlowWriter) Reset() {
	w.Lock()
	defer w.Unlock()
	w.batches = nil
}

// Installed returns the body of an installed rule, nil if not installed.
func (w *MockFlowWriter) Installed(switchID string, tableID uint8, key string) model.FlowBody {
	w.Lock()
	defer w.Unlock()
	return w.installed[flowID(switchID, tableID, key)]
}

// InstalledIDs returns sorted IDs ("switch/table/key") of all installed rules.
func (w *MockFlowWriter) InstalledIDs() []string {
	w.Lock()
	defer w.Unlock()
	var ids []string
	for id := range w.installed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func flowID(switchID string, tableID uint8, key string) string {
	return fmt.Sprintf("%s/%d/%s", switchID, tableID, key)
}
