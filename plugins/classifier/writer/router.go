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

package writer

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Router dispatches batches to the writer registered for the switch,
// or to the default writer.
type Router struct {
	sync.RWMutex
	Default FlowWriter
	writers map[string]FlowWriter
}

// NewRouter creates a router with the given default writer (may be nil).
func NewRouter(defaultWriter FlowWriter) *Router {
	return &Router{
		Default: defaultWriter,
		writers: make(map[string]FlowWriter),
	}
}

// Register selects writer for the given switch.
func (r *Router) Register(switchID string, w FlowWriter) {
	r.Lock()
	defer r.Unlock()
	r.writers[switchID] = w
}

// Unregister removes switch-specific writer.
func (r *Router) Unregister(switchID string) {
	r.Lock()
	defer r.Unlock()
	delete(r.writers, switchID)
}

// WriterFor returns the writer responsible for the switch.
func (r *Router) WriterFor(switchID string) FlowWriter {
	r.RLock()
	defer r.RUnlock()
	if w, has := r.writers[switchID]; has {
		return w
	}
	return r.Default
}

// CommitBatch forwards the batch to the writer responsible for the switch.
func (r *Router) CommitBatch(ctx context.Context, switchID string, tableID uint8, ops []FlowOp) error {
	w := r.WriterFor(switchID)
	if w == nil {
		return errors.Errorf("no flow writer for switch %s", switchID)
	}
	return w.CommitBatch(ctx, switchID, tableID, ops)
}
