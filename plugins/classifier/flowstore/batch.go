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

package flowstore

import (
	"sort"

	"github.com/contiv/sfc-classifier/plugins/classifier/model"
)

// pendingSet is a set of staged operations keyed by rule ID,
// iterated in the order the rules were first staged.
type pendingSet struct {
	order []model.FlowID
	flows map[model.FlowID]*model.FlowDescriptor
}

func newPendingSet() *pendingSet {
	return &pendingSet{flows: make(map[model.FlowID]*model.FlowDescriptor)}
}

func (ps *pendingSet) put(flow *model.FlowDescriptor) {
	id := flow.ID()
	if _, staged := ps.flows[id]; !staged {
		ps.order = append(ps.order, id)
	}
	ps.flows[id] = flow
}

func (ps *pendingSet) remove(id model.FlowID) {
	if _, staged := ps.flows[id]; !staged {
		return
	}
	delete(ps.flows, id)
	for i := range ps.order {
		if ps.order[i] == id {
			ps.order = append(ps.order[:i], ps.order[i+1:]...)
			break
		}
	}
}

func (ps *pendingSet) len() int {
	return len(ps.flows)
}

// drain returns staged operations in order and empties the set.
func (ps *pendingSet) drain() []*model.FlowDescriptor {
	flows := make([]*model.FlowDescriptor, 0, len(ps.order))
	for _, id := range ps.order {
		flows = append(flows, ps.flows[id])
	}
	ps.order = nil
	ps.flows = make(map[model.FlowID]*model.FlowDescriptor)
	return flows
}

// batch groups operations targeting the same table of the same switch.
type batch struct {
	switchID string
	tableID  uint8
	flows    []*model.FlowDescriptor
}

// groupBatches splits operations into batches ordered by switch and table.
// Operations keep their relative order inside a batch.
func groupBatches(flows []*model.FlowDescriptor) []*batch {
	type batchKey struct {
		switchID string
		tableID  uint8
	}
	byKey := make(map[batchKey]*batch)
	var batches []*batch
	for _, flow := range flows {
		key := batchKey{switchID: flow.SwitchID, tableID: flow.TableID}
		b, exists := byKey[key]
		if !exists {
			b = &batch{switchID: flow.SwitchID, tableID: flow.TableID}
			byKey[key] = b
			batches = append(batches, b)
		}
		b.flows = append(b.flows, flow)
	}
	sort.SliceStable(batches, func(i, j int) bool {
		if batches[i].switchID != batches[j].switchID {
			return batches[i].switchID < batches[j].switchID
		}
		return batches[i].tableID < batches[j].tableID
	})
	return batches
}
