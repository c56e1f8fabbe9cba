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
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ligato/cn-infra/logging"
	"github.com/pkg/errors"

	"github.com/contiv/sfc-classifier/plugins/classifier/model"
	"github.com/contiv/sfc-classifier/plugins/classifier/writer"
)

// Deps lists dependencies of the Store.
type Deps struct {
	Log     logging.Logger
	Writer  writer.FlowWriter
	Metrics *Metrics // optional
}

// Store buffers rules to add and delete, commits them in batches (one per switch
// and table) and keeps an index of installed rules by owning path.
//
// The lock is never held while a batch is being written: pending operations are
// snapshotted under the lock, written without it and the outcome is applied to
// the index under the lock again.
type Store struct {
	Deps

	sync.Mutex
	pathIndex      map[uint32]map[string][]*model.FlowDescriptor // path -> switch -> rules
	owners         map[model.FlowID]uint32
	pendingAdds    *pendingSet
	pendingDeletes *pendingSet
}

// PathRecord is a read-only view of the rules installed for one path on one switch.
type PathRecord struct {
	PathID   uint32                  `json:"pathId"`
	SwitchID string                  `json:"switchId"`
	Flows    []*model.FlowDescriptor `json:"flows"`
}

// NewStore creates an empty Store.
func NewStore(deps Deps) *Store {
	return &Store{
		Deps:           deps,
		pathIndex:      make(map[uint32]map[string][]*model.FlowDescriptor),
		owners:         make(map[model.FlowID]uint32),
		pendingAdds:    newPendingSet(),
		pendingDeletes: newPendingSet(),
	}
}

// Stage buffers a rule for addition (body set) or deletion (body nil).
// Staging the same rule again replaces the previously staged operation.
func (s *Store) Stage(flow *model.FlowDescriptor) {
	s.Lock()
	defer s.Unlock()
	s.stage(flow)
}

// StageAll buffers all the given rules in order.
func (s *Store) StageAll(flows []*model.FlowDescriptor) {
	s.Lock()
	defer s.Unlock()
	for _, flow := range flows {
		s.stage(flow)
	}
}

func (s *Store) stage(flow *model.FlowDescriptor) {
	if flow == nil {
		return
	}
	if flow.IsDelete() {
		s.pendingAdds.remove(flow.ID())
		s.pendingDeletes.put(flow)
		return
	}
	s.pendingDeletes.remove(flow.ID())
	s.pendingAdds.put(flow)
}

// CommitAdds writes all buffered additions and records the successfully written
// rules in the index. The buffer is cleared even if some batches failed.
func (s *Store) CommitAdds(ctx context.Context) error {
	s.Lock()
	flows := s.pendingAdds.drain()
	s.Unlock()

	return s.commit(ctx, opAdd, flows, func(batch []*model.FlowDescriptor) {
		for _, flow := range batch {
			s.record(flow)
		}
	})
}

// CommitDeletes writes all buffered deletions and removes the successfully deleted
// rules from the index. The buffer is cleared even if some batches failed.
func (s *Store) CommitDeletes(ctx context.Context) error {
	s.Lock()
	flows := s.pendingDeletes.drain()
	s.Unlock()

	return s.commit(ctx, opDelete, flows, func(batch []*model.FlowDescriptor) {
		for _, flow := range batch {
			s.forget(flow.ID())
		}
	})
}

// commit writes the rules in batches and applies every successful batch to the index.
func (s *Store) commit(ctx context.Context, op string, flows []*model.FlowDescriptor,
	apply func(batch []*model.FlowDescriptor)) error {

	if len(flows) == 0 {
		return nil
	}

	var failures []string
	for _, batch := range groupBatches(flows) {
		ops := make([]writer.FlowOp, 0, len(batch.flows))
		for _, flow := range batch.flows {
			ops = append(ops, writer.FlowOp{Key: flow.FlowKey, Body: flow.Body})
		}

		err := s.Writer.CommitBatch(ctx, batch.switchID, batch.tableID, ops)
		s.Metrics.commitDone(op, err)
		if err != nil {
			s.Log.Errorf("Failed to %s %d rules in table %d of switch %s: %v",
				op, len(ops), batch.tableID, batch.switchID, err)
			failures = append(failures, errors.Wrapf(err, "%s switch=%s table=%d",
				op, batch.switchID, batch.tableID).Error())
			continue
		}
		s.Log.Debugf("Committed %s of %d rules in table %d of switch %s",
			op, len(ops), batch.tableID, batch.switchID)

		s.Lock()
		apply(batch.flows)
		s.updateMetrics()
		s.Unlock()
	}

	if len(failures) > 0 {
		return errors.Errorf("%d of the batches failed:\n%s", len(failures), strings.Join(failures, "\n"))
	}
	return nil
}

// DeletePath stages deletion of every rule recorded for the path and removes
// the path from the index. Rules of a switch are staged in reverse order
// of their installation.
func (s *Store) DeletePath(pathID uint32) {
	s.Lock()
	defer s.Unlock()

	switches, known := s.pathIndex[pathID]
	if !known {
		s.Log.Debugf("No rules recorded for path %d", pathID)
		return
	}
	for _, switchID := range sortedSwitches(switches) {
		flows := switches[switchID]
		for i := len(flows) - 1; i >= 0; i-- {
			s.stage(flows[i].AsDelete())
			delete(s.owners, flows[i].ID())
		}
	}
	delete(s.pathIndex, pathID)
	s.updateMetrics()
}

// ClearOrphanedBootstraps stages deletion of the bootstrap rules of switches
// no longer referenced by any path and returns IDs of these switches.
func (s *Store) ClearOrphanedBootstraps() []string {
	s.Lock()
	defer s.Unlock()

	bootstraps := s.pathIndex[model.BootstrapPathID]
	var cleared []string
	for _, switchID := range sortedSwitches(bootstraps) {
		references := 0
		for _, switches := range s.pathIndex {
			if len(switches[switchID]) > 0 {
				references++
			}
		}
		// the bootstrap record itself is the only reference
		if references != 1 {
			continue
		}
		for _, flow := range bootstraps[switchID] {
			s.stage(flow.AsDelete())
			delete(s.owners, flow.ID())
		}
		delete(bootstraps, switchID)
		cleared = append(cleared, switchID)
	}
	if len(bootstraps) == 0 {
		delete(s.pathIndex, model.BootstrapPathID)
	}
	if len(cleared) > 0 {
		s.Log.Debugf("Switches without classifier paths: %v", cleared)
	}
	s.updateMetrics()
	return cleared
}

// Purge discards all buffered operations.
func (s *Store) Purge() {
	s.Lock()
	defer s.Unlock()
	s.pendingAdds = newPendingSet()
	s.pendingDeletes = newPendingSet()
}

// Pending returns the number of buffered additions and deletions.
func (s *Store) Pending() (adds, deletes int) {
	s.Lock()
	defer s.Unlock()
	return s.pendingAdds.len(), s.pendingDeletes.len()
}

// PathIDs returns sorted IDs of paths with recorded rules.
func (s *Store) PathIDs() []uint32 {
	s.Lock()
	defer s.Unlock()
	ids := make([]uint32, 0, len(s.pathIndex))
	for id := range s.pathIndex {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Dump returns a copy of the index ordered by path and switch.
func (s *Store) Dump() []PathRecord {
	s.Lock()
	defer s.Unlock()

	var records []PathRecord
	ids := make([]uint32, 0, len(s.pathIndex))
	for id := range s.pathIndex {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		switches := s.pathIndex[id]
		for _, switchID := range sortedSwitches(switches) {
			records = append(records, PathRecord{
				PathID:   id,
				SwitchID: switchID,
				Flows:    append([]*model.FlowDescriptor(nil), switches[switchID]...),
			})
		}
	}
	return records
}

// record adds a rule into the index, replacing any previous record of the same rule.
func (s *Store) record(flow *model.FlowDescriptor) {
	s.forget(flow.ID())
	switches, known := s.pathIndex[flow.OwnerPathID]
	if !known {
		switches = make(map[string][]*model.FlowDescriptor)
		s.pathIndex[flow.OwnerPathID] = switches
	}
	switches[flow.SwitchID] = append(switches[flow.SwitchID], flow)
	s.owners[flow.ID()] = flow.OwnerPathID
}

// forget removes a rule from the index.
func (s *Store) forget(id model.FlowID) {
	pathID, known := s.owners[id]
	if !known {
		return
	}
	delete(s.owners, id)
	switches := s.pathIndex[pathID]
	flows := switches[id.SwitchID]
	for i, flow := range flows {
		if flow.ID() == id {
			flows = append(flows[:i], flows[i+1:]...)
			break
		}
	}
	if len(flows) > 0 {
		switches[id.SwitchID] = flows
		return
	}
	delete(switches, id.SwitchID)
	if len(switches) == 0 {
		delete(s.pathIndex, pathID)
	}
}

func (s *Store) updateMetrics() {
	s.Metrics.setIndexSize(len(s.owners), len(s.pathIndex))
}

func sortedSwitches(switches map[string][]*model.FlowDescriptor) []string {
	ids := make([]string, 0, len(switches))
	for id := range switches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
