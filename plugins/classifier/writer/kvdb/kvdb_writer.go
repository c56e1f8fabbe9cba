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

package kvdb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/golang/protobuf/jsonpb"
	structpb "github.com/golang/protobuf/ptypes/struct"
	"github.com/ligato/cn-infra/db/keyval"
	"github.com/ligato/cn-infra/logging"
	"github.com/ligato/cn-infra/servicelabel"
	"github.com/pkg/errors"

	"github.com/contiv/sfc-classifier/plugins/classifier/model"
	"github.com/contiv/sfc-classifier/plugins/classifier/writer"
)

// KeyPrefix is the prefix of classifier rules under the agent prefix of a switch.
const KeyPrefix = "config/sfc-classifier/v1/"

// FlowKey returns the key of a rule relative to the agent prefix of its switch.
func FlowKey(tableID uint8, flowKey string) string {
	return fmt.Sprintf("%stable/%d/flow/%s", KeyPrefix, tableID, flowKey)
}

// KVBrokerFactory is used to create a broker for the key prefix of a switch.
type KVBrokerFactory interface {
	NewBroker(keyPrefix string) keyval.ProtoBroker
}

// Writer stores rules into the key-value store, under the agent prefix
// of each switch, for the agent of the switch to render them.
type Writer struct {
	Deps
}

// Deps lists dependencies of the kvdb Writer.
type Deps struct {
	Log     logging.Logger
	KVStore KVBrokerFactory
}

// NewWriter creates a new kvdb Writer.
func NewWriter(deps Deps) *Writer {
	return &Writer{Deps: deps}
}

// envelope is the stored representation of a rule.
type envelope struct {
	Kind model.BodyKind `json:"kind"`
	Rule model.FlowBody `json:"rule"`
}

// EncodeBody converts rule body into the stored protobuf value.
func EncodeBody(body model.FlowBody) (*structpb.Struct, error) {
	data, err := json.Marshal(envelope{Kind: body.BodyKind(), Rule: body})
	if err != nil {
		return nil, err
	}
	value := &structpb.Struct{}
	if err := jsonpb.UnmarshalString(string(data), value); err != nil {
		return nil, err
	}
	return value, nil
}

// CommitBatch writes the operations in a single key-value store transaction.
// Either all operations are applied or none.
func (w *Writer) CommitBatch(ctx context.Context, switchID string, tableID uint8, ops []writer.FlowOp) error {
	broker := w.KVStore.NewBroker(servicelabel.GetDifferentAgentPrefix(switchID))
	txn := broker.NewTxn()
	for _, op := range ops {
		key := FlowKey(tableID, op.Key)
		if op.IsDelete() {
			txn.Delete(key)
			continue
		}
		value, err := EncodeBody(op.Body)
		if err != nil {
			return errors.Wrapf(err, "failed to encode rule %s", op.Key)
		}
		txn.Put(key, value)
	}
	if err := txn.Commit(ctx); err != nil {
		return errors.Wrapf(err, "failed to commit %d rules into table %d of %s", len(ops), tableID, switchID)
	}
	w.Log.Debugf("Written %d rules into table %d of %s", len(ops), tableID, switchID)
	return nil
}
