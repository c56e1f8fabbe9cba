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
	"errors"
	"hash/fnv"

	"github.com/contiv/sfc-classifier/plugins/classifier/model"
)

// ErrUnsupportedBody is returned by writers asked to install a rule body
// they cannot render.
var ErrUnsupportedBody = errors.New("unsupported rule body")

// FlowOp is a single operation of a batch: add (Body set) or delete (Body nil).
type FlowOp struct {
	Key  string
	Body model.FlowBody
}

// IsDelete returns true for delete operation.
func (op FlowOp) IsDelete() bool {
	return op.Body == nil
}

// FlowWriter installs batches of rules into a single table of a single switch.
// A batch is applied atomically where the data plane supports it; an error
// means the batch should be considered as not applied.
type FlowWriter interface {
	CommitBatch(ctx context.Context, switchID string, tableID uint8, ops []FlowOp) error
}

// Cookie returns the 64-bit rule cookie derived from the rule key (FNV-1a).
// Writers use it to find installed rules by key.
func Cookie(flowKey string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(flowKey))
	return h.Sum64()
}
