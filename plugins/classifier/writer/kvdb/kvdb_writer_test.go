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
	"errors"
	"testing"

	"github.com/golang/protobuf/jsonpb"
	structpb "github.com/golang/protobuf/ptypes/struct"
	. "github.com/onsi/gomega"

	"github.com/ligato/cn-infra/logging/logrus"
	"github.com/ligato/cn-infra/servicelabel"

	"github.com/contiv/sfc-classifier/mock/broker"
	"github.com/contiv/sfc-classifier/plugins/classifier/model"
	"github.com/contiv/sfc-classifier/plugins/classifier/writer"
)

func TestCommitBatch(t *testing.T) {
	RegisterTestingT(t)

	store := broker.NewMockKVStore()
	w := NewWriter(Deps{Log: logrus.DefaultLogger(), KVStore: store})
	ctx := context.Background()

	rule := &model.FlowRule{
		Priority: 1000,
		Match:    model.FlowMatch{NSH: &model.NSHMatch{SPI: 2, SI: 253}},
		Actions:  []model.Action{model.PopNSH(), model.Output(model.Port{Name: "eth0", Number: 3})},
	}
	err := w.CommitBatch(ctx, "SFF-A", 0, []writer.FlowOp{
		{Key: "cls-acl-R1.in", Body: rule},
		{Key: "cls-acl-R1.out-ingress", Body: &model.InterfaceInputACL{Interface: "eth0", Table: "t1"}},
	})
	Expect(err).ToNot(HaveOccurred())

	prefix := servicelabel.GetDifferentAgentPrefix("SFF-A")
	Expect(store.Keys()).To(Equal([]string{
		prefix + "config/sfc-classifier/v1/table/0/flow/cls-acl-R1.in",
		prefix + "config/sfc-classifier/v1/table/0/flow/cls-acl-R1.out-ingress",
	}))

	value := &structpb.Struct{}
	found, _, err := store.NewBroker(prefix).GetValue(FlowKey(0, "cls-acl-R1.in"), value)
	Expect(err).ToNot(HaveOccurred())
	Expect(found).To(BeTrue())
	Expect(value.Fields["kind"].GetStringValue()).To(Equal("flow-rule"))
	stored := value.Fields["rule"].GetStructValue()
	Expect(stored.Fields["priority"].GetNumberValue()).To(BeEquivalentTo(1000))

	text, err := (&jsonpb.Marshaler{}).MarshalToString(value)
	Expect(err).ToNot(HaveOccurred())
	Expect(text).To(ContainSubstring("pop-nsh"))

	// delete
	err = w.CommitBatch(ctx, "SFF-A", 0, []writer.FlowOp{{Key: "cls-acl-R1.in"}})
	Expect(err).ToNot(HaveOccurred())
	Expect(store.Keys()).To(HaveLen(1))
}

func TestCommitBatchFailure(t *testing.T) {
	RegisterTestingT(t)

	store := broker.NewMockKVStore()
	w := NewWriter(Deps{Log: logrus.DefaultLogger(), KVStore: store})
	ctx := context.Background()

	Expect(w.CommitBatch(ctx, "SFF-A", 0, []writer.FlowOp{
		{Key: "R0", Body: &model.FlowRule{Priority: 10}},
	})).To(Succeed())

	store.FailPut = "R2"
	store.SetPutError(errors.New("etcd unavailable"))

	// the batch is applied as a whole or not at all
	err := w.CommitBatch(ctx, "SFF-A", 0, []writer.FlowOp{
		{Key: "R0"},
		{Key: "R1", Body: &model.FlowRule{Priority: 1}},
		{Key: "R2", Body: &model.FlowRule{Priority: 2}},
		{Key: "R3", Body: &model.FlowRule{Priority: 3}},
	})
	Expect(err).To(HaveOccurred())
	Expect(err.Error()).To(ContainSubstring("etcd unavailable"))
	prefix := servicelabel.GetDifferentAgentPrefix("SFF-A")
	Expect(store.Keys()).To(Equal([]string{prefix + FlowKey(0, "R0")}))

	// retried once the store recovers
	store.FailPut = ""
	Expect(w.CommitBatch(ctx, "SFF-A", 0, []writer.FlowOp{
		{Key: "R0"},
		{Key: "R1", Body: &model.FlowRule{Priority: 1}},
		{Key: "R2", Body: &model.FlowRule{Priority: 2}},
	})).To(Succeed())
	Expect(store.Keys()).To(Equal([]string{
		prefix + FlowKey(0, "R1"),
		prefix + FlowKey(0, "R2"),
	}))
}
