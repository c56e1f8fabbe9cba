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

package writer_test

import (
	"context"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/contiv/sfc-classifier/mock/flowwriter"
	"github.com/contiv/sfc-classifier/plugins/classifier/model"
	"github.com/contiv/sfc-classifier/plugins/classifier/writer"
)

func TestRouter(t *testing.T) {
	RegisterTestingT(t)

	ctx := context.Background()
	router := writer.NewRouter(nil)
	ops := []writer.FlowOp{{Key: "a", Body: &model.FlowRule{Priority: 1}}}

	Expect(router.CommitBatch(ctx, "SFF-A", 0, ops)).ToNot(Succeed())

	defaultWriter := flowwriter.NewMockFlowWriter()
	ovsWriter := flowwriter.NewMockFlowWriter()
	router.Default = defaultWriter
	router.Register("SFF-A", ovsWriter)

	Expect(router.CommitBatch(ctx, "SFF-A", 0, ops)).To(Succeed())
	Expect(router.CommitBatch(ctx, "SFF-B", 1, ops)).To(Succeed())
	Expect(ovsWriter.Batches()).To(HaveLen(1))
	Expect(defaultWriter.Batches()).To(HaveLen(1))
	Expect(defaultWriter.Batches()[0].SwitchID).To(Equal("SFF-B"))

	router.Unregister("SFF-A")
	Expect(router.WriterFor("SFF-A")).To(Equal(defaultWriter))
}
