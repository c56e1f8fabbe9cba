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

package pathcache

import (
	"testing"

	. "github.com/onsi/gomega"

	"github.com/contiv/sfc-classifier/plugins/classifier/model"
)

func TestPathCache(t *testing.T) {
	RegisterTestingT(t)

	pc := NewPathCache()
	p1 := &model.ChainPath{ID: 1, Name: "P1", StartingIndex: 255,
		Hops: []model.Hop{{ForwarderID: "SFF-A", ServiceIndex: 255}}}

	prev, err := pc.Put(p1)
	Expect(err).ToNot(HaveOccurred())
	Expect(prev).To(BeNil())

	path, found := pc.ResolveChainPath("P1")
	Expect(found).To(BeTrue())
	Expect(path).To(Equal(p1))

	// returned copies do not alias the cache
	path.Hops[0].ForwarderID = "changed"
	path, _ = pc.ResolveChainPath("P1")
	Expect(path.Hops[0].ForwarderID).To(Equal("SFF-A"))

	// ID conflict
	_, err = pc.Put(&model.ChainPath{ID: 1, Name: "P2", StartingIndex: 255})
	Expect(err).To(HaveOccurred())

	// reserved ID
	_, err = pc.Put(&model.ChainPath{ID: model.BootstrapPathID, Name: "P0", StartingIndex: 255})
	Expect(err).To(HaveOccurred())

	// starting index lower than number of hops
	_, err = pc.Put(&model.ChainPath{ID: 5, Name: "P5", StartingIndex: 0,
		Hops: []model.Hop{{ForwarderID: "SFF-A"}}})
	Expect(err).To(HaveOccurred())

	// replace with a new ID
	prev, err = pc.Put(&model.ChainPath{ID: 3, Name: "P1", StartingIndex: 200})
	Expect(err).ToNot(HaveOccurred())
	Expect(prev.ID).To(BeEquivalentTo(1))
	_, err = pc.Put(&model.ChainPath{ID: 1, Name: "P2", StartingIndex: 255})
	Expect(err).ToNot(HaveOccurred())

	list := pc.List()
	Expect(list).To(HaveLen(2))
	Expect(list[0].Name).To(Equal("P2"))
	Expect(list[1].Name).To(Equal("P1"))

	Expect(pc.Delete("P1")).ToNot(BeNil())
	Expect(pc.Delete("P1")).To(BeNil())
	_, found = pc.ResolveChainPath("P1")
	Expect(found).To(BeFalse())

	pc.Clear()
	Expect(pc.List()).To(BeEmpty())
}
