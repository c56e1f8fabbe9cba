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
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/ligato/cn-infra/logging"
	"github.com/ligato/cn-infra/logging/logrus"

	"github.com/contiv/sfc-classifier/mock/flowwriter"
	"github.com/contiv/sfc-classifier/mock/locator"
	"github.com/contiv/sfc-classifier/plugins/classifier/config"
	"github.com/contiv/sfc-classifier/plugins/classifier/model"
	"github.com/contiv/sfc-classifier/plugins/classifier/pathcache"
	"github.com/contiv/sfc-classifier/plugins/classifier/synthesizer"
)

type fixture struct {
	writer *flowwriter.MockFlowWriter
	store  *Store
	synth  *synthesizer.Synthesizer
	paths  *pathcache.PathCache
}

func newFixture() *fixture {
	logger := logrus.DefaultLogger()
	logger.SetLevel(logging.DebugLevel)

	f := &fixture{
		writer: flowwriter.NewMockFlowWriter(),
		paths:  pathcache.NewPathCache(),
	}
	f.store = NewStore(Deps{
		Log:     logger,
		Writer:  f.writer,
		Metrics: NewMetrics("test"),
	})

	f.addPath(1, "P1", "SFF-A", "SFF-B")
	f.addPath(2, "P1-Reverse", "SFF-B", "SFF-C")
	f.addPath(3, "P2", "SFF-A")
	f.addPath(4, "P2-Reverse", "SFF-A")

	loc := locator.NewMockLocator()
	loc.SetPort("SFF-A", "eth0", 1)
	loc.SetPort("SFF-D", "eth0", 1)
	loc.SetTunnel("SFF-A", "192.168.16.1", "vxlan-gpe-sfc")
	loc.SetTunnel("SFF-C", "192.168.16.3", "vxlan-gpe-sfc")

	var err error
	f.synth, err = synthesizer.NewSynthesizer(synthesizer.Deps{
		Log:     logger,
		Config:  config.DefaultConfig(),
		Paths:   f.paths,
		Ports:   loc,
		Tunnels: loc,
	})
	Expect(err).ToNot(HaveOccurred())
	return f
}

func (f *fixture) addPath(id uint32, name string, forwarders ...string) {
	path := &model.ChainPath{ID: id, Name: name, StartingIndex: 255}
	for i, fwd := range forwarders {
		path.Hops = append(path.Hops, model.Hop{ForwarderID: fwd, ServiceIndex: 255 - uint8(i)})
	}
	_, err := f.paths.Put(path)
	Expect(err).ToNot(HaveOccurred())
}

func (f *fixture) synthesize(fwd, rule, path string, mode synthesizer.Mode) []*model.FlowDescriptor {
	_, dst, _ := net.ParseCIDR("10.0.0.0/24")
	flows := f.synth.Synthesize("cls", "acl",
		model.AttachmentPoint{ForwarderID: fwd, InterfaceName: "eth0", Variant: model.Direct},
		model.ACE{RuleName: rule, PathName: path, Match: model.MatchCriteria{DstNetwork: dst}},
		mode)
	Expect(flows).ToNot(BeEmpty())
	return flows
}

func countFlows(records []PathRecord) (count int) {
	for _, record := range records {
		count += len(record.Flows)
	}
	return count
}

func TestCommitAndIdempotence(t *testing.T) {
	RegisterTestingT(t)
	f := newFixture()
	ctx := context.Background()

	flows := f.synthesize("SFF-A", "R1", "P1", synthesizer.Add)
	Expect(flows).To(HaveLen(4))

	for i := 0; i < 2; i++ {
		f.store.StageAll(flows)
		f.store.StageAll(f.synthesize("SFF-A", "R1", "P1", synthesizer.Add))
		adds, deletes := f.store.Pending()
		Expect(adds).To(Equal(4))
		Expect(deletes).To(BeZero())
		Expect(f.store.CommitAdds(ctx)).To(Succeed())
	}

	// one record per rule
	Expect(f.store.PathIDs()).To(Equal([]uint32{model.BootstrapPathID, 1, 2}))
	records := f.store.Dump()
	Expect(countFlows(records)).To(Equal(4))
	Expect(records[0]).To(Equal(PathRecord{PathID: 0, SwitchID: "SFF-A", Flows: flows[:1]}))

	// one batch per switch and table, ordered, rules in staging order
	batches := f.writer.Batches()
	Expect(batches).To(HaveLen(4))
	Expect(batches[0].SwitchID).To(Equal("SFF-A"))
	Expect(batches[0].Ops).To(HaveLen(3))
	Expect(batches[0].Ops[0].Key).To(Equal(model.BootstrapKey))
	Expect(batches[0].Ops[1].Key).To(Equal("cls-acl-R1.out"))
	Expect(batches[0].Ops[2].Key).To(Equal("cls-acl-R1.in"))
	Expect(batches[1].SwitchID).To(Equal("SFF-C"))
	Expect(batches[1].Ops[0].Key).To(Equal("cls-acl-R1.relay"))

	Expect(f.writer.InstalledIDs()).To(Equal([]string{
		"SFF-A/0/cls-acl-R1.in",
		"SFF-A/0/cls-acl-R1.out",
		"SFF-A/0/sfc-classifier-bootstrap",
		"SFF-C/0/cls-acl-R1.relay",
	}))
}

func TestRoundTrip(t *testing.T) {
	RegisterTestingT(t)
	f := newFixture()
	ctx := context.Background()

	f.store.StageAll(f.synthesize("SFF-A", "R1", "P1", synthesizer.Add))
	Expect(f.store.CommitAdds(ctx)).To(Succeed())

	f.store.DeletePath(1)
	f.store.DeletePath(2)
	f.store.DeletePath(42) // unknown path is a no-op
	_, deletes := f.store.Pending()
	Expect(deletes).To(Equal(3))
	Expect(f.store.CommitDeletes(ctx)).To(Succeed())

	Expect(f.store.PathIDs()).To(Equal([]uint32{model.BootstrapPathID}))
	Expect(f.writer.InstalledIDs()).To(Equal([]string{"SFF-A/0/sfc-classifier-bootstrap"}))

	Expect(f.store.ClearOrphanedBootstraps()).To(Equal([]string{"SFF-A"}))
	Expect(f.store.CommitDeletes(ctx)).To(Succeed())
	Expect(f.store.PathIDs()).To(BeEmpty())
	Expect(f.writer.InstalledIDs()).To(BeEmpty())
}

func TestRemoveByKey(t *testing.T) {
	RegisterTestingT(t)
	f := newFixture()
	ctx := context.Background()

	f.store.StageAll(f.synthesize("SFF-A", "R1", "P1", synthesizer.Add))
	Expect(f.store.CommitAdds(ctx)).To(Succeed())

	f.store.StageAll(f.synthesize("SFF-A", "R1", "P1", synthesizer.Remove))
	Expect(f.store.CommitDeletes(ctx)).To(Succeed())
	Expect(f.store.PathIDs()).To(Equal([]uint32{model.BootstrapPathID}))
}

func TestDeletePathOrder(t *testing.T) {
	RegisterTestingT(t)
	f := newFixture()
	ctx := context.Background()

	_, dst, _ := net.ParseCIDR("10.0.0.0/24")
	flows := f.synth.Synthesize("cls",
		"acl", model.AttachmentPoint{ForwarderID: "SFF-A", InterfaceName: "eth0", Variant: model.ClassifyEngine},
		model.ACE{RuleName: "R1", PathName: "P2", Match: model.MatchCriteria{DstNetwork: dst}},
		synthesizer.Add)
	Expect(keys(flows)).To(Equal([]string{
		model.BootstrapKey,
		"cls-acl-R1.out-table",
		"cls-acl-R1.out",
		"cls-acl-R1.out-ingress",
		"cls-acl-R1.in",
	}))
	f.store.StageAll(flows)
	Expect(f.store.CommitAdds(ctx)).To(Succeed())
	f.writer.Reset()

	// the ingress binding and the session are removed before the table they use
	f.store.DeletePath(3)
	Expect(f.store.CommitDeletes(ctx)).To(Succeed())
	batches := f.writer.Batches()
	Expect(batches).To(HaveLen(1))
	var deleted []string
	for _, op := range batches[0].Ops {
		Expect(op.IsDelete()).To(BeTrue())
		deleted = append(deleted, op.Key)
	}
	Expect(deleted).To(Equal([]string{
		"cls-acl-R1.out-ingress",
		"cls-acl-R1.out",
		"cls-acl-R1.out-table",
	}))
}

func keys(flows []*model.FlowDescriptor) (keys []string) {
	for _, flow := range flows {
		keys = append(keys, flow.FlowKey)
	}
	return keys
}

func TestClearOrphanedBootstraps(t *testing.T) {
	RegisterTestingT(t)
	f := newFixture()
	ctx := context.Background()

	// SFF-A is shared by P1 (R1) and P2 (R2), SFF-D is used by P2 only
	f.store.StageAll(f.synthesize("SFF-A", "R1", "P1", synthesizer.Add))
	f.store.StageAll(f.synthesize("SFF-A", "R2", "P2", synthesizer.Add))
	f.store.StageAll(f.synthesize("SFF-D", "R3", "P2", synthesizer.Add))
	Expect(f.store.CommitAdds(ctx)).To(Succeed())

	// nothing orphaned while paths are installed
	Expect(f.store.ClearOrphanedBootstraps()).To(BeEmpty())

	f.store.DeletePath(3)
	Expect(f.store.CommitDeletes(ctx)).To(Succeed())
	Expect(f.store.ClearOrphanedBootstraps()).To(BeEmpty())

	f.store.DeletePath(4)
	Expect(f.store.CommitDeletes(ctx)).To(Succeed())
	cleared := f.store.ClearOrphanedBootstraps()
	Expect(cleared).To(Equal([]string{"SFF-D"}))
	Expect(f.store.CommitDeletes(ctx)).To(Succeed())

	// returned switches are referenced by no record, the others still are
	referenced := func(switchID string) bool {
		for _, record := range f.store.Dump() {
			if record.SwitchID == switchID {
				return true
			}
		}
		return false
	}
	Expect(referenced("SFF-D")).To(BeFalse())
	Expect(referenced("SFF-A")).To(BeTrue())
	Expect(f.writer.Installed("SFF-D", 0, model.BootstrapKey)).To(BeNil())
	Expect(f.writer.Installed("SFF-A", 0, model.BootstrapKey)).ToNot(BeNil())
}

func TestCommitFailure(t *testing.T) {
	RegisterTestingT(t)
	f := newFixture()
	ctx := context.Background()

	f.writer.FailSwitch("SFF-C", errors.New("connection refused"))
	f.store.StageAll(f.synthesize("SFF-A", "R1", "P1", synthesizer.Add))
	err := f.store.CommitAdds(ctx)
	Expect(err).To(HaveOccurred())
	Expect(err.Error()).To(ContainSubstring("switch=SFF-C"))

	// successful batch is recorded, the failed one is not
	Expect(countFlows(f.store.Dump())).To(Equal(3))
	for _, record := range f.store.Dump() {
		Expect(record.SwitchID).ToNot(Equal("SFF-C"))
	}

	// buffer is cleared, the caller retries
	adds, _ := f.store.Pending()
	Expect(adds).To(BeZero())
	f.writer.FailSwitch("SFF-C", nil)
	f.store.StageAll(f.synthesize("SFF-A", "R1", "P1", synthesizer.Add))
	Expect(f.store.CommitAdds(ctx)).To(Succeed())
	Expect(countFlows(f.store.Dump())).To(Equal(4))

	// failed delete leaves the index untouched
	f.writer.FailSwitch("SFF-A", errors.New("timeout"))
	f.store.StageAll(f.synthesize("SFF-A", "R1", "P1", synthesizer.Remove))
	Expect(f.store.CommitDeletes(ctx)).ToNot(Succeed())
	// only the relay on SFF-C is gone
	Expect(countFlows(f.store.Dump())).To(Equal(3))
}

func TestStagingCollapseAndPurge(t *testing.T) {
	RegisterTestingT(t)
	f := newFixture()

	flows := f.synthesize("SFF-A", "R1", "P1", synthesizer.Add)
	f.store.StageAll(flows)
	f.store.Stage(flows[1].AsDelete())
	adds, deletes := f.store.Pending()
	Expect(adds).To(Equal(3))
	Expect(deletes).To(Equal(1))

	f.store.Stage(flows[1])
	adds, deletes = f.store.Pending()
	Expect(adds).To(Equal(4))
	Expect(deletes).To(BeZero())

	f.store.Purge()
	adds, deletes = f.store.Pending()
	Expect(adds).To(BeZero())
	Expect(deletes).To(BeZero())
	Expect(f.store.CommitAdds(context.Background())).To(Succeed())
	Expect(f.writer.Batches()).To(BeEmpty())
}

func TestLockReleasedDuringCommit(t *testing.T) {
	RegisterTestingT(t)
	f := newFixture()
	ctx := context.Background()

	entered, release := f.writer.HoldSwitch("SFF-C")
	defer release()

	f.store.StageAll(f.synthesize("SFF-A", "R1", "P1", synthesizer.Add))
	done := make(chan error, 1)
	go func() {
		done <- f.store.CommitAdds(ctx)
	}()
	Eventually(entered).Should(Receive())

	// the store stays usable while the relay batch is being written
	f.store.StageAll(f.synthesize("SFF-A", "R2", "P2", synthesizer.Add))
	adds, _ := f.store.Pending()
	Expect(adds).To(Equal(3))
	Expect(countFlows(f.store.Dump())).To(Equal(3))
	Consistently(done).ShouldNot(Receive())

	release()
	Eventually(done).Should(Receive(BeNil()))
	Expect(countFlows(f.store.Dump())).To(Equal(4))

	Expect(f.store.CommitAdds(ctx)).To(Succeed())
	Expect(countFlows(f.store.Dump())).To(Equal(6))
}

func TestConcurrentChurn(t *testing.T) {
	RegisterTestingT(t)
	f := newFixture()
	ctx := context.Background()

	// every worker owns a path pair terminating on SFF-A, all share the bootstrap rule
	const workers = 8
	flows := make([][]*model.FlowDescriptor, workers)
	for i := 0; i < workers; i++ {
		name := fmt.Sprintf("W%d", i)
		f.addPath(uint32(10+i), name, "SFF-A")
		f.addPath(uint32(50+i), name+"-Reverse", "SFF-A")
		flows[i] = f.synthesize("SFF-A", fmt.Sprintf("R%d", i), name, synthesizer.Add)
		Expect(flows[i]).To(HaveLen(3))
	}

	run := func(work func(i int) error) {
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if err := work(i); err != nil {
					errs <- err
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			Expect(err).ToNot(HaveOccurred())
		}
	}

	for round := 0; round < 10; round++ {
		run(func(i int) error {
			f.store.StageAll(flows[i])
			_ = f.store.Dump()
			return f.store.CommitAdds(ctx)
		})
		Expect(f.store.CommitAdds(ctx)).To(Succeed())
		Expect(f.store.PathIDs()).To(HaveLen(1 + 2*workers))
		Expect(countFlows(f.store.Dump())).To(Equal(1 + 2*workers))
		Expect(f.writer.InstalledIDs()).To(HaveLen(1 + 2*workers))

		run(func(i int) error {
			f.store.DeletePath(uint32(10 + i))
			f.store.DeletePath(uint32(50 + i))
			err := f.store.CommitDeletes(ctx)
			f.store.ClearOrphanedBootstraps()
			_ = f.store.Dump()
			return err
		})
		Expect(f.store.CommitDeletes(ctx)).To(Succeed())
		Expect(f.store.PathIDs()).To(BeEmpty())
		Expect(f.writer.InstalledIDs()).To(BeEmpty())
		adds, deletes := f.store.Pending()
		Expect(adds).To(BeZero())
		Expect(deletes).To(BeZero())
	}
}
