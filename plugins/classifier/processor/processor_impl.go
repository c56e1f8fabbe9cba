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

package processor

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ligato/cn-infra/logging"
	"github.com/pkg/errors"

	"github.com/contiv/sfc-classifier/plugins/classifier/model"
	"github.com/contiv/sfc-classifier/plugins/classifier/synthesizer"
)

// Processor binds classifiers to their ACLs, drives synthesis of their rules
// and commits them through the flow store. Operations are serialized.
type Processor struct {
	Deps

	sync.Mutex
	bindings map[string]*Binding // classifier name -> binding
}

// Deps lists dependencies of the Processor.
type Deps struct {
	Log               logging.Logger
	ReversePathSuffix string
	Synthesizer       FlowSynthesizer
	Store             FlowStore
	Paths             PathRegistry

	// SwitchCleanup is called for every switch left without classifier rules (optional).
	SwitchCleanup func(switchID string)

	// HopsChanged is called for every forwarder of an added, replaced
	// or deleted chain path (optional).
	HopsChanged func(forwarderID string)
}

// NewProcessor creates a new Processor.
func NewProcessor(deps Deps) *Processor {
	return &Processor{
		Deps:     deps,
		bindings: make(map[string]*Binding),
	}
}

// AddClassifier validates the ACL and installs rules for every rule x attachment.
func (p *Processor) AddClassifier(ctx context.Context, cls model.Classifier, acl model.ACL) error {
	p.Lock()
	defer p.Unlock()

	if _, exists := p.bindings[cls.Name]; exists {
		if err := p.deleteClassifier(ctx, cls.Name); err != nil {
			p.Log.Warnf("Failed to remove previous rules of classifier %s: %v", cls.Name, err)
		}
	}
	return p.addClassifier(ctx, cls, acl)
}

// UpdateClassifier removes rules of the previous binding and installs the new ones.
func (p *Processor) UpdateClassifier(ctx context.Context, cls model.Classifier, acl model.ACL) error {
	p.Lock()
	defer p.Unlock()

	var errs []error
	if _, exists := p.bindings[cls.Name]; exists {
		if err := p.deleteClassifier(ctx, cls.Name); err != nil {
			errs = append(errs, err)
		}
	}
	if err := p.addClassifier(ctx, cls, acl); err != nil {
		errs = append(errs, err)
	}
	return combineErrors(errs)
}

// DeleteClassifier removes rules of the classifier and clears switches left without rules.
func (p *Processor) DeleteClassifier(ctx context.Context, name string) error {
	p.Lock()
	defer p.Unlock()

	if _, exists := p.bindings[name]; !exists {
		return errors.Errorf("classifier %s does not exist", name)
	}
	return p.deleteClassifier(ctx, name)
}

// AddChainPath registers the path and (re)installs rules of classifiers using it
// in either direction.
func (p *Processor) AddChainPath(ctx context.Context, path *model.ChainPath) error {
	p.Lock()
	defer p.Unlock()

	prev, err := p.Paths.Put(path)
	if err != nil {
		return err
	}
	p.notifyHops(path, prev)

	var errs []error
	if prev != nil {
		// hops may have changed, rules of the previous path version are removed first
		p.Store.DeletePath(prev.ID)
		if err := p.Store.CommitDeletes(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	names := map[string]struct{}{
		path.Name: {},
		model.ReversePathName(path.Name, p.ReversePathSuffix): {},
	}
	for _, b := range p.sortedBindings() {
		for _, ace := range b.ACL.Rules {
			if _, uses := names[ace.PathName]; uses {
				p.stageRule(b, ace, synthesizer.Add)
			}
		}
	}
	if err := p.Store.CommitAdds(ctx); err != nil {
		errs = append(errs, err)
	}
	if prev != nil {
		if err := p.clearOrphans(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return combineErrors(errs)
}

// DeleteChainPath unregisters the path and removes all rules owned by it.
func (p *Processor) DeleteChainPath(ctx context.Context, name string) error {
	p.Lock()
	defer p.Unlock()

	path := p.Paths.Delete(name)
	if path == nil {
		return errors.Errorf("chain path %s does not exist", name)
	}
	p.notifyHops(path)
	p.Store.DeletePath(path.ID)
	var errs []error
	if err := p.Store.CommitDeletes(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := p.clearOrphans(ctx); err != nil {
		errs = append(errs, err)
	}
	return combineErrors(errs)
}

// Resync removes everything installed so far and installs the given state.
func (p *Processor) Resync(ctx context.Context, bindings []Binding, paths []*model.ChainPath) error {
	p.Lock()
	defer p.Unlock()

	var errs []error
	for _, b := range p.sortedBindings() {
		for _, ace := range b.ACL.Rules {
			p.stageRule(b, ace, synthesizer.Remove)
		}
	}
	for _, path := range p.Paths.List() {
		p.Store.DeletePath(path.ID)
	}
	if err := p.Store.CommitDeletes(ctx); err != nil {
		errs = append(errs, err)
	}
	p.bindings = make(map[string]*Binding)
	p.Paths.Clear()

	for _, path := range paths {
		if _, err := p.Paths.Put(path); err != nil {
			p.Log.Errorf("Invalid chain path %s: %v", path.Name, err)
			errs = append(errs, err)
		}
	}
	for _, b := range bindings {
		if err := p.addClassifier(ctx, b.Classifier, b.ACL); err != nil {
			errs = append(errs, err)
		}
	}
	if err := p.clearOrphans(ctx); err != nil {
		errs = append(errs, err)
	}
	p.Log.Infof("Resynced %d classifiers and %d chain paths", len(p.bindings), len(paths))
	return combineErrors(errs)
}

// Bindings returns copies of all bindings ordered by classifier name.
func (p *Processor) Bindings() []Binding {
	p.Lock()
	defer p.Unlock()

	var out []Binding
	for _, b := range p.sortedBindings() {
		out = append(out, *b)
	}
	return out
}

func (p *Processor) addClassifier(ctx context.Context, cls model.Classifier, acl model.ACL) error {
	cls, err := normalizeBinding(cls, acl)
	if err != nil {
		p.Store.Purge()
		p.Log.Errorf("Classifier %s rejected: %v", cls.Name, err)
		return err
	}
	b := &Binding{Classifier: cls, ACL: acl}
	p.bindings[cls.Name] = b

	for _, ace := range acl.Rules {
		p.stageRule(b, ace, synthesizer.Add)
	}
	if err := p.Store.CommitAdds(ctx); err != nil {
		return errors.Wrapf(err, "classifier %s", cls.Name)
	}
	p.Log.Debugf("Classifier %s installed (%d rules, %d attachments)",
		cls.Name, len(acl.Rules), len(cls.Attachments))
	return nil
}

func (p *Processor) deleteClassifier(ctx context.Context, name string) error {
	b := p.bindings[name]
	for _, ace := range b.ACL.Rules {
		p.stageRule(b, ace, synthesizer.Remove)
	}
	delete(p.bindings, name)

	var errs []error
	if err := p.Store.CommitDeletes(ctx); err != nil {
		errs = append(errs, errors.Wrapf(err, "classifier %s", name))
	}
	if err := p.clearOrphans(ctx); err != nil {
		errs = append(errs, err)
	}
	return combineErrors(errs)
}

// stageRule synthesizes the rule on every attachment point of the binding.
func (p *Processor) stageRule(b *Binding, ace model.ACE, mode synthesizer.Mode) {
	for _, attachment := range b.Classifier.Attachments {
		flows := p.Synthesizer.Synthesize(b.Classifier.Name, b.ACL.Name, attachment, ace, mode)
		if len(flows) == 0 {
			p.Log.Warnf("No rules to %s for %s/%s on %v", mode, b.Classifier.Name, ace.RuleName, attachment)
			continue
		}
		p.Store.StageAll(flows)
	}
}

// clearOrphans removes bootstrap rules of switches left without classifier rules.
func (p *Processor) clearOrphans(ctx context.Context) error {
	cleared := p.Store.ClearOrphanedBootstraps()
	if len(cleared) == 0 {
		return nil
	}
	err := p.Store.CommitDeletes(ctx)
	if p.SwitchCleanup != nil {
		for _, switchID := range cleared {
			p.SwitchCleanup(switchID)
		}
	}
	return err
}

// notifyHops calls HopsChanged once for every forwarder of the given paths.
func (p *Processor) notifyHops(paths ...*model.ChainPath) {
	if p.HopsChanged == nil {
		return
	}
	notified := make(map[string]struct{})
	for _, path := range paths {
		if path == nil {
			continue
		}
		for _, hop := range path.Hops {
			if _, done := notified[hop.ForwarderID]; done {
				continue
			}
			notified[hop.ForwarderID] = struct{}{}
			p.HopsChanged(hop.ForwarderID)
		}
	}
}

func (p *Processor) sortedBindings() []*Binding {
	names := make([]string, 0, len(p.bindings))
	for name := range p.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Binding, 0, len(names))
	for _, name := range names {
		out = append(out, p.bindings[name])
	}
	return out
}

// normalizeBinding validates the binding and returns the classifier with
// attachment variants in their canonical form.
func normalizeBinding(cls model.Classifier, acl model.ACL) (model.Classifier, error) {
	if cls.Name == "" {
		return cls, errors.New("classifier without name")
	}
	if cls.ACLName != "" && cls.ACLName != acl.Name {
		return cls, errors.Errorf("classifier %s references ACL %s, got %s", cls.Name, cls.ACLName, acl.Name)
	}
	if err := acl.Validate(); err != nil {
		return cls, errors.Wrapf(err, "classifier %s", cls.Name)
	}
	attachments := make([]model.AttachmentPoint, 0, len(cls.Attachments))
	for _, attachment := range cls.Attachments {
		variant, err := model.ParseAttachmentVariant(string(attachment.Variant))
		if err != nil {
			return cls, errors.Wrapf(err, "classifier %s", cls.Name)
		}
		attachment.Variant = variant
		attachments = append(attachments, attachment)
	}
	cls.Attachments = attachments
	cls.ACLName = acl.Name
	return cls, nil
}

func combineErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return errors.New(strings.Join(msgs, "; "))
}
