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

	"github.com/contiv/sfc-classifier/plugins/classifier/model"
	"github.com/contiv/sfc-classifier/plugins/classifier/synthesizer"
)

// FlowSynthesizer derives rules of a single ACL entry bound to an attachment point.
type FlowSynthesizer interface {
	Synthesize(classifierName, aclName string, attachment model.AttachmentPoint,
		ace model.ACE, mode synthesizer.Mode) []*model.FlowDescriptor
}

// FlowStore buffers and commits rules.
type FlowStore interface {
	StageAll(flows []*model.FlowDescriptor)
	CommitAdds(ctx context.Context) error
	CommitDeletes(ctx context.Context) error
	DeletePath(pathID uint32)
	ClearOrphanedBootstraps() []string
	Purge()
}

// PathRegistry keeps the known chain paths.
type PathRegistry interface {
	Put(path *model.ChainPath) (prev *model.ChainPath, err error)
	Delete(name string) *model.ChainPath
	List() []*model.ChainPath
	Clear()
}

// Binding is a classifier together with the ACL it applies.
type Binding struct {
	Classifier model.Classifier `json:"classifier"`
	ACL        model.ACL        `json:"acl"`
}

// API of the classifier processor.
type API interface {
	// AddClassifier installs rules of all ACL entries on all attachment points
	// of the classifier. Existing classifier of the same name is replaced.
	AddClassifier(ctx context.Context, cls model.Classifier, acl model.ACL) error

	// DeleteClassifier removes all rules installed for the classifier.
	DeleteClassifier(ctx context.Context, name string) error

	// UpdateClassifier replaces the classifier binding.
	UpdateClassifier(ctx context.Context, cls model.Classifier, acl model.ACL) error

	// AddChainPath registers (or replaces) a chain path and (re)installs rules
	// of all classifiers using it.
	AddChainPath(ctx context.Context, path *model.ChainPath) error

	// DeleteChainPath unregisters a chain path and removes all rules it owns.
	DeleteChainPath(ctx context.Context, name string) error

	// Resync replaces all classifiers and paths.
	Resync(ctx context.Context, bindings []Binding, paths []*model.ChainPath) error

	// Bindings returns all classifier bindings ordered by name.
	Bindings() []Binding
}
