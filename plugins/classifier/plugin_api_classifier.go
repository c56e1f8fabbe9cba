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

package classifier

import (
	"context"

	"github.com/contiv/sfc-classifier/plugins/classifier/flowstore"
	"github.com/contiv/sfc-classifier/plugins/classifier/model"
	"github.com/contiv/sfc-classifier/plugins/classifier/writer/openflow"
)

// API of the classifier plugin for other plugins feeding it with chain paths
// and classifiers.
type API interface {
	// AddClassifier installs rules of every ACL rule on every attachment point
	// of the classifier. Invalid ACL is rejected as a whole.
	AddClassifier(ctx context.Context, cls model.Classifier, acl model.ACL) error

	// UpdateClassifier replaces rules of a previously added classifier.
	UpdateClassifier(ctx context.Context, cls model.Classifier, acl model.ACL) error

	// DeleteClassifier removes rules of the classifier.
	DeleteClassifier(ctx context.Context, name string) error

	// AddChainPath adds or replaces a chain path. Rules of classifiers steering
	// traffic into the path (or its reverse) are installed again.
	AddChainPath(ctx context.Context, path *model.ChainPath) error

	// DeleteChainPath removes a chain path with all rules associated with it.
	DeleteChainPath(ctx context.Context, name string) error

	// DumpFlows returns the installed rules grouped by path and switch.
	DumpFlows() []flowstore.PathRecord

	// SwitchConnected and SwitchDisconnected track connections used by the OpenFlow writer.
	SwitchConnected(switchID string, sw openflow.Switch)
	SwitchDisconnected(switchID string)
}
