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
	"net/http"

	"github.com/unrolled/render"

	"github.com/contiv/sfc-classifier/plugins/classifier/model"
	"github.com/contiv/sfc-classifier/plugins/classifier/processor"
)

const (
	// prefix used for REST urls of the classifier.
	urlPrefix = "/sfc-classifier/v1/"

	// FlowsURL is URL used to obtain installed rules grouped by path and switch.
	FlowsURL = urlPrefix + "flows"

	// PathsURL is URL used to obtain chain paths.
	PathsURL = urlPrefix + "paths"

	// ClassifiersURL is URL used to obtain classifiers with their ACLs.
	ClassifiersURL = urlPrefix + "classifiers"
)

// FlowRecord is the REST representation of an installed rule.
type FlowRecord struct {
	PathID   uint32         `json:"pathId"`
	SwitchID string         `json:"switchId"`
	TableID  uint8          `json:"tableId"`
	FlowKey  string         `json:"flowKey"`
	Kind     model.BodyKind `json:"kind"`
	Body     interface{}    `json:"body"`
}

// registerHandlers registers all supported REST APIs.
func (p *Plugin) registerHandlers() {
	if p.HTTPHandlers == nil {
		p.Log.Warn("No http handler provided, skipping registration of classifier REST handlers")
		return
	}
	p.HTTPHandlers.RegisterHTTPHandler(FlowsURL, p.flowsGetHandler, "GET")
	p.HTTPHandlers.RegisterHTTPHandler(PathsURL, p.pathsGetHandler, "GET")
	p.HTTPHandlers.RegisterHTTPHandler(ClassifiersURL, p.classifiersGetHandler, "GET")
}

func (p *Plugin) flowsGetHandler(formatter *render.Render) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		p.Log.Debug("Getting installed classifier rules")
		records := []FlowRecord{}
		for _, path := range p.store.Dump() {
			for _, flow := range path.Flows {
				records = append(records, FlowRecord{
					PathID:   path.PathID,
					SwitchID: flow.SwitchID,
					TableID:  flow.TableID,
					FlowKey:  flow.FlowKey,
					Kind:     flow.Body.BodyKind(),
					Body:     flow.Body,
				})
			}
		}
		formatter.JSON(w, http.StatusOK, records)
	}
}

func (p *Plugin) pathsGetHandler(formatter *render.Render) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		p.Log.Debug("Getting chain paths")
		paths := p.paths.List()
		if paths == nil {
			paths = []*model.ChainPath{}
		}
		formatter.JSON(w, http.StatusOK, paths)
	}
}

func (p *Plugin) classifiersGetHandler(formatter *render.Render) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		p.Log.Debug("Getting classifiers")
		bindings := p.processor.Bindings()
		if bindings == nil {
			bindings = []processor.Binding{}
		}
		formatter.JSON(w, http.StatusOK, bindings)
	}
}
