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

package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/contiv/sfc-classifier/plugins/classifier"
	"github.com/contiv/sfc-classifier/plugins/classifier/model"
)

func TestGetAndPrint(t *testing.T) {
	RegisterTestingT(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case classifier.FlowsURL:
			w.Write([]byte(`[{"pathId":1,"switchId":"SFF-A","tableId":0,"flowKey":"cls-acl-R1.out","kind":"flow-rule","body":{}}]`))
		default:
			http.NotFound(w, req)
		}
	}))
	defer srv.Close()

	c := newClient(srv.URL)
	var flows []classifier.FlowRecord
	Expect(c.get(classifier.FlowsURL, &flows)).To(Succeed())
	Expect(flows).To(HaveLen(1))
	Expect(flows[0].Kind).To(Equal(model.FlowRuleKind))

	var paths []model.ChainPath
	Expect(c.get(classifier.PathsURL, &paths)).ToNot(Succeed())

	output = tableOutput
	buf := &bytes.Buffer{}
	Expect(printOutput(buf, flows, flowsTable)).To(Succeed())
	Expect(buf.String()).To(ContainSubstring("cls-acl-R1.out"))

	output = yamlOutput
	buf.Reset()
	Expect(printOutput(buf, flows, flowsTable)).To(Succeed())
	Expect(buf.String()).To(ContainSubstring("switchId: SFF-A"))

	output = "xml"
	Expect(printOutput(buf, flows, flowsTable)).ToNot(Succeed())
}
