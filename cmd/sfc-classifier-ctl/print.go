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
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"

	"github.com/contiv/sfc-classifier/plugins/classifier"
	"github.com/contiv/sfc-classifier/plugins/classifier/model"
	"github.com/contiv/sfc-classifier/plugins/classifier/processor"
)

const (
	tableOutput = "table"
	jsonOutput  = "json"
	yamlOutput  = "yaml"
)

// printOutput writes data in the selected output format, tables are rendered by printTable.
func printOutput(out io.Writer, data interface{}, printTable func(w *tabwriter.Writer, data interface{})) error {
	switch output {
	case tableOutput:
		w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
		printTable(w, data)
		return w.Flush()
	case jsonOutput:
		b, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(b))
		return err
	case yamlOutput:
		b, err := yaml.Marshal(data)
		if err != nil {
			return err
		}
		_, err = out.Write(b)
		return err
	}
	return errors.Errorf("unknown output format: %q", output)
}

func flowsTable(w *tabwriter.Writer, data interface{}) {
	fmt.Fprintln(w, "PATH\tSWITCH\tTABLE\tKEY\tKIND")
	for _, flow := range data.([]classifier.FlowRecord) {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", flow.PathID, flow.SwitchID, flow.TableID, flow.FlowKey, flow.Kind)
	}
}

func pathsTable(w *tabwriter.Writer, data interface{}) {
	fmt.Fprintln(w, "ID\tNAME\tSTARTING INDEX\tHOPS")
	for _, path := range data.([]model.ChainPath) {
		var hops []string
		for _, hop := range path.Hops {
			hops = append(hops, fmt.Sprintf("%s(%d)", hop.ForwarderID, hop.ServiceIndex))
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", path.ID, path.Name, path.StartingIndex, strings.Join(hops, " -> "))
	}
}

func classifiersTable(w *tabwriter.Writer, data interface{}) {
	fmt.Fprintln(w, "CLASSIFIER\tACL\tRULES\tATTACHMENTS")
	for _, b := range data.([]processor.Binding) {
		var attachments []string
		for _, ap := range b.Classifier.Attachments {
			attachments = append(attachments, ap.String())
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", b.Classifier.Name, b.ACL.Name, len(b.ACL.Rules), strings.Join(attachments, ", "))
	}
}
