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
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/contiv/sfc-classifier/plugins/classifier"
	"github.com/contiv/sfc-classifier/plugins/classifier/model"
	"github.com/contiv/sfc-classifier/plugins/classifier/processor"
)

const defaultServer = "localhost:9191"

var (
	server  string
	output  string
	verbose bool
)

var cmdFlows = &cobra.Command{
	Use:   "flows",
	Short: "Shows classifier rules installed by the agent",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		var flows []classifier.FlowRecord
		if err := newClient(server).get(classifier.FlowsURL, &flows); err != nil {
			return err
		}
		return printOutput(os.Stdout, flows, flowsTable)
	},
}

var cmdPaths = &cobra.Command{
	Use:   "paths",
	Short: "Shows chain paths known to the agent",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		var paths []model.ChainPath
		if err := newClient(server).get(classifier.PathsURL, &paths); err != nil {
			return err
		}
		return printOutput(os.Stdout, paths, pathsTable)
	},
}

var cmdClassifiers = &cobra.Command{
	Use:   "classifiers",
	Short: "Shows classifiers with their ACLs",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		var bindings []processor.Binding
		if err := newClient(server).get(classifier.ClassifiersURL, &bindings); err != nil {
			return err
		}
		return printOutput(os.Stdout, bindings, classifiersTable)
	},
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "sfc-classifier-ctl",
		Short:        "Inspects state of the SFC classifier agent",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&server, "server", "s", defaultServer, "address of the agent REST API")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", tableOutput, "output format: table, json or yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log HTTP requests")
	rootCmd.AddCommand(cmdFlows, cmdPaths, cmdClassifiers)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
