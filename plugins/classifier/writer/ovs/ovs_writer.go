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

package ovs

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ligato/cn-infra/logging"
	"github.com/pkg/errors"
	utilwait "k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/exec"

	"github.com/contiv/sfc-classifier/plugins/classifier/writer"
)

const (
	ovsOfctl = "ovs-ofctl"
	ovsVsctl = "ovs-vsctl"
)

// Writer installs flow-table rules into local OVS bridges, one ovs-ofctl
// bundle (atomic transaction) per batch.
type Writer struct {
	Deps

	backoff utilwait.Backoff
}

// Deps lists dependencies of the OVS Writer.
type Deps struct {
	Log  logging.Logger
	Exec exec.Interface

	// switch ID -> bridge name
	Bridges map[string]string

	// number of attempts to execute a bundle
	Retries int
}

// NewWriter checks that the OVS utilities are available and creates a new Writer.
func NewWriter(deps Deps) (*Writer, error) {
	for _, cmd := range []string{ovsOfctl, ovsVsctl} {
		if _, err := deps.Exec.LookPath(cmd); err != nil {
			return nil, errors.Wrapf(err, "%s is not installed", cmd)
		}
	}
	steps := deps.Retries
	if steps < 1 {
		steps = 1
	}
	return &Writer{
		Deps: deps,
		backoff: utilwait.Backoff{
			Duration: 100 * time.Millisecond,
			Factor:   2,
			Steps:    steps,
		},
	}, nil
}

// CommitBatch renders the operations and executes them as a single bundle
// on the bridge of the switch.
func (w *Writer) CommitBatch(ctx context.Context, switchID string, tableID uint8, ops []writer.FlowOp) error {
	bridge, known := w.Bridges[switchID]
	if !known {
		return errors.Errorf("no OVS bridge for switch %s", switchID)
	}
	lines := make([]string, 0, len(ops))
	for _, op := range ops {
		line, err := RenderOp(tableID, op)
		if err != nil {
			return errors.Wrapf(err, "rule %s", op.Key)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil
	}

	var lastErr error
	err := utilwait.ExponentialBackoff(w.backoff, func() (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		_, lastErr = w.execWithStdin(ovsOfctl, lines, "bundle", bridge, "-")
		return lastErr == nil, nil
	})
	if err == utilwait.ErrWaitTimeout && lastErr != nil {
		err = lastErr
	}
	if err != nil {
		return errors.Wrapf(err, "failed to commit bundle to bridge %s", bridge)
	}
	return nil
}

// GetOFPort returns the OpenFlow port number of an interface.
func (w *Writer) GetOFPort(interfaceName string) (uint32, error) {
	out, err := w.execWithStdin(ovsVsctl, nil, "get", "Interface", interfaceName, "ofport")
	if err != nil {
		return 0, errors.Wrapf(err, "failed to get OVS port for %s", interfaceName)
	}
	ofport, err := strconv.Atoi(out)
	if err != nil {
		return 0, errors.Wrapf(err, "could not parse ofport %q", out)
	}
	if ofport <= 0 {
		return 0, errors.Errorf("interface %s has no valid ofport (%d)", interfaceName, ofport)
	}
	return uint32(ofport), nil
}

func (w *Writer) execWithStdin(cmd string, stdinLines []string, args ...string) (string, error) {
	switch cmd {
	case ovsOfctl:
		args = append([]string{"-O", "OpenFlow13"}, args...)
	case ovsVsctl:
		args = append([]string{"--timeout=30"}, args...)
	}

	kcmd := w.Exec.Command(cmd, args...)
	if stdinLines != nil {
		stdin := strings.Join(stdinLines, "\n")
		kcmd.SetStdin(bytes.NewBufferString(stdin))
		w.Log.Debugf("Executing: %s %s <<\n%s", cmd, strings.Join(args, " "), stdin)
	} else {
		w.Log.Debugf("Executing: %s %s", cmd, strings.Join(args, " "))
	}

	output, err := kcmd.CombinedOutput()
	if err != nil {
		w.Log.Errorf("Error executing %s %v: %v, output:\n%s", cmd, args, err, string(output))
		return "", err
	}
	return strings.TrimSuffix(string(output), "\n"), nil
}
