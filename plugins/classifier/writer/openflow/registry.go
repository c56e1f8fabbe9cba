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

package openflow

import (
	"sync"
)

// Registry keeps track of connected switches.
type Registry struct {
	sync.RWMutex
	switches map[string]Switch
}

// NewRegistry creates an empty switch registry.
func NewRegistry() *Registry {
	return &Registry{switches: make(map[string]Switch)}
}

// Connected registers switch connection, replacing any previous one.
func (r *Registry) Connected(switchID string, sw Switch) {
	r.Lock()
	defer r.Unlock()
	r.switches[switchID] = sw
}

// Disconnected removes the switch.
func (r *Registry) Disconnected(switchID string) {
	r.Lock()
	defer r.Unlock()
	delete(r.switches, switchID)
}

// GetSwitch returns the connection of the switch.
func (r *Registry) GetSwitch(switchID string) (sw Switch, connected bool) {
	r.RLock()
	defer r.RUnlock()
	sw, connected = r.switches[switchID]
	return sw, connected
}
