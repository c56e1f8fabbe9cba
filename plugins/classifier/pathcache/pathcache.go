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

package pathcache

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/contiv/sfc-classifier/plugins/classifier/model"
)

// PathCache is a registry of rendered chain paths indexed by name.
// It is safe for concurrent use.
type PathCache struct {
	sync.RWMutex
	byName map[string]*model.ChainPath
	byID   map[uint32]string
}

// NewPathCache creates an empty path cache.
func NewPathCache() *PathCache {
	return &PathCache{
		byName: make(map[string]*model.ChainPath),
		byID:   make(map[uint32]string),
	}
}

// Put adds or replaces a chain path. Returns the replaced path, if any.
func (pc *PathCache) Put(path *model.ChainPath) (prev *model.ChainPath, err error) {
	if path.Name == "" {
		return nil, errors.New("chain path without name")
	}
	if path.ID == model.BootstrapPathID {
		return nil, errors.Errorf("chain path %s: ID %d is reserved", path.Name, path.ID)
	}
	if int(path.StartingIndex) < len(path.Hops) {
		return nil, errors.Errorf("chain path %s: starting index %d too low for %d hops",
			path.Name, path.StartingIndex, len(path.Hops))
	}

	pc.Lock()
	defer pc.Unlock()

	if other, taken := pc.byID[path.ID]; taken && other != path.Name {
		return nil, errors.Errorf("chain path %s: ID %d already used by %s", path.Name, path.ID, other)
	}
	prev = pc.byName[path.Name]
	if prev != nil {
		delete(pc.byID, prev.ID)
	}
	stored := copyPath(path)
	pc.byName[path.Name] = stored
	pc.byID[path.ID] = path.Name
	return prev, nil
}

// Delete removes a chain path by name. Returns the removed path, nil if not found.
func (pc *PathCache) Delete(name string) *model.ChainPath {
	pc.Lock()
	defer pc.Unlock()

	path, found := pc.byName[name]
	if !found {
		return nil
	}
	delete(pc.byName, name)
	delete(pc.byID, path.ID)
	return path
}

// ResolveChainPath returns a copy of the chain path with the given name.
func (pc *PathCache) ResolveChainPath(name string) (*model.ChainPath, bool) {
	pc.RLock()
	defer pc.RUnlock()

	path, found := pc.byName[name]
	if !found {
		return nil, false
	}
	return copyPath(path), true
}

// List returns copies of all chain paths ordered by ID.
func (pc *PathCache) List() []*model.ChainPath {
	pc.RLock()
	defer pc.RUnlock()

	paths := make([]*model.ChainPath, 0, len(pc.byName))
	for _, path := range pc.byName {
		paths = append(paths, copyPath(path))
	}
	sort.Slice(paths, func(i, j int) bool {
		return paths[i].ID < paths[j].ID
	})
	return paths
}

// Clear removes all chain paths.
func (pc *PathCache) Clear() {
	pc.Lock()
	defer pc.Unlock()
	pc.byName = make(map[string]*model.ChainPath)
	pc.byID = make(map[uint32]string)
}

func copyPath(path *model.ChainPath) *model.ChainPath {
	cp := *path
	cp.Hops = append([]model.Hop(nil), path.Hops...)
	return &cp
}
