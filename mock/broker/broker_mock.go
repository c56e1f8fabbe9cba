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

package broker

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/gogo/protobuf/proto"
	"github.com/ligato/cn-infra/datasync"
	"github.com/ligato/cn-infra/db/keyval"
)

// MockKVStore is an in-memory key-value store handing out prefixed brokers.
type MockKVStore struct {
	sync.Mutex
	Data map[string]proto.Message

	// FailPut makes every Put with key containing the given substring fail.
	// A transaction with such a Put fails as a whole.
	FailPut string
	putErr  error
}

// NewMockKVStore creates an empty in-memory store.
func NewMockKVStore() *MockKVStore {
	return &MockKVStore{Data: make(map[string]proto.Message)}
}

// SetPutError sets the error returned by failing Puts (see FailPut).
func (s *MockKVStore) SetPutError(err error) {
	s.putErr = err
}

// NewBroker returns a broker operating on keys under the given prefix.
func (s *MockKVStore) NewBroker(keyPrefix string) keyval.ProtoBroker {
	return &MockBroker{store: s, prefix: keyPrefix}
}

// Keys returns all keys in the store, sorted.
func (s *MockKVStore) Keys() []string {
	s.Lock()
	defer s.Unlock()
	var res []string
	for k := range s.Data {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}

// MockBroker is a prefixed view of MockKVStore.
type MockBroker struct {
	store  *MockKVStore
	prefix string
}

// failPut returns the error configured for the key, called with the store locked.
func (s *MockKVStore) failPut(key string) error {
	if s.FailPut != "" && strings.Contains(key, s.FailPut) {
		return s.putErr
	}
	return nil
}

// Put stores a copy of the value.
func (mb *MockBroker) Put(key string, data proto.Message, opts ...datasync.PutOption) error {
	s := mb.store
	s.Lock()
	defer s.Unlock()
	if err := s.failPut(key); err != nil {
		return err
	}
	s.Data[mb.prefix+key] = proto.Clone(data)
	return nil
}

// Delete removes the value under the key.
func (mb *MockBroker) Delete(key string, opts ...datasync.DelOption) (found bool, err error) {
	s := mb.store
	s.Lock()
	defer s.Unlock()
	_, found = s.Data[mb.prefix+key]
	delete(s.Data, mb.prefix+key)
	return found, nil
}

// GetValue copies the stored value into val.
func (mb *MockBroker) GetValue(key string, val proto.Message) (found bool, rev int64, err error) {
	s := mb.store
	s.Lock()
	defer s.Unlock()
	data, found := s.Data[mb.prefix+key]
	if !found {
		return false, 0, nil
	}
	val.Reset()
	proto.Merge(val, data)
	return true, 0, nil
}

// NewTxn creates a transaction applied to the store at Commit.
func (mb *MockBroker) NewTxn() keyval.ProtoTxn {
	return &MockTxn{broker: mb}
}

// ListKeys is not supported.
func (mb *MockBroker) ListKeys(prefix string) (keyval.ProtoKeyIterator, error) {
	return nil, nil
}

// ListValues iterates over values with keys under the given prefix.
func (mb *MockBroker) ListValues(key string) (keyval.ProtoKeyValIterator, error) {
	s := mb.store
	s.Lock()
	defer s.Unlock()
	it := &mockIt{}
	for k, v := range s.Data {
		if strings.HasPrefix(k, mb.prefix+key) {
			it.kvs = append(it.kvs, &mockKv{key: strings.TrimPrefix(k, mb.prefix), val: v})
		}
	}
	sort.Slice(it.kvs, func(i, j int) bool {
		return it.kvs[i].key < it.kvs[j].key
	})
	return it, nil
}

type mockIt struct {
	kvs   []*mockKv
	index int
}

func (mi *mockIt) GetNext() (kv keyval.ProtoKeyVal, stop bool) {
	if mi.index >= len(mi.kvs) {
		return nil, true
	}
	kv = mi.kvs[mi.index]
	mi.index++
	return kv, false
}

func (mi *mockIt) Close() error {
	return nil
}

type mockKv struct {
	key string
	val proto.Message
}

func (mk *mockKv) GetValue(val proto.Message) error {
	val.Reset()
	proto.Merge(val, mk.val)
	return nil
}

func (mk *mockKv) GetPrevValue(val proto.Message) (exists bool, err error) {
	return false, nil
}

func (mk *mockKv) GetKey() string {
	return mk.key
}

func (mk *mockKv) GetRevision() int64 {
	return 0
}

// MockTxn buffers operations of a MockBroker and applies them all at once.
type MockTxn struct {
	broker *MockBroker
	ops    []txnOp
}

type txnOp struct {
	key  string
	data proto.Message // nil for delete
}

// Put adds a put operation into the transaction.
func (mt *MockTxn) Put(key string, data proto.Message) keyval.ProtoTxn {
	mt.ops = append(mt.ops, txnOp{key: key, data: proto.Clone(data)})
	return mt
}

// Delete adds a delete operation into the transaction.
func (mt *MockTxn) Delete(key string) keyval.ProtoTxn {
	mt.ops = append(mt.ops, txnOp{key: key})
	return mt
}

// Commit applies all operations, or none if any Put fails.
func (mt *MockTxn) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := mt.broker.store
	s.Lock()
	defer s.Unlock()
	for _, op := range mt.ops {
		if op.data == nil {
			continue
		}
		if err := s.failPut(op.key); err != nil {
			return err
		}
	}
	for _, op := range mt.ops {
		if op.data == nil {
			delete(s.Data, mt.broker.prefix+op.key)
		} else {
			s.Data[mt.broker.prefix+op.key] = op.data
		}
	}
	return nil
}
