// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package blob

import (
	"context"
	"sync"

	pkgerrors "docverify/pkg/errors"
	"docverify/pkg/hashutil"
)

// MemoryStore 内存 blob 存储：引用即内容哈希，与 IPFS 的内容寻址语义一致
type MemoryStore struct {
	mu      sync.RWMutex
	blobs   map[string][]byte
	failPut error
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore 创建内存 blob 存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// SetPutFailure 测试钩子：下一次 Put 返回 err
func (s *MemoryStore) SetPutFailure(err error) {
	s.mu.Lock()
	s.failPut = err
	s.mu.Unlock()
}

// Put 实现 Store
func (s *MemoryStore) Put(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", pkgerrors.Wrap(pkgerrors.ErrValidation, "empty blob")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut != nil {
		err := s.failPut
		s.failPut = nil
		return "", err
	}
	ref := "mem-" + hashutil.ComputeDocumentHash(data)
	cp := make([]byte, len(data))
	copy(cp, data)
	s.blobs[ref] = cp
	return ref, nil
}

// Get 实现 Store
func (s *MemoryStore) Get(ctx context.Context, ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[ref]
	if !ok {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "blob %s", ref)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
