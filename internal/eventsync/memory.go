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

package eventsync

import (
	"context"
	"sync"
	"time"
)

const defaultRecentLimit = 50

// MemoryStore 内存事件存储
type MemoryStore struct {
	mu          sync.RWMutex
	events      []LogEntry
	seen        map[string]struct{}
	checkpoints map[string]Checkpoint
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore 创建内存事件存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seen:        make(map[string]struct{}),
		checkpoints: make(map[string]Checkpoint),
	}
}

// AppendEvent 实现 Store
func (s *MemoryStore) AppendEvent(ctx context.Context, entry LogEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entry.Key()
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	if entry.ReceivedAt.IsZero() {
		entry.ReceivedAt = time.Now().UTC()
	}
	s.seen[key] = struct{}{}
	s.events = append(s.events, entry)
	return true, nil
}

// RecentEvents 实现 Store
func (s *MemoryStore) RecentEvents(ctx context.Context, source string, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []LogEntry
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		if s.events[i].Source == source {
			out = append(out, s.events[i])
		}
	}
	return out, nil
}

// GetCheckpoint 实现 Store
func (s *MemoryStore) GetCheckpoint(ctx context.Context, source string) (Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[source]
	if !ok {
		return Checkpoint{Source: source}, nil
	}
	return cp, nil
}

// AdvanceCheckpoint 实现 Store
func (s *MemoryStore) AdvanceCheckpoint(ctx context.Context, source string, block uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := s.checkpoints[source]
	if block <= cp.LastBlock {
		return nil
	}
	s.checkpoints[source] = Checkpoint{Source: source, LastBlock: block, LastSyncedAt: time.Now().UTC()}
	return nil
}

// Close 实现 Store
func (s *MemoryStore) Close() {}
