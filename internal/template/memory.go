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

package template

import (
	"context"
	"sort"
	"sync"
	"time"

	pkgerrors "docverify/pkg/errors"
)

// MemoryStore 内存模板存储
type MemoryStore struct {
	mu        sync.RWMutex
	templates map[string]Template
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore 创建内存模板存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{templates: make(map[string]Template)}
}

// Create 实现 Store
func (s *MemoryStore) Create(ctx context.Context, tmpl Template) error {
	if tmpl.ID == "" || tmpl.OrganizationID == "" {
		return pkgerrors.Wrap(pkgerrors.ErrValidation, "template id/org")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[tmpl.ID]; ok {
		return pkgerrors.Wrapf(pkgerrors.ErrDuplicate, "template %s", tmpl.ID)
	}
	now := time.Now().UTC()
	tmpl.CreatedAt = now
	tmpl.UpdatedAt = now
	s.templates[tmpl.ID] = tmpl
	return nil
}

// Get 实现 Store
func (s *MemoryStore) Get(ctx context.Context, id string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tmpl, ok := s.templates[id]
	if !ok {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "template %s", id)
	}
	out := tmpl
	return &out, nil
}

// ListByOrganization 实现 Store
func (s *MemoryStore) ListByOrganization(ctx context.Context, orgID string) ([]Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Template
	for _, tmpl := range s.templates {
		if tmpl.OrganizationID == orgID {
			out = append(out, tmpl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Update 实现 Store
func (s *MemoryStore) Update(ctx context.Context, tmpl Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.templates[tmpl.ID]
	if !ok {
		return pkgerrors.Wrapf(pkgerrors.ErrNotFound, "template %s", tmpl.ID)
	}
	tmpl.CreatedAt = existing.CreatedAt
	tmpl.UpdatedAt = time.Now().UTC()
	s.templates[tmpl.ID] = tmpl
	return nil
}

// Delete 实现 Store
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[id]; !ok {
		return pkgerrors.Wrapf(pkgerrors.ErrNotFound, "template %s", id)
	}
	delete(s.templates, id)
	return nil
}
