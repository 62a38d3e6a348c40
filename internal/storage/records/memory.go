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

package records

import (
	"context"
	"sort"
	"sync"
	"time"

	pkgerrors "docverify/pkg/errors"
	"docverify/pkg/hashutil"
)

// MemoryStore 内存实现，约束语义与 Postgres 版一致
type MemoryStore struct {
	mu      sync.RWMutex
	byHash  map[string]VerificationRecord // normalized hash -> 记录
	byCert  map[string]string             // certificateID -> normalized hash
	orgs    map[string]Organization
	wallets map[string]string // walletAddress -> orgID
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore 创建内存记录缓存
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byHash:  make(map[string]VerificationRecord),
		byCert:  make(map[string]string),
		orgs:    make(map[string]Organization),
		wallets: make(map[string]string),
	}
}

// UpsertVerification 实现 Store
func (s *MemoryStore) UpsertVerification(ctx context.Context, rec VerificationRecord) error {
	if !hashutil.IsValid(rec.DocumentHash) {
		return pkgerrors.Wrap(pkgerrors.ErrValidation, "document hash")
	}
	key := hashutil.Normalize(rec.DocumentHash)
	rec.DocumentHash = key
	rec.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byHash[key]; ok {
		// 同一哈希至多一条 verified 记录；重放同一条允许
		if existing.Verified && rec.Verified && existing.LedgerBTxRef != rec.LedgerBTxRef {
			return pkgerrors.Wrapf(pkgerrors.ErrDuplicate, "verified record for %s", key)
		}
		if existing.CertificateID != "" && existing.CertificateID != rec.CertificateID {
			delete(s.byCert, existing.CertificateID)
		}
	}
	s.byHash[key] = rec
	if rec.CertificateID != "" {
		s.byCert[rec.CertificateID] = key
	}
	return nil
}

// GetVerification 实现 Store
func (s *MemoryStore) GetVerification(ctx context.Context, documentHash string) (*VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byHash[hashutil.Normalize(documentHash)]
	if !ok {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "verification %s", documentHash)
	}
	out := rec
	return &out, nil
}

// GetVerificationByCertificateID 实现 Store
func (s *MemoryStore) GetVerificationByCertificateID(ctx context.Context, certificateID string) (*VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.byCert[certificateID]
	if !ok {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "certificate %s", certificateID)
	}
	rec := s.byHash[key]
	out := rec
	return &out, nil
}

// ListPending 实现 Store
func (s *MemoryStore) ListPending(ctx context.Context) ([]VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []VerificationRecord
	for _, rec := range s.byHash {
		if rec.Pending {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ResolvePending 实现 Store
func (s *MemoryStore) ResolvePending(ctx context.Context, documentHash, txRef string, block uint64, anchoredAt time.Time) error {
	key := hashutil.Normalize(documentHash)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byHash[key]
	if !ok {
		return pkgerrors.Wrapf(pkgerrors.ErrNotFound, "verification %s", documentHash)
	}
	if !rec.Pending {
		return nil // 已落定，重放无副作用
	}
	rec.Pending = false
	rec.Verified = true
	rec.LedgerBTxRef = txRef
	rec.LedgerBBlock = block
	rec.VerifiedAt = anchoredAt
	rec.UpdatedAt = time.Now().UTC()
	s.byHash[key] = rec
	return nil
}

// UpsertOrganization 实现 Store
func (s *MemoryStore) UpsertOrganization(ctx context.Context, org Organization) error {
	if org.OrgID == "" {
		return pkgerrors.Wrap(pkgerrors.ErrValidation, "orgId")
	}
	org.UpdatedAt = time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.orgs[org.OrgID]; ok && existing.WalletAddress != org.WalletAddress {
		delete(s.wallets, existing.WalletAddress)
	}
	s.orgs[org.OrgID] = org
	if org.WalletAddress != "" {
		s.wallets[org.WalletAddress] = org.OrgID
	}
	return nil
}

// GetOrganization 实现 Store
func (s *MemoryStore) GetOrganization(ctx context.Context, orgID string) (*Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs[orgID]
	if !ok {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "organization %s", orgID)
	}
	out := org
	return &out, nil
}

// GetOrganizationByWallet 实现 Store
func (s *MemoryStore) GetOrganizationByWallet(ctx context.Context, walletAddress string) (*Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgID, ok := s.wallets[walletAddress]
	if !ok {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "wallet %s", walletAddress)
	}
	org := s.orgs[orgID]
	out := org
	return &out, nil
}

// ListOrganizations 实现 Store
func (s *MemoryStore) ListOrganizations(ctx context.Context) ([]Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Organization, 0, len(s.orgs))
	for _, org := range s.orgs {
		out = append(out, org)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrgID < out[j].OrgID })
	return out, nil
}

// SetOrganizationBan 实现 Store
func (s *MemoryStore) SetOrganizationBan(ctx context.Context, orgID, status string, expiresAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[orgID]
	if !ok {
		return pkgerrors.Wrapf(pkgerrors.ErrNotFound, "organization %s", orgID)
	}
	org.Status = status
	org.BanExpiresAt = expiresAt
	org.UpdatedAt = time.Now().UTC()
	s.orgs[orgID] = org
	return nil
}

// Close 实现 Store
func (s *MemoryStore) Close() {}
