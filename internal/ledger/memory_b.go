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

package ledger

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	pkgerrors "docverify/pkg/errors"
	"docverify/pkg/hashutil"
)

// MemoryLedgerB 内存实现：dev profile 与测试用，语义与锚定中继一致。
// anchorDelay / failAnchor 供测试模拟确认超时与显式失败。
type MemoryLedgerB struct {
	mu          sync.RWMutex
	anchors     map[string]Anchor // normalized hash -> 最新锚定
	orgs        map[string]Organization
	feed        *eventFeed
	anchorDelay time.Duration
	failAnchor  error
}

// NewMemoryLedgerB 创建内存 LedgerB
func NewMemoryLedgerB() *MemoryLedgerB {
	return &MemoryLedgerB{
		anchors: make(map[string]Anchor),
		orgs:    make(map[string]Organization),
		feed:    newEventFeed(SourceLedgerB),
	}
}

// SetAnchorDelay 测试钩子：写入确认前等待 d（配合短超时 ctx 模拟结果不明）
func (l *MemoryLedgerB) SetAnchorDelay(d time.Duration) {
	l.mu.Lock()
	l.anchorDelay = d
	l.mu.Unlock()
}

// SetAnchorFailure 测试钩子：下一次 Anchor 返回 err（显式失败）
func (l *MemoryLedgerB) SetAnchorFailure(err error) {
	l.mu.Lock()
	l.failAnchor = err
	l.mu.Unlock()
}

// Anchor 实现 LedgerB
func (l *MemoryLedgerB) Anchor(ctx context.Context, documentHash, blobRef, orgID, proofHash string) (*Receipt, error) {
	l.mu.Lock()
	delay, fail := l.anchorDelay, l.failAnchor
	l.failAnchor = nil
	l.mu.Unlock()

	if fail != nil {
		return nil, fail
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
			// 确认本身已完成，等待只影响调用方可见性，写入继续生效
		case <-ctx.Done():
			l.confirmAnchor(documentHash, blobRef, orgID, proofHash)
			return nil, pkgerrors.Wrap(pkgerrors.ErrLedgerTimeout, "anchor confirmation")
		}
	}
	rcpt := l.confirmAnchor(documentHash, blobRef, orgID, proofHash)
	return rcpt, nil
}

func (l *MemoryLedgerB) confirmAnchor(documentHash, blobRef, orgID, proofHash string) *Receipt {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	txRef := "btx-" + uuid.New().String()
	payload, _ := json.Marshal(map[string]interface{}{
		"documentHash":   hashutil.Prefixed(documentHash),
		"organizationId": orgID,
		"blobRef":        blobRef,
		"proofHash":      proofHash,
		"timestamp":      now.UnixMilli(),
	})
	ev := l.feed.emit(EventDocumentVerified, txRef, payload)
	l.anchors[hashutil.Normalize(documentHash)] = Anchor{
		DocumentHash:   hashutil.Prefixed(documentHash),
		BlobRef:        blobRef,
		OrganizationID: orgID,
		ProofHash:      proofHash,
		TxRef:          txRef,
		Block:          ev.Block,
		AnchoredAt:     now,
		Verified:       true,
	}
	return &Receipt{TxRef: txRef, Block: ev.Block, AnchoredAt: now}
}

// Reject 实现 LedgerB；拒绝也上链并发事件
func (l *MemoryLedgerB) Reject(ctx context.Context, documentHash, orgID, reason string) (*Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	txRef := "btx-" + uuid.New().String()
	payload, _ := json.Marshal(map[string]interface{}{
		"documentHash":   hashutil.Prefixed(documentHash),
		"organizationId": orgID,
		"reason":         reason,
		"timestamp":      now.UnixMilli(),
	})
	ev := l.feed.emit(EventDocumentRejected, txRef, payload)
	key := hashutil.Normalize(documentHash)
	if _, ok := l.anchors[key]; !ok {
		l.anchors[key] = Anchor{
			DocumentHash:   hashutil.Prefixed(documentHash),
			OrganizationID: orgID,
			TxRef:          txRef,
			Block:          ev.Block,
			AnchoredAt:     now,
			Verified:       false,
			Reason:         reason,
		}
	}
	return &Receipt{TxRef: txRef, Block: ev.Block, AnchoredAt: now}, nil
}

// GetAnchor 实现 LedgerB
func (l *MemoryLedgerB) GetAnchor(ctx context.Context, documentHash string) (*Anchor, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.anchors[hashutil.Normalize(documentHash)]
	if !ok {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "anchor %s", hashutil.Prefixed(documentHash))
	}
	out := a
	return &out, nil
}

// GetOrganization 实现 LedgerB
func (l *MemoryLedgerB) GetOrganization(ctx context.Context, orgID string) (*Organization, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	org, ok := l.orgs[orgID]
	if !ok {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "organization %s", orgID)
	}
	out := org
	return &out, nil
}

// RegisterOrganization 实现 LedgerB
func (l *MemoryLedgerB) RegisterOrganization(ctx context.Context, org Organization) (*Receipt, error) {
	if org.OrgID == "" || org.WalletAddress == "" {
		return nil, pkgerrors.Wrap(pkgerrors.ErrValidation, "register organization")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	org.Active = true
	org.RegisteredAt = now
	l.orgs[org.OrgID] = org

	txRef := "btx-" + uuid.New().String()
	payload, _ := json.Marshal(map[string]interface{}{
		"orgId":         org.OrgID,
		"walletAddress": org.WalletAddress,
		"orgType":       org.OrgType,
		"name":          org.Name,
		"timestamp":     now.UnixMilli(),
	})
	ev := l.feed.emit(EventOrganizationRegistered, txRef, payload)
	return &Receipt{TxRef: txRef, Block: ev.Block, AnchoredAt: now}, nil
}

// DeactivateOrganization 停用组织并发事件（治理操作，测试与 dev 用）
func (l *MemoryLedgerB) DeactivateOrganization(ctx context.Context, orgID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	org, ok := l.orgs[orgID]
	if !ok {
		return pkgerrors.Wrapf(pkgerrors.ErrNotFound, "organization %s", orgID)
	}
	org.Active = false
	l.orgs[orgID] = org
	payload, _ := json.Marshal(map[string]interface{}{
		"orgId":         orgID,
		"walletAddress": org.WalletAddress,
		"timestamp":     time.Now().UTC().UnixMilli(),
	})
	l.feed.emit(EventOrganizationDeactivated, "btx-"+uuid.New().String(), payload)
	return nil
}

// Subscribe 实现 LedgerB
func (l *MemoryLedgerB) Subscribe(ctx context.Context, fromBlock uint64) (<-chan Event, error) {
	return l.feed.subscribe(ctx, fromBlock), nil
}
