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
	"errors"
	"sync"
	"time"

	"docverify/internal/ledger"
	"docverify/internal/storage/cache"
	"docverify/internal/storage/records"
	pkgerrors "docverify/pkg/errors"
	"docverify/pkg/hashutil"
	"docverify/pkg/log"
	"docverify/pkg/tracing"
)

// Engine 同时监听两条账本，把事件派发到本地缓存。
// 派发全部走自然键 upsert，乱序与重放都安全。
type Engine struct {
	records   records.Store
	events    Store
	cache     cache.Cache
	logger    *log.Logger
	listenerA *Listener
	listenerB *Listener
}

// EngineConfig 引擎配置
type EngineConfig struct {
	ReconnectDelay time.Duration
}

// NewEngine 创建事件同步引擎
func NewEngine(
	a ledger.LedgerA,
	b ledger.LedgerB,
	recordsStore records.Store,
	eventStore Store,
	c cache.Cache,
	logger *log.Logger,
	cfg EngineConfig,
) *Engine {
	e := &Engine{
		records: recordsStore,
		events:  eventStore,
		cache:   c,
		logger:  logger,
	}
	e.listenerA = NewListener(ledger.SourceLedgerA, a, eventStore, e.dispatch, logger, cfg.ReconnectDelay)
	e.listenerB = NewListener(ledger.SourceLedgerB, b, eventStore, e.dispatch, logger, cfg.ReconnectDelay)
	return e
}

// Run 阻塞运行两个监听器直至 ctx 取消
func (e *Engine) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.listenerA.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		e.listenerB.Run(ctx)
	}()
	wg.Wait()
}

// SourceStatus 单源同步状态
type SourceStatus struct {
	Source       string    `json:"source"`
	State        int32     `json:"state"`
	LastBlock    uint64    `json:"lastBlock"`
	LastSyncedAt time.Time `json:"lastSyncedAt"`
}

// Status 返回两源的同步进度，sync status 接口用
func (e *Engine) Status(ctx context.Context) ([]SourceStatus, error) {
	out := make([]SourceStatus, 0, 2)
	for _, l := range []*Listener{e.listenerA, e.listenerB} {
		cp, err := e.events.GetCheckpoint(ctx, l.source)
		if err != nil {
			return nil, err
		}
		out = append(out, SourceStatus{
			Source:       l.source,
			State:        l.State(),
			LastBlock:    cp.LastBlock,
			LastSyncedAt: cp.LastSyncedAt,
		})
	}
	return out, nil
}

// dispatch 按事件类型更新本地缓存
func (e *Engine) dispatch(ctx context.Context, entry LogEntry, payload interface{}) error {
	ctx, span := tracing.StartEventSpan(ctx, entry.Source, entry.Name)
	defer span.End()
	switch p := payload.(type) {
	case *DocumentVerifiedPayload:
		return e.onDocumentVerified(ctx, entry, p)
	case *DocumentRejectedPayload:
		return e.onDocumentRejected(ctx, entry, p)
	case *OrganizationRegisteredPayload:
		return e.onOrganizationRegistered(ctx, p)
	case *OrganizationDeactivatedPayload:
		return e.onOrganizationDeactivated(ctx, p)
	case *CertificateIssuedPayload:
		return e.onCertificateIssued(ctx, p)
	case *CertificateStatusUpdatedPayload:
		return e.onCertificateStatusUpdated(ctx, p)
	default:
		return pkgerrors.Wrapf(pkgerrors.ErrValidation, "未处理的事件 %s", entry.Name)
	}
}

// onDocumentVerified 锚定确认：优先落定 pending 记录，否则补建缓存行
func (e *Engine) onDocumentVerified(ctx context.Context, entry LogEntry, p *DocumentVerifiedPayload) error {
	anchoredAt := time.UnixMilli(p.Timestamp).UTC()
	err := e.records.ResolvePending(ctx, p.DocumentHash, entry.TxRef, entry.Block, anchoredAt)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		err = e.records.UpsertVerification(ctx, records.VerificationRecord{
			DocumentHash:   hashutil.Normalize(p.DocumentHash),
			BlobRef:        p.BlobRef,
			OrganizationID: p.OrganizationID,
			ProofHash:      p.ProofHash,
			LedgerBTxRef:   entry.TxRef,
			LedgerBBlock:   entry.Block,
			Verified:       true,
			VerifiedAt:     anchoredAt,
		})
		if errors.Is(err, pkgerrors.ErrDuplicate) {
			// 本地已有同哈希 verified 记录，事件重放
			return nil
		}
	}
	if err != nil {
		return err
	}
	return e.invalidate(ctx, p.DocumentHash)
}

// onDocumentRejected 拒绝记录只在无 verified 记录时落缓存
func (e *Engine) onDocumentRejected(ctx context.Context, entry LogEntry, p *DocumentRejectedPayload) error {
	existing, err := e.records.GetVerification(ctx, p.DocumentHash)
	if err == nil && existing.Verified {
		return nil
	}
	if err != nil && !errors.Is(err, pkgerrors.ErrNotFound) {
		return err
	}
	if err := e.records.UpsertVerification(ctx, records.VerificationRecord{
		DocumentHash:   hashutil.Normalize(p.DocumentHash),
		OrganizationID: p.OrganizationID,
		LedgerBTxRef:   entry.TxRef,
		LedgerBBlock:   entry.Block,
		Verified:       false,
		Reason:         p.Reason,
		VerifiedAt:     time.UnixMilli(p.Timestamp).UTC(),
	}); err != nil {
		return err
	}
	return e.invalidate(ctx, p.DocumentHash)
}

func (e *Engine) onOrganizationRegistered(ctx context.Context, p *OrganizationRegisteredPayload) error {
	return e.records.UpsertOrganization(ctx, records.Organization{
		OrgID:         p.OrgID,
		Name:          p.Name,
		OrgType:       p.OrgType,
		WalletAddress: p.WalletAddress,
		Status:        records.OrgStatusVerified,
		RegisteredAt:  time.UnixMilli(p.Timestamp).UTC(),
	})
}

// onOrganizationDeactivated 停用后组织不得再提交，状态落为 rejected
func (e *Engine) onOrganizationDeactivated(ctx context.Context, p *OrganizationDeactivatedPayload) error {
	org, err := e.records.GetOrganization(ctx, p.OrgID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		org = &records.Organization{OrgID: p.OrgID, WalletAddress: p.WalletAddress}
	} else if err != nil {
		return err
	}
	org.Status = records.OrgStatusRejected
	return e.records.UpsertOrganization(ctx, *org)
}

// onCertificateIssued 把证书号补到既有验证记录上并缓存解析关系
func (e *Engine) onCertificateIssued(ctx context.Context, p *CertificateIssuedPayload) error {
	rec, err := e.records.GetVerification(ctx, p.DocumentHash)
	if err == nil && rec.CertificateID == "" {
		rec.CertificateID = p.CertificateID
		if err := e.records.UpsertVerification(ctx, *rec); err != nil && !errors.Is(err, pkgerrors.ErrDuplicate) {
			return err
		}
	} else if err != nil && !errors.Is(err, pkgerrors.ErrNotFound) {
		return err
	}
	if e.cache != nil {
		if err := e.cache.Set(ctx, cache.CertKey(p.CertificateID),
			[]byte(hashutil.Normalize(p.DocumentHash)), 0); err != nil {
			e.logger.Warn("写入证书解析缓存失败", "certificateId", p.CertificateID, "err", err)
		}
	}
	return nil
}

// onCertificateStatusUpdated 证书状态变了就让查验缓存失效，下次读走账本实时校验
func (e *Engine) onCertificateStatusUpdated(ctx context.Context, p *CertificateStatusUpdatedPayload) error {
	if p.DocumentHash != "" {
		return e.invalidate(ctx, p.DocumentHash)
	}
	rec, err := e.records.GetVerificationByCertificateID(ctx, p.CertificateID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return e.invalidate(ctx, rec.DocumentHash)
}

func (e *Engine) invalidate(ctx context.Context, documentHash string) error {
	if e.cache == nil {
		return nil
	}
	if err := e.cache.Delete(ctx, cache.VerifyKey(hashutil.Normalize(documentHash))); err != nil {
		e.logger.Warn("查验缓存失效失败", "documentHash", documentHash, "err", err)
	}
	return nil
}
