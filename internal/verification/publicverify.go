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

package verification

import (
	"context"
	"encoding/json"
	"errors"

	"docverify/internal/ledger"
	"docverify/internal/storage/blob"
	"docverify/internal/storage/cache"
	"docverify/internal/storage/records"
	pkgerrors "docverify/pkg/errors"
	"docverify/pkg/hashutil"
	"docverify/pkg/log"
	"docverify/pkg/metrics"
)

const maxBulkVerify = 100

// 查验结论
const (
	VerdictVerified     = "verified"
	VerdictNotVerified  = "not_verified"
	VerdictInconsistent = "inconsistent"
)

// VerifyResult 公开查验结论
type VerifyResult struct {
	Verdict        string            `json:"verdict"`
	DocumentHash   string            `json:"documentHash"`
	CertificateID  string            `json:"certificateId,omitempty"`
	OrganizationID string            `json:"organizationId,omitempty"`
	AnchorTxRef    string            `json:"anchorTxRef,omitempty"`
	AnchorBlock    uint64            `json:"anchorBlock,omitempty"`
	Reason         string            `json:"reason,omitempty"`
	Consistency    ConsistencyResult `json:"consistency"`
	FromCache      bool              `json:"fromCache,omitempty"`
}

// PublicVerifier 公开查验服务。
// 缓存只加速否定结论；肯定结论必须同时经过两条账本的实时查询，
// 缓存或本地库丢失不改变任何查验结果。
type PublicVerifier struct {
	ledgerA ledger.LedgerA
	ledgerB ledger.LedgerB
	records records.Store
	blobs   blob.Store
	cache   cache.Cache
	logger  *log.Logger
}

// NewPublicVerifier 创建公开查验服务
func NewPublicVerifier(
	a ledger.LedgerA,
	b ledger.LedgerB,
	recordsStore records.Store,
	blobs blob.Store,
	c cache.Cache,
	logger *log.Logger,
) *PublicVerifier {
	return &PublicVerifier{
		ledgerA: a,
		ledgerB: b,
		records: recordsStore,
		blobs:   blobs,
		cache:   c,
		logger:  logger,
	}
}

// VerifyByHash 按文档哈希查验
func (v *PublicVerifier) VerifyByHash(ctx context.Context, documentHash string) (*VerifyResult, error) {
	if !hashutil.IsValid(documentHash) {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "document hash must be 64 hex chars")
	}
	key := hashutil.Normalize(documentHash)

	if cached := v.cachedResult(ctx, key); cached != nil && cached.Verdict == VerdictNotVerified {
		cached.FromCache = true
		return cached, nil
	}

	res := v.verifyLive(ctx, key)
	v.storeResult(ctx, key, res)
	metrics.VerifyTotal.WithLabelValues(res.Verdict).Inc()
	return res, nil
}

// verifyLive 双账本实时查验
func (v *PublicVerifier) verifyLive(ctx context.Context, key string) *VerifyResult {
	res := &VerifyResult{DocumentHash: key, Verdict: VerdictNotVerified}

	anchor, err := v.ledgerB.GetAnchor(ctx, key)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		res.Reason = "no anchor on public ledger"
		return res
	}
	if err != nil {
		v.logger.Error("公链查询失败", "documentHash", key, "err", err)
		res.Reason = "public ledger unavailable"
		return res
	}
	res.OrganizationID = anchor.OrganizationID
	res.AnchorTxRef = anchor.TxRef
	res.AnchorBlock = anchor.Block
	if !anchor.Verified {
		res.Reason = anchor.Reason
		if res.Reason == "" {
			res.Reason = "document was rejected"
		}
		return res
	}

	certRecs, err := v.ledgerA.QueryByHash(ctx, key, anchor.OrganizationID)
	if err != nil && !errors.Is(err, pkgerrors.ErrNotFound) {
		v.logger.Error("许可链查询失败", "documentHash", key, "err", err)
		res.Verdict = VerdictInconsistent
		res.Reason = "certificate ledger unavailable"
		return res
	}
	if len(certRecs) == 0 {
		// 公链有锚定、许可链无记录：账本间分歧
		res.Verdict = VerdictInconsistent
		res.Reason = "anchored but missing on certificate ledger"
		return res
	}
	latest := certRecs[len(certRecs)-1]
	res.CertificateID = latest.CertificateID

	if latest.Status != ledger.StatusValid {
		res.Reason = "certificate status is " + latest.Status
		return res
	}

	cons := CheckConsistency(&latest, anchor)
	res.Consistency = cons
	if !cons.Consistent {
		res.Verdict = VerdictInconsistent
		res.Reason = "ledgers disagree"
		return res
	}
	for _, w := range cons.Warnings {
		v.logger.Warn("查验告警", "documentHash", key, "warning", w)
	}
	res.Verdict = VerdictVerified
	return res
}

// VerifyByCertificateID 按证书号查验
func (v *PublicVerifier) VerifyByCertificateID(ctx context.Context, certificateID string) (*VerifyResult, error) {
	if !hashutil.IsValidCertificateID(certificateID) {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "malformed certificate id")
	}
	hash, err := v.resolveCertificate(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	res, err := v.VerifyByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if res.CertificateID == "" {
		res.CertificateID = certificateID
	}
	return res, nil
}

// resolveCertificate 证书号到文档哈希：缓存、本地库、许可链逐级回退
func (v *PublicVerifier) resolveCertificate(ctx context.Context, certificateID string) (string, error) {
	if v.cache != nil {
		if val, err := v.cache.Get(ctx, cache.CertKey(certificateID)); err == nil && hashutil.IsValid(string(val)) {
			return string(val), nil
		}
	}
	if rec, err := v.records.GetVerificationByCertificateID(ctx, certificateID); err == nil {
		return rec.DocumentHash, nil
	} else if !errors.Is(err, pkgerrors.ErrNotFound) {
		return "", err
	}
	rec, err := v.ledgerA.QueryByID(ctx, certificateID)
	if err != nil {
		return "", err
	}
	if v.cache != nil {
		if err := v.cache.Set(ctx, cache.CertKey(certificateID), []byte(rec.DocumentHash), 0); err != nil {
			v.logger.Warn("写入证书解析缓存失败", "certificateId", certificateID, "err", err)
		}
	}
	return rec.DocumentHash, nil
}

// HistoryResult 证书的许可链版本序列，外加公链锚定（若已锚定）
type HistoryResult struct {
	CertificateID string          `json:"certificateId"`
	DocumentHash  string          `json:"documentHash,omitempty"`
	Versions      []ledger.Record `json:"versions"`
	Anchor        *ledger.Anchor  `json:"anchor,omitempty"`
}

// History 证书的全部链上版本，合并公链锚定事实
func (v *PublicVerifier) History(ctx context.Context, certificateID string) (*HistoryResult, error) {
	if !hashutil.IsValidCertificateID(certificateID) {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "malformed certificate id")
	}
	versions, err := v.ledgerA.History(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	out := &HistoryResult{CertificateID: certificateID, Versions: versions}
	if len(versions) > 0 {
		out.DocumentHash = versions[len(versions)-1].DocumentHash
		anchor, err := v.ledgerB.GetAnchor(ctx, out.DocumentHash)
		if err == nil {
			out.Anchor = anchor
		} else if !errors.Is(err, pkgerrors.ErrNotFound) {
			return nil, err
		}
	}
	return out, nil
}

// BulkEntry 批量查验单条结论
type BulkEntry struct {
	DocumentHash string        `json:"documentHash"`
	Result       *VerifyResult `json:"result,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// VerifyBulk 批量查验，单批最多 100 个哈希，条目间互不影响
func (v *PublicVerifier) VerifyBulk(ctx context.Context, hashes []string) ([]BulkEntry, error) {
	if len(hashes) == 0 {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "no hashes given")
	}
	if len(hashes) > maxBulkVerify {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrInvalidArg, "batch exceeds %d hashes", maxBulkVerify)
	}
	out := make([]BulkEntry, 0, len(hashes))
	for _, h := range hashes {
		entry := BulkEntry{DocumentHash: h}
		res, err := v.VerifyByHash(ctx, h)
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Result = res
		}
		out = append(out, entry)
	}
	return out, nil
}

// Download 按证书号取回原始文档字节
func (v *PublicVerifier) Download(ctx context.Context, certificateID string) ([]byte, error) {
	if !hashutil.IsValidCertificateID(certificateID) {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "malformed certificate id")
	}
	rec, err := v.records.GetVerificationByCertificateID(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	if rec.BlobRef == "" {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "no stored document for %s", certificateID)
	}
	return v.blobs.Get(ctx, rec.BlobRef)
}

func (v *PublicVerifier) cachedResult(ctx context.Context, key string) *VerifyResult {
	if v.cache == nil {
		return nil
	}
	val, err := v.cache.Get(ctx, cache.VerifyKey(key))
	if err != nil {
		return nil
	}
	var res VerifyResult
	if err := json.Unmarshal(val, &res); err != nil {
		return nil
	}
	return &res
}

func (v *PublicVerifier) storeResult(ctx context.Context, key string, res *VerifyResult) {
	if v.cache == nil {
		return
	}
	val, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := v.cache.Set(ctx, cache.VerifyKey(key), val, 0); err != nil {
		v.logger.Warn("写入查验缓存失败", "documentHash", key, "err", err)
	}
}
