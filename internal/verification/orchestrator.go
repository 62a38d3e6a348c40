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
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"docverify/internal/ledger"
	"docverify/internal/render"
	"docverify/internal/storage/blob"
	"docverify/internal/storage/records"
	"docverify/internal/template"
	pkgerrors "docverify/pkg/errors"
	"docverify/pkg/hashutil"
	"docverify/pkg/log"
	"docverify/pkg/metrics"
	"docverify/pkg/tracing"
)

const (
	// StatusVerified 锚定确认
	StatusVerified = "verified"
	// StatusRejected 拒绝已上链
	StatusRejected = "rejected"
	// StatusPending 锚定结果不明，等事件同步裁决
	StatusPending = "pending-confirmation"

	defaultAnchorTimeout = 30 * time.Second
	maxBulkIssue         = 100
)

// Orchestrator 提交编排器。
// 写路径的顺序是硬约束：先存内容，再查许可链，最后锚定公链；
// 存储失败在任何账本写入前中止，锚定超时落 pending 而不重试。
type Orchestrator struct {
	ledgerA   ledger.LedgerA
	ledgerB   ledger.LedgerB
	blobs     blob.Store
	records   records.Store
	templates template.Store
	renderer  render.Renderer
	logger    *log.Logger

	anchorTimeout time.Duration
	now           func() time.Time
}

// OrchestratorConfig 编排器配置
type OrchestratorConfig struct {
	AnchorTimeout time.Duration
}

// NewOrchestrator 创建编排器
func NewOrchestrator(
	a ledger.LedgerA,
	b ledger.LedgerB,
	blobs blob.Store,
	recordsStore records.Store,
	templates template.Store,
	renderer render.Renderer,
	logger *log.Logger,
	cfg OrchestratorConfig,
) *Orchestrator {
	timeout := cfg.AnchorTimeout
	if timeout <= 0 {
		timeout = defaultAnchorTimeout
	}
	return &Orchestrator{
		ledgerA:       a,
		ledgerB:       b,
		blobs:         blobs,
		records:       recordsStore,
		templates:     templates,
		renderer:      renderer,
		logger:        logger,
		anchorTimeout: timeout,
		now:           time.Now,
	}
}

// SubmitRequest 文档提交
type SubmitRequest struct {
	Document       []byte
	OrganizationID string
}

// SubmitResult 提交结论
type SubmitResult struct {
	Status       string                      `json:"status"`
	DocumentHash string                      `json:"documentHash"`
	ProofHash    string                      `json:"proofHash,omitempty"`
	Reason       string                      `json:"reason,omitempty"`
	Record       *records.VerificationRecord `json:"record,omitempty"`
}

// Submit 校验并锚定一份文档
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	start := o.now()
	ctx, span := tracing.StartSubmitSpan(ctx, hashutil.ComputeDocumentHash(req.Document), req.OrganizationID)
	defer span.End()
	res, err := o.submit(ctx, req)
	metrics.SubmitDuration.WithLabelValues(req.OrganizationID).Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		metrics.SubmitTotal.WithLabelValues("error").Inc()
	case res.Status == StatusVerified:
		metrics.SubmitTotal.WithLabelValues("verified").Inc()
	case res.Status == StatusRejected:
		metrics.SubmitTotal.WithLabelValues("rejected").Inc()
	default:
		metrics.SubmitTotal.WithLabelValues("pending").Inc()
	}
	return res, err
}

func (o *Orchestrator) submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if len(req.Document) == 0 || req.OrganizationID == "" {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "document and organizationId are required")
	}
	if err := o.gateOrganization(ctx, req.OrganizationID); err != nil {
		return nil, err
	}

	documentHash := hashutil.ComputeDocumentHash(req.Document)

	if existing, err := o.records.GetVerification(ctx, documentHash); err == nil && existing.Verified {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrDuplicate, "document %s already verified", documentHash)
	} else if err != nil && !errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, err
	}

	// 存储失败必须发生在任何账本写入之前
	blobRef, err := o.blobs.Put(ctx, req.Document)
	if err != nil {
		return nil, err
	}

	certRecs, err := o.ledgerA.QueryByHash(ctx, documentHash, req.OrganizationID)
	if err != nil && !errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, err
	}
	if len(certRecs) == 0 {
		return o.reject(ctx, documentHash, req.OrganizationID, "no matching certificate on record")
	}
	latest := certRecs[len(certRecs)-1]
	if latest.Status != ledger.StatusValid {
		return o.reject(ctx, documentHash, req.OrganizationID, "certificate status is "+latest.Status)
	}

	return o.anchor(ctx, documentHash, blobRef, req.OrganizationID, latest.CertificateID, &latest)
}

// gateOrganization 提交准入：封禁或停用的组织直接拒绝。
// 本地缓存优先，缓存没有再查公链；两边都不认识的组织放行由账本校验兜底。
func (o *Orchestrator) gateOrganization(ctx context.Context, orgID string) error {
	org, err := o.records.GetOrganization(ctx, orgID)
	if err == nil {
		if org.Banned(o.now()) {
			return pkgerrors.Wrapf(pkgerrors.ErrOrgBanned, "organization %s", orgID)
		}
		if org.Status == records.OrgStatusRejected {
			return pkgerrors.Wrapf(pkgerrors.ErrValidation, "organization %s is deactivated", orgID)
		}
		return nil
	}
	if !errors.Is(err, pkgerrors.ErrNotFound) {
		return err
	}
	chainOrg, err := o.ledgerB.GetOrganization(ctx, orgID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !chainOrg.Active {
		return pkgerrors.Wrapf(pkgerrors.ErrValidation, "organization %s is deactivated", orgID)
	}
	return nil
}

// reject 把拒绝结论锚定到公链并落本地记录
func (o *Orchestrator) reject(ctx context.Context, documentHash, orgID, reason string) (*SubmitResult, error) {
	anchorCtx, cancel := context.WithTimeout(ctx, o.anchorTimeout)
	defer cancel()
	receipt, err := o.ledgerB.Reject(anchorCtx, documentHash, orgID, reason)
	if err != nil {
		return nil, err
	}
	metrics.AnchorTotal.WithLabelValues("reject").Inc()

	rec := records.VerificationRecord{
		DocumentHash:   documentHash,
		OrganizationID: orgID,
		LedgerBTxRef:   receipt.TxRef,
		LedgerBBlock:   receipt.Block,
		Verified:       false,
		Reason:         reason,
		VerifiedAt:     receipt.AnchoredAt,
	}
	if err := o.records.UpsertVerification(ctx, rec); err != nil && !errors.Is(err, pkgerrors.ErrDuplicate) {
		o.logger.Error("写入拒绝记录失败", "documentHash", documentHash, "err", err)
	}
	o.logger.Info("文档校验被拒", "documentHash", documentHash, "organization", orgID, "reason", reason)
	return &SubmitResult{Status: StatusRejected, DocumentHash: documentHash, Reason: reason, Record: &rec}, nil
}

// anchor 锚定验证通过结论；超时结果不明时落 pending，不自动重试
func (o *Orchestrator) anchor(ctx context.Context, documentHash, blobRef, orgID, certificateID string, snapshot *ledger.Record) (*SubmitResult, error) {
	anchoredAt := o.now()
	proofHash := hashutil.ComputeProofHash(documentHash, orgID, anchoredAt)

	var snapshotJSON []byte
	if snapshot != nil {
		snapshotJSON, _ = json.Marshal(snapshot)
	}

	anchorCtx, cancel := context.WithTimeout(ctx, o.anchorTimeout)
	defer cancel()
	receipt, err := o.ledgerB.Anchor(anchorCtx, documentHash, blobRef, orgID, proofHash)
	if pkgerrors.IsAmbiguous(err) {
		metrics.AnchorTimeoutTotal.Inc()
		rec := records.VerificationRecord{
			DocumentHash:    documentHash,
			BlobRef:         blobRef,
			OrganizationID:  orgID,
			CertificateID:   certificateID,
			ProofHash:       proofHash,
			Pending:         true,
			LedgerASnapshot: snapshotJSON,
		}
		if uerr := o.records.UpsertVerification(ctx, rec); uerr != nil && !errors.Is(uerr, pkgerrors.ErrDuplicate) {
			o.logger.Error("写入 pending 记录失败", "documentHash", documentHash, "err", uerr)
		}
		o.logger.Warn("锚定确认超时，等待事件同步裁决", "documentHash", documentHash)
		return &SubmitResult{Status: StatusPending, DocumentHash: documentHash, ProofHash: proofHash, Record: &rec}, nil
	}
	if err != nil {
		return nil, err
	}
	metrics.AnchorTotal.WithLabelValues("anchor").Inc()

	rec := records.VerificationRecord{
		DocumentHash:    documentHash,
		BlobRef:         blobRef,
		OrganizationID:  orgID,
		CertificateID:   certificateID,
		ProofHash:       proofHash,
		LedgerBTxRef:    receipt.TxRef,
		LedgerBBlock:    receipt.Block,
		Verified:        true,
		LedgerASnapshot: snapshotJSON,
		VerifiedAt:      receipt.AnchoredAt,
	}
	if err := o.records.UpsertVerification(ctx, rec); err != nil && !errors.Is(err, pkgerrors.ErrDuplicate) {
		o.logger.Error("写入验证记录失败", "documentHash", documentHash, "err", err)
	}
	o.logger.Info("文档锚定完成", "documentHash", documentHash, "txRef", receipt.TxRef, "block", receipt.Block)
	return &SubmitResult{Status: StatusVerified, DocumentHash: documentHash, ProofHash: proofHash, Record: &rec}, nil
}

// IssueRequest 按模板发证
type IssueRequest struct {
	OrganizationID string
	TemplateID     string
	HolderName     string
	Data           map[string]string
}

// IssueResult 发证结论
type IssueResult struct {
	CertificateID string `json:"certificateId"`
	DocumentHash  string `json:"documentHash"`
	Status        string `json:"status"`
	Document      []byte `json:"-"`
}

// IssueFromTemplate 渲染证书、登记许可链并锚定公链。
// 证书号预先生成，贯穿渲染、登记、锚定全程。
func (o *Orchestrator) IssueFromTemplate(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	if req.OrganizationID == "" || req.TemplateID == "" || req.HolderName == "" {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "organizationId, templateId and holderName are required")
	}
	if err := o.gateOrganization(ctx, req.OrganizationID); err != nil {
		return nil, err
	}

	tmpl, err := o.templates.Get(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if tmpl.OrganizationID != req.OrganizationID {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrValidation, "template %s belongs to another organization", req.TemplateID)
	}

	certificateID, err := hashutil.NewCertificateID(o.now())
	if err != nil {
		return nil, pkgerrors.Wrap(err, "generate certificate id")
	}
	data := make(map[string]string, len(req.Data)+1)
	for k, v := range req.Data {
		data[k] = v
	}
	data["holderName"] = req.HolderName

	document, err := o.renderer.Render(ctx, *tmpl, certificateID, data)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "render certificate")
	}
	documentHash := hashutil.ComputeDocumentHash(document)

	blobRef, err := o.blobs.Put(ctx, document)
	if err != nil {
		return nil, err
	}

	ledgerRec := ledger.Record{
		CertificateID:  certificateID,
		OrganizationID: req.OrganizationID,
		DocumentHash:   documentHash,
		HolderName:     req.HolderName,
		IssueDate:      o.now().UTC().Format("2006-01-02"),
		Status:         ledger.StatusValid,
		Metadata:       req.Data,
	}
	if _, err := o.ledgerA.Submit(ctx, ledgerRec); err != nil {
		return nil, err
	}

	res, err := o.anchor(ctx, documentHash, blobRef, req.OrganizationID, certificateID, &ledgerRec)
	if err != nil {
		return nil, err
	}
	o.logger.Info("证书签发完成", "certificateId", certificateID, "documentHash", documentHash, "status", res.Status)
	return &IssueResult{
		CertificateID: certificateID,
		DocumentHash:  documentHash,
		Status:        res.Status,
		Document:      document,
	}, nil
}

// BulkIssueRow 批量发证单行结论
type BulkIssueRow struct {
	Line          int    `json:"line"`
	HolderName    string `json:"holderName"`
	CertificateID string `json:"certificateId,omitempty"`
	DocumentHash  string `json:"documentHash,omitempty"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
}

// IssueBulkCSV 按 CSV 批量发证。
// 首行是表头且必须含 holderName 列，单批最多 100 行，行间互不影响。
func (o *Orchestrator) IssueBulkCSV(ctx context.Context, orgID, templateID string, csvData []byte) ([]BulkIssueRow, error) {
	reader := csv.NewReader(strings.NewReader(string(csvData)))
	header, err := reader.Read()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "empty or unreadable CSV")
	}
	holderCol := -1
	for i, name := range header {
		if strings.TrimSpace(name) == "holderName" {
			holderCol = i
		}
	}
	if holderCol < 0 {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "CSV header must contain holderName")
	}

	var out []BulkIssueRow
	line := 1
	for {
		row, err := reader.Read()
		if err != nil {
			break
		}
		line++
		if len(out) >= maxBulkIssue {
			return nil, pkgerrors.Wrapf(pkgerrors.ErrInvalidArg, "batch exceeds %d rows", maxBulkIssue)
		}

		data := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(row) {
				data[strings.TrimSpace(name)] = strings.TrimSpace(row[i])
			}
		}
		holder := data["holderName"]
		delete(data, "holderName")

		res, err := o.IssueFromTemplate(ctx, IssueRequest{
			OrganizationID: orgID,
			TemplateID:     templateID,
			HolderName:     holder,
			Data:           data,
		})
		entry := BulkIssueRow{Line: line, HolderName: holder}
		if err != nil {
			entry.Status = "error"
			entry.Error = err.Error()
		} else {
			entry.CertificateID = res.CertificateID
			entry.DocumentHash = res.DocumentHash
			entry.Status = res.Status
		}
		out = append(out, entry)
	}
	if len(out) == 0 {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "CSV contains no data rows")
	}
	return out, nil
}
