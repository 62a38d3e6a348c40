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

// Package http HTTP 处理器与路由
package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"

	"docverify/internal/eventsync"
	"docverify/internal/ledger"
	"docverify/internal/storage/records"
	"docverify/internal/template"
	"docverify/internal/verification"
	pkgerrors "docverify/pkg/errors"
	"docverify/pkg/log"
	"docverify/pkg/metrics"
	"docverify/pkg/signature"
)

// Handler HTTP 处理器
type Handler struct {
	orch      *verification.Orchestrator
	verifier  *verification.PublicVerifier
	templates template.Store
	ledgerB   ledger.LedgerB
	records   records.Store
	syncStore eventsync.Store
	signer    *signature.Signer
	logger    *log.Logger
}

// NewHandler 创建 HTTP 处理器
func NewHandler(
	orch *verification.Orchestrator,
	verifier *verification.PublicVerifier,
	templates template.Store,
	ledgerB ledger.LedgerB,
	recordsStore records.Store,
	syncStore eventsync.Store,
	signer *signature.Signer,
	logger *log.Logger,
) *Handler {
	return &Handler{
		orch:      orch,
		verifier:  verifier,
		templates: templates,
		ledgerB:   ledgerB,
		records:   recordsStore,
		syncStore: syncStore,
		signer:    signer,
		logger:    logger,
	}
}

// respondError 按错误类别映射状态码
func respondError(c *app.RequestContext, err error) {
	status := consts.StatusInternalServerError
	switch {
	case errors.Is(err, pkgerrors.ErrInvalidArg), errors.Is(err, pkgerrors.ErrValidation):
		status = consts.StatusBadRequest
	case errors.Is(err, pkgerrors.ErrNotFound):
		status = consts.StatusNotFound
	case errors.Is(err, pkgerrors.ErrDuplicate):
		status = consts.StatusConflict
	case errors.Is(err, pkgerrors.ErrOrgBanned):
		status = consts.StatusForbidden
	case errors.Is(err, pkgerrors.ErrLedgerTimeout):
		status = consts.StatusAccepted
	case errors.Is(err, pkgerrors.ErrStorage):
		status = consts.StatusServiceUnavailable
	}
	c.JSON(status, map[string]string{"error": err.Error()})
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"service":   "docverify-api",
	})
}

// Metrics 暴露 Prometheus 指标
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		respondError(c, err)
		return
	}
	c.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

// SubmitDocument 机构提交文档校验并锚定
func (h *Handler) SubmitDocument(ctx context.Context, c *app.RequestContext) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "file is required"})
		return
	}
	orgID := c.PostForm("organizationId")
	if orgID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "organizationId is required"})
		return
	}
	f, err := file.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := h.orch.Submit(ctx, verification.SubmitRequest{Document: data, OrganizationID: orgID})
	if err != nil {
		respondError(c, err)
		return
	}
	status := consts.StatusOK
	if res.Status == verification.StatusPending {
		status = consts.StatusAccepted
	}
	c.JSON(status, res)
}

// issueBody 发证请求体
type issueBody struct {
	OrganizationID string            `json:"organizationId"`
	TemplateID     string            `json:"templateId"`
	HolderName     string            `json:"holderName"`
	Data           map[string]string `json:"data"`
}

// IssueCertificate 按模板发证
func (h *Handler) IssueCertificate(ctx context.Context, c *app.RequestContext) {
	var body issueBody
	if err := c.BindAndValidate(&body); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	res, err := h.orch.IssueFromTemplate(ctx, verification.IssueRequest{
		OrganizationID: body.OrganizationID,
		TemplateID:     body.TemplateID,
		HolderName:     body.HolderName,
		Data:           body.Data,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(consts.StatusCreated, res)
}

// IssueBulk 按 CSV 批量发证
func (h *Handler) IssueBulk(ctx context.Context, c *app.RequestContext) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "CSV file is required"})
		return
	}
	orgID := c.PostForm("organizationId")
	templateID := c.PostForm("templateId")
	if orgID == "" || templateID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "organizationId and templateId are required"})
		return
	}
	f, err := file.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, err)
		return
	}

	rows, err := h.orch.IssueBulkCSV(ctx, orgID, templateID, data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"rows": rows, "total": len(rows)})
}

// VerifyByHash 公开按哈希查验
func (h *Handler) VerifyByHash(ctx context.Context, c *app.RequestContext) {
	res, err := h.verifier.VerifyByHash(ctx, c.Param("hash"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(consts.StatusOK, res)
}

// bulkVerifyBody 批量查验请求体
type bulkVerifyBody struct {
	Hashes []string `json:"hashes"`
}

// VerifyBulk 公开批量查验
func (h *Handler) VerifyBulk(ctx context.Context, c *app.RequestContext) {
	var body bulkVerifyBody
	if err := c.BindAndValidate(&body); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	entries, err := h.verifier.VerifyBulk(ctx, body.Hashes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"results": entries, "total": len(entries)})
}

// VerifyByCertificateID 公开按证书号查验
func (h *Handler) VerifyByCertificateID(ctx context.Context, c *app.RequestContext) {
	res, err := h.verifier.VerifyByCertificateID(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(consts.StatusOK, res)
}

// CertificateHistory 证书链上版本历史
func (h *Handler) CertificateHistory(ctx context.Context, c *app.RequestContext) {
	hist, err := h.verifier.History(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(consts.StatusOK, hist)
}

// DownloadCertificate 按证书号下载原始文档
func (h *Handler) DownloadCertificate(ctx context.Context, c *app.RequestContext) {
	data, err := h.verifier.Download(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Response.Header.Set("Content-Disposition", "attachment; filename="+c.Param("id"))
	c.Data(consts.StatusOK, "application/octet-stream", data)
}

// ExportEvidence 导出证书的查验证据包（ZIP）
func (h *Handler) ExportEvidence(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	data, err := h.verifier.ExportEvidence(ctx, id, h.signer)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Response.Header.Set("Content-Disposition", "attachment; filename="+id+"-evidence.zip")
	c.Data(consts.StatusOK, "application/zip", data)
}

// registerOrgBody 组织注册请求体
type registerOrgBody struct {
	OrgID         string `json:"orgId"`
	Name          string `json:"name"`
	OrgType       string `json:"orgType"`
	WalletAddress string `json:"walletAddress"`
}

// RegisterOrganization 把组织注册到公链，事件同步落本地缓存
func (h *Handler) RegisterOrganization(ctx context.Context, c *app.RequestContext) {
	var body registerOrgBody
	if err := c.BindAndValidate(&body); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	if body.OrgID == "" {
		body.OrgID = "org-" + uuid.New().String()
	}
	receipt, err := h.ledgerB.RegisterOrganization(ctx, ledger.Organization{
		OrgID:         body.OrgID,
		Name:          body.Name,
		OrgType:       body.OrgType,
		WalletAddress: body.WalletAddress,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(consts.StatusCreated, map[string]interface{}{
		"orgId":   body.OrgID,
		"txRef":   receipt.TxRef,
		"block":   receipt.Block,
		"chainAt": receipt.AnchoredAt,
	})
}

// GetOrganization 查组织（公链实时）
func (h *Handler) GetOrganization(ctx context.Context, c *app.RequestContext) {
	org, err := h.ledgerB.GetOrganization(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(consts.StatusOK, org)
}

// ListOrganizations 列出本地同步的组织
func (h *Handler) ListOrganizations(ctx context.Context, c *app.RequestContext) {
	orgs, err := h.records.ListOrganizations(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"organizations": orgs,
		"total":         len(orgs),
	})
}

// banOrgBody 封禁请求体
type banOrgBody struct {
	Banned    bool   `json:"banned"`
	ExpiresAt string `json:"expiresAt"` // RFC3339，封禁时为空表示永久
}

// BanOrganization 管理操作：封禁或解封组织。
// 封禁是本地治理状态，不写公链；未过期的封禁会挡掉该组织的提交。
func (h *Handler) BanOrganization(ctx context.Context, c *app.RequestContext) {
	var body banOrgBody
	if err := c.BindAndValidate(&body); err != nil {
		respondError(c, pkgerrors.Wrap(pkgerrors.ErrInvalidArg, err.Error()))
		return
	}
	orgID := c.Param("id")
	status := records.OrgStatusVerified
	var expiresAt *time.Time
	if body.Banned {
		status = records.OrgStatusBanned
		if body.ExpiresAt != "" {
			ts, err := time.Parse(time.RFC3339, body.ExpiresAt)
			if err != nil {
				respondError(c, pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "expiresAt must be RFC3339"))
				return
			}
			expiresAt = &ts
		}
	}
	if err := h.records.SetOrganizationBan(ctx, orgID, status, expiresAt); err != nil {
		respondError(c, err)
		return
	}
	h.logger.Info("组织封禁状态更新", "orgId", orgID, "status", status)
	org, err := h.records.GetOrganization(ctx, orgID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(consts.StatusOK, org)
}

// templateBody 模板请求体
type templateBody struct {
	ID             string   `json:"id"`
	OrganizationID string   `json:"organizationId"`
	Name           string   `json:"name"`
	Title          string   `json:"title"`
	Fields         []string `json:"fields"`
}

// CreateTemplate 创建证书模板
func (h *Handler) CreateTemplate(ctx context.Context, c *app.RequestContext) {
	var body templateBody
	if err := c.BindAndValidate(&body); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	if body.ID == "" {
		body.ID = "tmpl-" + uuid.New().String()
	}
	tmpl := template.Template{
		ID:             body.ID,
		OrganizationID: body.OrganizationID,
		Name:           body.Name,
		Title:          body.Title,
		Fields:         body.Fields,
	}
	if err := h.templates.Create(ctx, tmpl); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(consts.StatusCreated, tmpl)
}

// GetTemplate 查模板
func (h *Handler) GetTemplate(ctx context.Context, c *app.RequestContext) {
	tmpl, err := h.templates.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(consts.StatusOK, tmpl)
}

// ListTemplates 列组织模板
func (h *Handler) ListTemplates(ctx context.Context, c *app.RequestContext) {
	orgID := c.Query("organizationId")
	if orgID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "organizationId is required"})
		return
	}
	tmpls, err := h.templates.ListByOrganization(ctx, orgID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"templates": tmpls, "total": len(tmpls)})
}

// SyncStatus 账本事件同步进度
func (h *Handler) SyncStatus(ctx context.Context, c *app.RequestContext) {
	sources := []string{ledger.SourceLedgerA, ledger.SourceLedgerB}
	out := make([]eventsync.Checkpoint, 0, len(sources))
	for _, src := range sources {
		cp, err := h.syncStore.GetCheckpoint(ctx, src)
		if err != nil {
			respondError(c, err)
			return
		}
		out = append(out, cp)
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"sources": out})
}
