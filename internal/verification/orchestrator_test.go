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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docverify/internal/ledger"
	"docverify/internal/render"
	"docverify/internal/storage/blob"
	"docverify/internal/storage/records"
	"docverify/internal/template"
	pkgerrors "docverify/pkg/errors"
	"docverify/pkg/hashutil"
	"docverify/pkg/log"
)

type fixture struct {
	orch    *Orchestrator
	ledgerA *ledger.MemoryLedgerA
	ledgerB *ledger.MemoryLedgerB
	blobs   *blob.MemoryStore
	records *records.MemoryStore
	tmpls   *template.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, err := log.NewLogger(nil)
	require.NoError(t, err)
	f := &fixture{
		ledgerA: ledger.NewMemoryLedgerA(),
		ledgerB: ledger.NewMemoryLedgerB(),
		blobs:   blob.NewMemoryStore(),
		records: records.NewMemoryStore(),
		tmpls:   template.NewMemoryStore(),
	}
	f.orch = NewOrchestrator(
		f.ledgerA, f.ledgerB, f.blobs, f.records, f.tmpls,
		render.NewTextRenderer(), logger,
		OrchestratorConfig{AnchorTimeout: time.Second},
	)
	return f
}

// issueOnLedgerA 直接在许可链登记一份证书，模拟既有发证
func (f *fixture) issueOnLedgerA(t *testing.T, doc []byte, orgID string) string {
	t.Helper()
	certID, err := hashutil.NewCertificateID(time.Now())
	require.NoError(t, err)
	_, err = f.ledgerA.Submit(context.Background(), ledger.Record{
		CertificateID:  certID,
		OrganizationID: orgID,
		DocumentHash:   hashutil.ComputeDocumentHash(doc),
		HolderName:     "Jordan Lee",
		IssueDate:      "2026-08-29",
		Status:         ledger.StatusValid,
	})
	require.NoError(t, err)
	return certID
}

func TestSubmit_VerifiedEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := []byte("bachelor of science diploma")
	certID := f.issueOnLedgerA(t, doc, "org-1")

	res, err := f.orch.Submit(ctx, SubmitRequest{Document: doc, OrganizationID: "org-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusVerified, res.Status)
	assert.Equal(t, hashutil.ComputeDocumentHash(doc), res.DocumentHash)
	assert.NotEmpty(t, res.ProofHash)

	// 本地记录落库且指向正确的证书
	rec, err := f.records.GetVerification(ctx, res.DocumentHash)
	require.NoError(t, err)
	assert.True(t, rec.Verified)
	assert.False(t, rec.Pending)
	assert.Equal(t, certID, rec.CertificateID)
	assert.NotEmpty(t, rec.LedgerASnapshot)

	// 公链锚定存在且 verified
	anchor, err := f.ledgerB.GetAnchor(ctx, res.DocumentHash)
	require.NoError(t, err)
	assert.True(t, anchor.Verified)
	assert.Equal(t, res.ProofHash, anchor.ProofHash)
}

func TestSubmit_StorageFailureAbortsBeforeLedgerWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := []byte("some diploma")
	f.issueOnLedgerA(t, doc, "org-1")

	f.blobs.SetPutFailure(pkgerrors.Wrap(pkgerrors.ErrStorage, "node down"))

	_, err := f.orch.Submit(ctx, SubmitRequest{Document: doc, OrganizationID: "org-1"})
	require.ErrorIs(t, err, pkgerrors.ErrStorage)

	// 两条账本都不得有写入痕迹
	_, err = f.ledgerB.GetAnchor(ctx, hashutil.ComputeDocumentHash(doc))
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
	_, err = f.records.GetVerification(ctx, hashutil.ComputeDocumentHash(doc))
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestSubmit_UnknownDocumentGetsAnchoredRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := []byte("forged diploma")

	res, err := f.orch.Submit(ctx, SubmitRequest{Document: doc, OrganizationID: "org-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, res.Status)
	assert.NotEmpty(t, res.Reason)

	// 拒绝同样上链，不只留本地日志
	anchor, err := f.ledgerB.GetAnchor(ctx, res.DocumentHash)
	require.NoError(t, err)
	assert.False(t, anchor.Verified)

	rec, err := f.records.GetVerification(ctx, res.DocumentHash)
	require.NoError(t, err)
	assert.False(t, rec.Verified)
}

func TestSubmit_RevokedCertificateRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := []byte("revoked diploma")
	certID := f.issueOnLedgerA(t, doc, "org-1")

	_, err := f.ledgerA.UpdateStatus(ctx, certID, ledger.StatusRevoked, "issued in error")
	require.NoError(t, err)

	res, err := f.orch.Submit(ctx, SubmitRequest{Document: doc, OrganizationID: "org-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, res.Status)
	assert.Contains(t, res.Reason, ledger.StatusRevoked)
}

func TestSubmit_AnchorTimeoutLeavesPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := []byte("slow anchor diploma")
	f.issueOnLedgerA(t, doc, "org-1")

	f.ledgerB.SetAnchorDelay(5 * time.Second)
	f.orch.anchorTimeout = 20 * time.Millisecond

	res, err := f.orch.Submit(ctx, SubmitRequest{Document: doc, OrganizationID: "org-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)

	rec, err := f.records.GetVerification(ctx, res.DocumentHash)
	require.NoError(t, err)
	assert.True(t, rec.Pending)
	assert.False(t, rec.Verified)
	assert.Empty(t, rec.LedgerBTxRef, "pending record must not claim a transaction")
}

func TestSubmit_ExplicitAnchorFailurePropagates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := []byte("failing anchor diploma")
	f.issueOnLedgerA(t, doc, "org-1")

	f.ledgerB.SetAnchorFailure(errors.New("relayer rejected tx"))

	_, err := f.orch.Submit(ctx, SubmitRequest{Document: doc, OrganizationID: "org-1"})
	require.Error(t, err)

	// 明确失败不落 pending
	rec, gerr := f.records.GetVerification(ctx, hashutil.ComputeDocumentHash(doc))
	if gerr == nil {
		assert.False(t, rec.Pending)
	}
}

func TestSubmit_DuplicateVerifiedRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := []byte("already verified diploma")
	f.issueOnLedgerA(t, doc, "org-1")

	_, err := f.orch.Submit(ctx, SubmitRequest{Document: doc, OrganizationID: "org-1"})
	require.NoError(t, err)

	_, err = f.orch.Submit(ctx, SubmitRequest{Document: doc, OrganizationID: "org-1"})
	assert.ErrorIs(t, err, pkgerrors.ErrDuplicate)
}

func TestSubmit_BannedOrganizationBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := []byte("diploma from banned org")
	f.issueOnLedgerA(t, doc, "org-banned")

	exp := time.Now().Add(time.Hour)
	require.NoError(t, f.records.UpsertOrganization(ctx, records.Organization{
		OrgID:        "org-banned",
		Status:       records.OrgStatusBanned,
		BanExpiresAt: &exp,
	}))

	_, err := f.orch.Submit(ctx, SubmitRequest{Document: doc, OrganizationID: "org-banned"})
	assert.ErrorIs(t, err, pkgerrors.ErrOrgBanned)

	// 封禁到期后放行
	past := time.Now().Add(-time.Hour)
	require.NoError(t, f.records.UpsertOrganization(ctx, records.Organization{
		OrgID:        "org-banned",
		Status:       records.OrgStatusBanned,
		BanExpiresAt: &past,
	}))
	res, err := f.orch.Submit(ctx, SubmitRequest{Document: doc, OrganizationID: "org-banned"})
	require.NoError(t, err)
	assert.Equal(t, StatusVerified, res.Status)
}

func TestIssueFromTemplate_ThreadsCertificateID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.tmpls.Create(ctx, template.Template{
		ID:             "tmpl-1",
		OrganizationID: "org-1",
		Name:           "degree",
		Title:          "Bachelor of Science",
		Fields:         []string{"holderName", "major"},
	}))

	res, err := f.orch.IssueFromTemplate(ctx, IssueRequest{
		OrganizationID: "org-1",
		TemplateID:     "tmpl-1",
		HolderName:     "Jordan Lee",
		Data:           map[string]string{"major": "Physics"},
	})
	require.NoError(t, err)
	assert.True(t, hashutil.IsValidCertificateID(res.CertificateID))
	assert.Equal(t, StatusVerified, res.Status)
	assert.Equal(t, hashutil.ComputeDocumentHash(res.Document), res.DocumentHash)

	// 证书号贯穿许可链与本地记录
	chainRec, err := f.ledgerA.QueryByID(ctx, res.CertificateID)
	require.NoError(t, err)
	assert.Equal(t, res.DocumentHash, chainRec.DocumentHash)

	localRec, err := f.records.GetVerificationByCertificateID(ctx, res.CertificateID)
	require.NoError(t, err)
	assert.Equal(t, res.DocumentHash, localRec.DocumentHash)

	// 发证路径已落 verified 记录，重复提交被唯一约束拦下
	_, err = f.orch.Submit(ctx, SubmitRequest{Document: res.Document, OrganizationID: "org-1"})
	assert.ErrorIs(t, err, pkgerrors.ErrDuplicate)
}

func TestIssueFromTemplate_WrongOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.tmpls.Create(ctx, template.Template{
		ID:             "tmpl-1",
		OrganizationID: "org-1",
		Fields:         []string{"holderName"},
	}))

	_, err := f.orch.IssueFromTemplate(ctx, IssueRequest{
		OrganizationID: "org-2",
		TemplateID:     "tmpl-1",
		HolderName:     "X",
	})
	assert.ErrorIs(t, err, pkgerrors.ErrValidation)
}

func TestIssueBulkCSV(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.tmpls.Create(ctx, template.Template{
		ID:             "tmpl-1",
		OrganizationID: "org-1",
		Title:          "Diploma",
		Fields:         []string{"holderName", "major"},
	}))

	csvData := []byte("holderName,major\nAlice,Math\nBob,History\n")
	rows, err := f.orch.IssueBulkCSV(ctx, "org-1", "tmpl-1", csvData)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, StatusVerified, row.Status)
		assert.True(t, hashutil.IsValidCertificateID(row.CertificateID))
	}
	assert.NotEqual(t, rows[0].DocumentHash, rows[1].DocumentHash)

	// 缺 holderName 列直接拒绝
	_, err = f.orch.IssueBulkCSV(ctx, "org-1", "tmpl-1", []byte("name\nAlice\n"))
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidArg)
}
