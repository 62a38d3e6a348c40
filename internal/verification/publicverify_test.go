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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docverify/internal/ledger"
	"docverify/internal/storage/cache"
	pkgerrors "docverify/pkg/errors"
	"docverify/pkg/hashutil"
	"docverify/pkg/log"
)

func newVerifier(t *testing.T, f *fixture) *PublicVerifier {
	t.Helper()
	logger, err := log.NewLogger(nil)
	require.NoError(t, err)
	return NewPublicVerifier(f.ledgerA, f.ledgerB, f.records, f.blobs, cache.NewMemoryCache(time.Minute), logger)
}

func TestVerifyByHash_Verified(t *testing.T) {
	f := newFixture(t)
	v := newVerifier(t, f)
	ctx := context.Background()
	doc := []byte("genuine diploma")
	certID := f.issueOnLedgerA(t, doc, "org-1")

	_, err := f.orch.Submit(ctx, SubmitRequest{Document: doc, OrganizationID: "org-1"})
	require.NoError(t, err)

	res, err := v.VerifyByHash(ctx, hashutil.ComputeDocumentHash(doc))
	require.NoError(t, err)
	assert.Equal(t, VerdictVerified, res.Verdict)
	assert.Equal(t, certID, res.CertificateID)
	assert.Equal(t, "org-1", res.OrganizationID)
	assert.True(t, res.Consistency.Consistent)
	assert.NotEmpty(t, res.AnchorTxRef)

	// 大小写与前缀不影响查验
	res, err = v.VerifyByHash(ctx, "0x"+strings.ToUpper(hashutil.ComputeDocumentHash(doc)))
	require.NoError(t, err)
	assert.Equal(t, VerdictVerified, res.Verdict)
}

func TestVerifyByHash_NotAnchored(t *testing.T) {
	f := newFixture(t)
	v := newVerifier(t, f)

	res, err := v.VerifyByHash(context.Background(),
		"00000000000000000000000000000000000000000000000000000000000000aa")
	require.NoError(t, err)
	assert.Equal(t, VerdictNotVerified, res.Verdict)
	assert.NotEmpty(t, res.Reason)
}

func TestVerifyByHash_MalformedHash(t *testing.T) {
	f := newFixture(t)
	v := newVerifier(t, f)

	_, err := v.VerifyByHash(context.Background(), "not a hash")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidArg)
}

func TestVerifyByHash_RejectedDocument(t *testing.T) {
	f := newFixture(t)
	v := newVerifier(t, f)
	ctx := context.Background()
	doc := []byte("forged diploma for verify")

	_, err := f.orch.Submit(ctx, SubmitRequest{Document: doc, OrganizationID: "org-1"})
	require.NoError(t, err)

	res, err := v.VerifyByHash(ctx, hashutil.ComputeDocumentHash(doc))
	require.NoError(t, err)
	assert.Equal(t, VerdictNotVerified, res.Verdict)
	assert.NotEmpty(t, res.Reason)
}

func TestVerifyByHash_InconsistentLedgers(t *testing.T) {
	f := newFixture(t)
	v := newVerifier(t, f)
	ctx := context.Background()

	// 公链有锚定，许可链却没有对应证书
	hash := "d6a8f2c5e0b3471996a5d3f7c1e5b9d4a0f5c8e1b4d7f0a3c6e9f2b5d8e1f4a7"
	_, err := f.ledgerB.Anchor(ctx, hash, "mem-ref", "org-1", "proof")
	require.NoError(t, err)

	res, err := v.VerifyByHash(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, VerdictInconsistent, res.Verdict)
}

func TestVerifyByHash_RevokedAfterAnchoring(t *testing.T) {
	f := newFixture(t)
	v := newVerifier(t, f)
	ctx := context.Background()
	doc := []byte("later revoked diploma")
	certID := f.issueOnLedgerA(t, doc, "org-1")

	_, err := f.orch.Submit(ctx, SubmitRequest{Document: doc, OrganizationID: "org-1"})
	require.NoError(t, err)

	_, err = f.ledgerA.UpdateStatus(ctx, certID, ledger.StatusRevoked, "degree rescinded")
	require.NoError(t, err)

	// 实时查验看到的是撤销后的状态，缓存不会遮蔽
	res, err := v.VerifyByHash(ctx, hashutil.ComputeDocumentHash(doc))
	require.NoError(t, err)
	assert.Equal(t, VerdictNotVerified, res.Verdict)
	assert.Contains(t, res.Reason, ledger.StatusRevoked)
}

func TestVerifyByCertificateID(t *testing.T) {
	f := newFixture(t)
	v := newVerifier(t, f)
	ctx := context.Background()
	doc := []byte("diploma looked up by id")
	certID := f.issueOnLedgerA(t, doc, "org-1")

	_, err := f.orch.Submit(ctx, SubmitRequest{Document: doc, OrganizationID: "org-1"})
	require.NoError(t, err)

	res, err := v.VerifyByCertificateID(ctx, certID)
	require.NoError(t, err)
	assert.Equal(t, VerdictVerified, res.Verdict)
	assert.Equal(t, hashutil.ComputeDocumentHash(doc), res.DocumentHash)

	_, err = v.VerifyByCertificateID(ctx, "CERT-BAD")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidArg)

	_, err = v.VerifyByCertificateID(ctx, "CERT-20260829-FFFFFF")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestVerifyBulk(t *testing.T) {
	f := newFixture(t)
	v := newVerifier(t, f)
	ctx := context.Background()
	doc := []byte("bulk diploma")
	f.issueOnLedgerA(t, doc, "org-1")
	_, err := f.orch.Submit(ctx, SubmitRequest{Document: doc, OrganizationID: "org-1"})
	require.NoError(t, err)

	hashes := []string{
		hashutil.ComputeDocumentHash(doc),
		"00000000000000000000000000000000000000000000000000000000000000bb",
		"garbage",
	}
	entries, err := v.VerifyBulk(ctx, hashes)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, VerdictVerified, entries[0].Result.Verdict)
	assert.Equal(t, VerdictNotVerified, entries[1].Result.Verdict)
	assert.NotEmpty(t, entries[2].Error)

	// 超过单批上限整体拒绝
	big := make([]string, maxBulkVerify+1)
	for i := range big {
		big[i] = hashes[0]
	}
	_, err = v.VerifyBulk(ctx, big)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidArg)
}

func TestDownload(t *testing.T) {
	f := newFixture(t)
	v := newVerifier(t, f)
	ctx := context.Background()
	doc := []byte("downloadable diploma")
	certID := f.issueOnLedgerA(t, doc, "org-1")

	_, err := f.orch.Submit(ctx, SubmitRequest{Document: doc, OrganizationID: "org-1"})
	require.NoError(t, err)

	got, err := v.Download(ctx, certID)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	_, err = v.Download(ctx, "CERT-20260829-ABCDEF")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	v := newVerifier(t, f)
	ctx := context.Background()
	doc := []byte("history diploma")
	certID := f.issueOnLedgerA(t, doc, "org-1")

	_, err := f.ledgerA.UpdateStatus(ctx, certID, ledger.StatusSuspended, "pending review")
	require.NoError(t, err)

	hist, err := v.History(ctx, certID)
	require.NoError(t, err)
	require.Len(t, hist.Versions, 2)
	assert.Equal(t, ledger.StatusValid, hist.Versions[0].Status)
	assert.Equal(t, ledger.StatusSuspended, hist.Versions[1].Status)
	assert.Nil(t, hist.Anchor, "certificate was never anchored")
	assert.Equal(t, hashutil.ComputeDocumentHash(doc), hist.DocumentHash)
}
