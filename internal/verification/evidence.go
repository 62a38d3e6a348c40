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

	"docverify/internal/ledger"
	pkgerrors "docverify/pkg/errors"
	"docverify/pkg/hashutil"
	"docverify/pkg/proof"
	"docverify/pkg/signature"
)

// ExportEvidence 导出某张证书的查验证据包。
// 包内记录与锚定均为导出时刻的实时读取，不走任何缓存；
// signer 为空时导出未签名的包。
func (v *PublicVerifier) ExportEvidence(ctx context.Context, certificateID string, signer *signature.Signer) ([]byte, error) {
	if !hashutil.IsValidCertificateID(certificateID) {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "malformed certificate id")
	}

	docHash, err := v.resolveCertificate(ctx, certificateID)
	if err != nil {
		return nil, err
	}

	rec, err := v.ledgerA.QueryByID(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	anchor, err := v.ledgerB.GetAnchor(ctx, docHash)
	if err != nil {
		return nil, err
	}
	consistency := CheckConsistency(rec, anchor)

	history, err := v.ledgerA.History(ctx, certificateID)
	if err != nil {
		v.logger.Warn("导出证据包时读取证书历史失败", "certificateId", certificateID, "err", err)
		history = []ledger.Record{*rec}
	}

	input := proof.ExportInput{
		DocumentHash:   docHash,
		CertificateID:  certificateID,
		OrganizationID: rec.OrganizationID,
		ProofHash:      anchor.ProofHash,
		AnchorTxRef:    anchor.TxRef,
		AnchorBlock:    anchor.Block,
		Consistent:     consistency.Consistent,
		Record:         rec,
		Anchor:         anchor,
		History:        history,
		Consistency:    consistency,
	}

	// 本地留存的原始文档是可选附件，拿不到不阻断导出
	if localRec, err := v.records.GetVerificationByCertificateID(ctx, certificateID); err == nil && localRec.BlobRef != "" {
		if data, err := v.blobs.Get(ctx, localRec.BlobRef); err == nil {
			input.Document = data
		} else if !errors.Is(err, pkgerrors.ErrNotFound) {
			v.logger.Warn("导出证据包时读取原始文档失败", "blobRef", localRec.BlobRef, "err", err)
		}
	}

	return proof.ExportEvidenceZip(ctx, input, signer, proof.ExportOptions{})
}
