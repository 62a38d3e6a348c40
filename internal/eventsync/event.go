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

// Package eventsync 账本事件同步。
// 两条账本的事件在此统一落日志、幂等去重、派发到本地缓存，
// 并以单调检查点记住各源同步进度。
package eventsync

import (
	"encoding/json"
	"fmt"
	"time"

	"docverify/internal/ledger"
	pkgerrors "docverify/pkg/errors"
	"docverify/pkg/hashutil"
)

// LogEntry 事件日志条目；(Source, TxRef, Name) 是幂等键
type LogEntry struct {
	Source     string    `json:"source"`
	Name       string    `json:"name"`
	TxRef      string    `json:"txRef"`
	Block      uint64    `json:"block"`
	Payload    []byte    `json:"payload"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// DocumentVerifiedPayload LedgerB 锚定确认事件
type DocumentVerifiedPayload struct {
	DocumentHash   string `json:"documentHash"`
	OrganizationID string `json:"organizationId"`
	BlobRef        string `json:"blobRef"`
	ProofHash      string `json:"proofHash"`
	Timestamp      int64  `json:"timestamp"`
}

// DocumentRejectedPayload LedgerB 拒绝事件
type DocumentRejectedPayload struct {
	DocumentHash   string `json:"documentHash"`
	OrganizationID string `json:"organizationId"`
	Reason         string `json:"reason"`
	Timestamp      int64  `json:"timestamp"`
}

// OrganizationRegisteredPayload LedgerB 组织注册事件
type OrganizationRegisteredPayload struct {
	OrgID         string `json:"orgId"`
	WalletAddress string `json:"walletAddress"`
	OrgType       string `json:"orgType"`
	Name          string `json:"name"`
	Timestamp     int64  `json:"timestamp"`
}

// OrganizationDeactivatedPayload LedgerB 组织停用事件
type OrganizationDeactivatedPayload struct {
	OrgID         string `json:"orgId"`
	WalletAddress string `json:"walletAddress"`
	Timestamp     int64  `json:"timestamp"`
}

// CertificateIssuedPayload LedgerA 发证事件
type CertificateIssuedPayload struct {
	CertificateID  string `json:"certificateId"`
	OrganizationID string `json:"organizationId"`
	DocumentHash   string `json:"documentHash"`
	Timestamp      int64  `json:"timestamp"`
}

// CertificateStatusUpdatedPayload LedgerA 证书状态变更事件
type CertificateStatusUpdatedPayload struct {
	CertificateID  string `json:"certificateId"`
	OrganizationID string `json:"organizationId"`
	DocumentHash   string `json:"documentHash"`
	Status         string `json:"status"`
	Reason         string `json:"reason"`
	Timestamp      int64  `json:"timestamp"`
}

// DecodePayload 按事件名解码并校验载荷。
// 校验失败返回包裹 ErrValidation 的错误，事件入日志但不派发。
func DecodePayload(name string, raw []byte) (interface{}, error) {
	switch name {
	case ledger.EventDocumentVerified:
		var p DocumentVerifiedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.ErrValidation, err.Error())
		}
		if !hashutil.IsValid(p.DocumentHash) || p.OrganizationID == "" {
			return nil, pkgerrors.Wrapf(pkgerrors.ErrValidation, "%s payload", name)
		}
		return &p, nil
	case ledger.EventDocumentRejected:
		var p DocumentRejectedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.ErrValidation, err.Error())
		}
		if !hashutil.IsValid(p.DocumentHash) || p.OrganizationID == "" {
			return nil, pkgerrors.Wrapf(pkgerrors.ErrValidation, "%s payload", name)
		}
		return &p, nil
	case ledger.EventOrganizationRegistered:
		var p OrganizationRegisteredPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.ErrValidation, err.Error())
		}
		if p.OrgID == "" || p.WalletAddress == "" {
			return nil, pkgerrors.Wrapf(pkgerrors.ErrValidation, "%s payload", name)
		}
		return &p, nil
	case ledger.EventOrganizationDeactivated:
		var p OrganizationDeactivatedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.ErrValidation, err.Error())
		}
		if p.OrgID == "" {
			return nil, pkgerrors.Wrapf(pkgerrors.ErrValidation, "%s payload", name)
		}
		return &p, nil
	case ledger.EventCertificateIssued:
		var p CertificateIssuedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.ErrValidation, err.Error())
		}
		if p.CertificateID == "" || !hashutil.IsValid(p.DocumentHash) {
			return nil, pkgerrors.Wrapf(pkgerrors.ErrValidation, "%s payload", name)
		}
		return &p, nil
	case ledger.EventCertificateStatusUpdated:
		var p CertificateStatusUpdatedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.ErrValidation, err.Error())
		}
		if p.CertificateID == "" || p.Status == "" {
			return nil, pkgerrors.Wrapf(pkgerrors.ErrValidation, "%s payload", name)
		}
		return &p, nil
	default:
		return nil, pkgerrors.Wrapf(pkgerrors.ErrValidation, "未知事件 %s", name)
	}
}

// Key 幂等键的字符串形式，日志与调试用
func (e LogEntry) Key() string {
	return fmt.Sprintf("%s/%s/%s", e.Source, e.TxRef, e.Name)
}
