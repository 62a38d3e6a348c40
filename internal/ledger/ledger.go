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

// Package ledger 定义两条账本的能力接口。
// 编排器与校验器只依赖这里的类型，不接触账本原生响应结构。
package ledger

import (
	"context"
	"time"
)

// 事件来源标识，检查点表按此为键
const (
	SourceLedgerA = "ledger_a"
	SourceLedgerB = "ledger_b"
)

// 账本事件名（LedgerB 合约事件 + LedgerA 链码事件）
const (
	EventOrganizationRegistered  = "organization-registered"
	EventDocumentVerified        = "document-verified"
	EventDocumentRejected        = "document-rejected"
	EventOrganizationDeactivated = "organization-deactivated"
	EventCertificateIssued       = "certificate-issued"
	EventCertificateStatusUpdated = "certificate-status-updated"
)

// 证书状态（LedgerA）
const (
	StatusValid   = "valid"
	StatusRevoked = "revoked"
	StatusSuspended = "suspended"
)

// Record LedgerA 证书记录（组织侧权威数据）
type Record struct {
	CertificateID  string            `json:"certificateId"`
	OrganizationID string            `json:"organizationId"`
	DocumentHash   string            `json:"documentHash"` // 裸 hex，小写
	HolderName     string            `json:"holderName"`
	IssueDate      string            `json:"issueDate"` // ISO-8601 日期
	Status         string            `json:"status"`
	StatusReason   string            `json:"statusReason,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	TxRef          string            `json:"txRef,omitempty"`
	UpdatedAt      time.Time         `json:"updatedAt,omitempty"`
}

// Anchor LedgerB 锚定记录（公开可查的存在性证明）
type Anchor struct {
	DocumentHash   string    `json:"documentHash"` // 0x 前缀
	BlobRef        string    `json:"blobRef"`
	OrganizationID string    `json:"organizationId"`
	ProofHash      string    `json:"proofHash"`
	TxRef          string    `json:"txRef"`
	Block          uint64    `json:"block"`
	AnchoredAt     time.Time `json:"anchoredAt"`
	Verified       bool      `json:"verified"`
	Reason         string    `json:"reason,omitempty"` // Verified=false 时的拒绝原因
}

// Organization LedgerB 注册组织
type Organization struct {
	OrgID         string    `json:"orgId"`
	Name          string    `json:"name"`
	OrgType       string    `json:"orgType"` // institutional | governmental | private
	WalletAddress string    `json:"walletAddress"`
	MetadataRef   string    `json:"metadataRef,omitempty"`
	Active        bool      `json:"active"`
	RegisteredAt  time.Time `json:"registeredAt"`
}

// Receipt 账本写入回执
type Receipt struct {
	TxRef      string    `json:"txRef"`
	Block      uint64    `json:"block"`
	AnchoredAt time.Time `json:"anchoredAt"`
}

// Event 账本事件；Payload 为 JSON，由 eventsync 按事件名校验后解析
type Event struct {
	Source  string `json:"source"`
	Name    string `json:"name"`
	TxRef   string `json:"txRef"`
	Block   uint64 `json:"block"`
	Payload []byte `json:"payload"`
}

// LedgerA 组织账本能力面
type LedgerA interface {
	// Submit 写入证书记录，返回交易引用
	Submit(ctx context.Context, rec Record) (string, error)
	// QueryByHash 按文档哈希查证书；orgID 非空时限定组织
	QueryByHash(ctx context.Context, documentHash, orgID string) ([]Record, error)
	// QueryByID 按证书编号查单条
	QueryByID(ctx context.Context, certificateID string) (*Record, error)
	// History 证书版本历史（旧版本在前）
	History(ctx context.Context, certificateID string) ([]Record, error)
	// UpdateStatus 变更证书状态（吊销 / 暂停）
	UpdateStatus(ctx context.Context, certificateID, status, reason string) (*Record, error)
	// Subscribe 从 fromBlock 起订阅链码事件；channel 在 ctx 取消后关闭
	Subscribe(ctx context.Context, fromBlock uint64) (<-chan Event, error)
}

// LedgerB 公链锚定能力面
type LedgerB interface {
	// Anchor 锚定一条验证通过证明，阻塞至确认或 ctx 超时
	Anchor(ctx context.Context, documentHash, blobRef, orgID, proofHash string) (*Receipt, error)
	// Reject 锚定一条拒绝记录（拒绝同样上链，不只留本地日志）
	Reject(ctx context.Context, documentHash, orgID, reason string) (*Receipt, error)
	// GetAnchor 按哈希查锚定；不存在返回 pkgerrors.ErrNotFound
	GetAnchor(ctx context.Context, documentHash string) (*Anchor, error)
	// GetOrganization 按 orgID 查注册组织
	GetOrganization(ctx context.Context, orgID string) (*Organization, error)
	// RegisterOrganization 注册组织
	RegisterOrganization(ctx context.Context, org Organization) (*Receipt, error)
	// Subscribe 从 fromBlock 起订阅合约事件；channel 在 ctx 取消后关闭
	Subscribe(ctx context.Context, fromBlock uint64) (<-chan Event, error)
}
