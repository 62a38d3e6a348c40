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

// Package records 验证记录与组织的本地缓存层。
// 账本是事实源，这里只加速读路径并承载 pending-confirmation 状态；
// 所有写入都是按自然键的 upsert，事件同步可以乱序重放。
package records

import (
	"context"
	"fmt"
	"time"
)

// 组织状态
const (
	OrgStatusPending  = "pending"
	OrgStatusVerified = "verified"
	OrgStatusRejected = "rejected"
	OrgStatusBanned   = "banned"
)

// VerificationRecord 一次验证的本地记录。
// Pending 表示锚定结果不明（超时），等待事件同步裁决。
type VerificationRecord struct {
	DocumentHash    string            `json:"documentHash"`
	BlobRef         string            `json:"blobRef"`
	OrganizationID  string            `json:"organizationId"`
	CertificateID   string            `json:"certificateId"`
	ProofHash       string            `json:"proofHash"`
	LedgerBTxRef    string            `json:"ledgerBTxRef"`
	LedgerBBlock    uint64            `json:"ledgerBBlock"`
	Verified        bool              `json:"verified"`
	Pending         bool              `json:"pending"`
	Reason          string            `json:"reason,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	LedgerASnapshot []byte            `json:"ledgerASnapshot,omitempty"`
	VerifiedAt      time.Time         `json:"verifiedAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// Organization 组织缓存行，自 LedgerB 事件同步而来；Ban 信息是本地治理状态
type Organization struct {
	OrgID         string     `json:"orgId"`
	Name          string     `json:"name"`
	OrgType       string     `json:"orgType"`
	WalletAddress string     `json:"walletAddress"`
	Status        string     `json:"status"`
	BanExpiresAt  *time.Time `json:"banExpiresAt,omitempty"`
	RegisteredAt  time.Time  `json:"registeredAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Banned 组织当前是否处于封禁期
func (o *Organization) Banned(now time.Time) bool {
	if o.Status != OrgStatusBanned {
		return false
	}
	return o.BanExpiresAt == nil || o.BanExpiresAt.After(now)
}

// Store 验证记录与组织缓存
type Store interface {
	// UpsertVerification 按 documentHash upsert；第二条 verified 记录同一哈希
	// 返回包裹 ErrDuplicate 的错误
	UpsertVerification(ctx context.Context, rec VerificationRecord) error
	// GetVerification 按哈希查记录；不存在返回包裹 ErrNotFound 的错误
	GetVerification(ctx context.Context, documentHash string) (*VerificationRecord, error)
	// GetVerificationByCertificateID 按证书号查记录
	GetVerificationByCertificateID(ctx context.Context, certificateID string) (*VerificationRecord, error)
	// ListPending 列出所有待裁决记录
	ListPending(ctx context.Context) ([]VerificationRecord, error)
	// ResolvePending 事件同步确认锚定后落定记录
	ResolvePending(ctx context.Context, documentHash, txRef string, block uint64, anchoredAt time.Time) error

	// UpsertOrganization 按 orgId upsert
	UpsertOrganization(ctx context.Context, org Organization) error
	// GetOrganization 按 orgId 查组织
	GetOrganization(ctx context.Context, orgID string) (*Organization, error)
	// GetOrganizationByWallet 按钱包地址查组织
	GetOrganizationByWallet(ctx context.Context, walletAddress string) (*Organization, error)
	// ListOrganizations 按 orgId 升序列出全部组织
	ListOrganizations(ctx context.Context) ([]Organization, error)
	// SetOrganizationBan 设置组织封禁状态；expiresAt 为 nil 表示永久封禁
	SetOrganizationBan(ctx context.Context, orgID, status string, expiresAt *time.Time) error

	Close()
}

// Config 记录缓存配置
type Config struct {
	Type     string // memory | postgres
	DSN      string
	PoolSize int
}

// NewStore 按配置创建记录缓存
func NewStore(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case "postgres":
		return NewPGStore(ctx, cfg)
	case "memory", "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("不支持的 records store 类型: %s", cfg.Type)
	}
}
