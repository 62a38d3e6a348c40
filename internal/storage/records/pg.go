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

package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgerrors "docverify/pkg/errors"
	"docverify/pkg/hashutil"
)

// PGStore Postgres 实现
type PGStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PGStore)(nil)

const recordsSchema = `
CREATE TABLE IF NOT EXISTS verifications (
    document_hash     TEXT PRIMARY KEY,
    blob_ref          TEXT NOT NULL DEFAULT '',
    organization_id   TEXT NOT NULL,
    certificate_id    TEXT NOT NULL DEFAULT '',
    proof_hash        TEXT NOT NULL DEFAULT '',
    ledger_b_tx_ref   TEXT NOT NULL DEFAULT '',
    ledger_b_block    BIGINT NOT NULL DEFAULT 0,
    verified          BOOLEAN NOT NULL DEFAULT FALSE,
    pending           BOOLEAN NOT NULL DEFAULT FALSE,
    reason            TEXT NOT NULL DEFAULT '',
    metadata          JSONB,
    ledger_a_snapshot JSONB,
    verified_at       TIMESTAMPTZ,
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_verifications_verified
    ON verifications (document_hash) WHERE verified;
CREATE UNIQUE INDEX IF NOT EXISTS uq_verifications_certificate
    ON verifications (certificate_id) WHERE certificate_id <> '';
CREATE INDEX IF NOT EXISTS idx_verifications_pending
    ON verifications (pending) WHERE pending;

CREATE TABLE IF NOT EXISTS organizations (
    org_id         TEXT PRIMARY KEY,
    name           TEXT NOT NULL DEFAULT '',
    org_type       TEXT NOT NULL DEFAULT '',
    wallet_address TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL DEFAULT 'pending',
    ban_expires_at TIMESTAMPTZ,
    registered_at  TIMESTAMPTZ,
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_organizations_wallet
    ON organizations (wallet_address) WHERE wallet_address <> '';
`

// NewPGStore 创建 Postgres 记录缓存并初始化 schema
func NewPGStore(ctx context.Context, cfg Config) (*PGStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("解析 DSN 失败: %w", err)
	}
	if cfg.PoolSize > 0 {
		poolCfg.MaxConns = int32(cfg.PoolSize)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("连接 Postgres 失败: %w", err)
	}
	if _, err := pool.Exec(ctx, recordsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("初始化 schema 失败: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

// UpsertVerification 实现 Store。
// 同一哈希已有 verified 记录时，来自其他交易的再次 verified 写入被条件拒绝。
func (s *PGStore) UpsertVerification(ctx context.Context, rec VerificationRecord) error {
	if !hashutil.IsValid(rec.DocumentHash) {
		return pkgerrors.Wrap(pkgerrors.ErrValidation, "document hash")
	}
	metaJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return pkgerrors.Wrap(err, "marshal metadata")
	}
	tag, err := s.pool.Exec(ctx, `
        INSERT INTO verifications (
            document_hash, blob_ref, organization_id, certificate_id, proof_hash,
            ledger_b_tx_ref, ledger_b_block, verified, pending, reason,
            metadata, ledger_a_snapshot, verified_at, updated_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now())
        ON CONFLICT (document_hash) DO UPDATE SET
            blob_ref = EXCLUDED.blob_ref,
            organization_id = EXCLUDED.organization_id,
            certificate_id = EXCLUDED.certificate_id,
            proof_hash = EXCLUDED.proof_hash,
            ledger_b_tx_ref = EXCLUDED.ledger_b_tx_ref,
            ledger_b_block = EXCLUDED.ledger_b_block,
            verified = EXCLUDED.verified,
            pending = EXCLUDED.pending,
            reason = EXCLUDED.reason,
            metadata = EXCLUDED.metadata,
            ledger_a_snapshot = EXCLUDED.ledger_a_snapshot,
            verified_at = EXCLUDED.verified_at,
            updated_at = now()
        WHERE NOT (verifications.verified AND EXCLUDED.verified
            AND verifications.ledger_b_tx_ref IS DISTINCT FROM EXCLUDED.ledger_b_tx_ref)`,
		hashutil.Normalize(rec.DocumentHash), rec.BlobRef, rec.OrganizationID, rec.CertificateID,
		rec.ProofHash, rec.LedgerBTxRef, rec.LedgerBBlock, rec.Verified, rec.Pending, rec.Reason,
		metaJSON, rec.LedgerASnapshot, nullableTime(rec.VerifiedAt),
	)
	if err != nil {
		return pkgerrors.Wrap(err, "upsert verification")
	}
	if tag.RowsAffected() == 0 {
		return pkgerrors.Wrapf(pkgerrors.ErrDuplicate, "verified record for %s", hashutil.Normalize(rec.DocumentHash))
	}
	return nil
}

const verificationColumns = `
    document_hash, blob_ref, organization_id, certificate_id, proof_hash,
    ledger_b_tx_ref, ledger_b_block, verified, pending, reason,
    metadata, ledger_a_snapshot, verified_at, updated_at`

func scanVerification(row pgx.Row) (*VerificationRecord, error) {
	var rec VerificationRecord
	var metaJSON []byte
	var verifiedAt *time.Time
	err := row.Scan(
		&rec.DocumentHash, &rec.BlobRef, &rec.OrganizationID, &rec.CertificateID, &rec.ProofHash,
		&rec.LedgerBTxRef, &rec.LedgerBBlock, &rec.Verified, &rec.Pending, &rec.Reason,
		&metaJSON, &rec.LedgerASnapshot, &verifiedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &rec.Metadata); err != nil {
			return nil, pkgerrors.Wrap(err, "decode metadata")
		}
	}
	if verifiedAt != nil {
		rec.VerifiedAt = *verifiedAt
	}
	return &rec, nil
}

// GetVerification 实现 Store
func (s *PGStore) GetVerification(ctx context.Context, documentHash string) (*VerificationRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+verificationColumns+` FROM verifications WHERE document_hash = $1`,
		hashutil.Normalize(documentHash))
	rec, err := scanVerification(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "verification %s", documentHash)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "query verification")
	}
	return rec, nil
}

// GetVerificationByCertificateID 实现 Store
func (s *PGStore) GetVerificationByCertificateID(ctx context.Context, certificateID string) (*VerificationRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+verificationColumns+` FROM verifications WHERE certificate_id = $1`,
		certificateID)
	rec, err := scanVerification(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "certificate %s", certificateID)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "query verification by certificate")
	}
	return rec, nil
}

// ListPending 实现 Store
func (s *PGStore) ListPending(ctx context.Context) ([]VerificationRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+verificationColumns+` FROM verifications WHERE pending ORDER BY updated_at`)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list pending")
	}
	defer rows.Close()
	var out []VerificationRecord
	for rows.Next() {
		rec, err := scanVerification(rows)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "scan pending")
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// ResolvePending 实现 Store；只落定仍在 pending 的记录，重放无副作用
func (s *PGStore) ResolvePending(ctx context.Context, documentHash, txRef string, block uint64, anchoredAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
        UPDATE verifications SET
            pending = FALSE, verified = TRUE,
            ledger_b_tx_ref = $2, ledger_b_block = $3, verified_at = $4, updated_at = now()
        WHERE document_hash = $1 AND pending`,
		hashutil.Normalize(documentHash), txRef, block, anchoredAt)
	if err != nil {
		return pkgerrors.Wrap(err, "resolve pending")
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM verifications WHERE document_hash = $1)`,
			hashutil.Normalize(documentHash)).Scan(&exists); err != nil {
			return pkgerrors.Wrap(err, "resolve pending")
		}
		if !exists {
			return pkgerrors.Wrapf(pkgerrors.ErrNotFound, "verification %s", documentHash)
		}
	}
	return nil
}

// UpsertOrganization 实现 Store
func (s *PGStore) UpsertOrganization(ctx context.Context, org Organization) error {
	if org.OrgID == "" {
		return pkgerrors.Wrap(pkgerrors.ErrValidation, "orgId")
	}
	_, err := s.pool.Exec(ctx, `
        INSERT INTO organizations (org_id, name, org_type, wallet_address, status, ban_expires_at, registered_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,now())
        ON CONFLICT (org_id) DO UPDATE SET
            name = EXCLUDED.name,
            org_type = EXCLUDED.org_type,
            wallet_address = EXCLUDED.wallet_address,
            status = EXCLUDED.status,
            ban_expires_at = EXCLUDED.ban_expires_at,
            registered_at = EXCLUDED.registered_at,
            updated_at = now()`,
		org.OrgID, org.Name, org.OrgType, org.WalletAddress, org.Status,
		org.BanExpiresAt, nullableTime(org.RegisteredAt))
	if err != nil {
		return pkgerrors.Wrap(err, "upsert organization")
	}
	return nil
}

func scanOrganization(row pgx.Row) (*Organization, error) {
	var org Organization
	var registeredAt *time.Time
	err := row.Scan(&org.OrgID, &org.Name, &org.OrgType, &org.WalletAddress,
		&org.Status, &org.BanExpiresAt, &registeredAt, &org.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if registeredAt != nil {
		org.RegisteredAt = *registeredAt
	}
	return &org, nil
}

const organizationColumns = `org_id, name, org_type, wallet_address, status, ban_expires_at, registered_at, updated_at`

// GetOrganization 实现 Store
func (s *PGStore) GetOrganization(ctx context.Context, orgID string) (*Organization, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE org_id = $1`, orgID)
	org, err := scanOrganization(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "organization %s", orgID)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "query organization")
	}
	return org, nil
}

// GetOrganizationByWallet 实现 Store
func (s *PGStore) GetOrganizationByWallet(ctx context.Context, walletAddress string) (*Organization, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE wallet_address = $1`, walletAddress)
	org, err := scanOrganization(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "wallet %s", walletAddress)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "query organization by wallet")
	}
	return org, nil
}

// ListOrganizations 实现 Store
func (s *PGStore) ListOrganizations(ctx context.Context) ([]Organization, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+organizationColumns+` FROM organizations ORDER BY org_id`)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list organizations")
	}
	defer rows.Close()
	var out []Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "scan organization")
		}
		out = append(out, *org)
	}
	return out, rows.Err()
}

// SetOrganizationBan 实现 Store
func (s *PGStore) SetOrganizationBan(ctx context.Context, orgID, status string, expiresAt *time.Time) error {
	tag, err := s.pool.Exec(ctx, `
        UPDATE organizations SET status = $2, ban_expires_at = $3, updated_at = now()
        WHERE org_id = $1`, orgID, status, expiresAt)
	if err != nil {
		return pkgerrors.Wrap(err, "set organization ban")
	}
	if tag.RowsAffected() == 0 {
		return pkgerrors.Wrapf(pkgerrors.ErrNotFound, "organization %s", orgID)
	}
	return nil
}

// Pool 返回底层连接池，供共库的存储复用
func (s *PGStore) Pool() *pgxpool.Pool {
	return s.pool
}

// Close 实现 Store
func (s *PGStore) Close() {
	s.pool.Close()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
