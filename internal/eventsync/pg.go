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

package eventsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgerrors "docverify/pkg/errors"
)

// PGStore Postgres 事件存储
type PGStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PGStore)(nil)

const eventSchema = `
CREATE TABLE IF NOT EXISTS ledger_events (
    id          BIGSERIAL PRIMARY KEY,
    source      TEXT NOT NULL,
    name        TEXT NOT NULL,
    tx_ref      TEXT NOT NULL,
    block       BIGINT NOT NULL,
    payload     JSONB,
    received_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (source, tx_ref, name)
);
CREATE INDEX IF NOT EXISTS idx_ledger_events_source ON ledger_events (source, received_at DESC);

CREATE TABLE IF NOT EXISTS sync_checkpoints (
    source         TEXT PRIMARY KEY,
    last_block     BIGINT NOT NULL DEFAULT 0,
    last_synced_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// NewPGStore 创建 Postgres 事件存储并初始化 schema
func NewPGStore(ctx context.Context, cfg StoreConfig) (*PGStore, error) {
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
	if _, err := pool.Exec(ctx, eventSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("初始化 schema 失败: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

// AppendEvent 实现 Store；唯一约束冲突即重复，静默跳过
func (s *PGStore) AppendEvent(ctx context.Context, entry LogEntry) (bool, error) {
	receivedAt := entry.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx, `
        INSERT INTO ledger_events (source, name, tx_ref, block, payload, received_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (source, tx_ref, name) DO NOTHING`,
		entry.Source, entry.Name, entry.TxRef, entry.Block, entry.Payload, receivedAt)
	if err != nil {
		return false, pkgerrors.Wrap(err, "append event")
	}
	return tag.RowsAffected() > 0, nil
}

// RecentEvents 实现 Store
func (s *PGStore) RecentEvents(ctx context.Context, source string, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	rows, err := s.pool.Query(ctx, `
        SELECT source, name, tx_ref, block, payload, received_at
        FROM ledger_events WHERE source = $1
        ORDER BY received_at DESC LIMIT $2`, source, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list events")
	}
	defer rows.Close()
	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.Source, &e.Name, &e.TxRef, &e.Block, &e.Payload, &e.ReceivedAt); err != nil {
			return nil, pkgerrors.Wrap(err, "scan event")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetCheckpoint 实现 Store
func (s *PGStore) GetCheckpoint(ctx context.Context, source string) (Checkpoint, error) {
	cp := Checkpoint{Source: source}
	err := s.pool.QueryRow(ctx,
		`SELECT last_block, last_synced_at FROM sync_checkpoints WHERE source = $1`,
		source).Scan(&cp.LastBlock, &cp.LastSyncedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// 从未同步过
		return Checkpoint{Source: source}, nil
	}
	if err != nil {
		return Checkpoint{}, pkgerrors.Wrap(err, "get checkpoint")
	}
	return cp, nil
}

// AdvanceCheckpoint 实现 Store；条件更新保证单调
func (s *PGStore) AdvanceCheckpoint(ctx context.Context, source string, block uint64) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO sync_checkpoints (source, last_block, last_synced_at)
        VALUES ($1, $2, now())
        ON CONFLICT (source) DO UPDATE SET
            last_block = EXCLUDED.last_block, last_synced_at = now()
        WHERE sync_checkpoints.last_block < EXCLUDED.last_block`,
		source, block)
	if err != nil {
		return pkgerrors.Wrap(err, "advance checkpoint")
	}
	return nil
}

// Close 实现 Store
func (s *PGStore) Close() {
	s.pool.Close()
}
