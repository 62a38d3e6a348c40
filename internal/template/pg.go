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

package template

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgerrors "docverify/pkg/errors"
)

// PGStore Postgres 模板存储
type PGStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PGStore)(nil)

const templateSchema = `
CREATE TABLE IF NOT EXISTS certificate_templates (
    id              TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    name            TEXT NOT NULL DEFAULT '',
    title           TEXT NOT NULL DEFAULT '',
    fields          TEXT[] NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_templates_org ON certificate_templates (organization_id);
`

// NewPGStore 复用既有连接池创建模板存储并初始化 schema
func NewPGStore(ctx context.Context, pool *pgxpool.Pool) (*PGStore, error) {
	if _, err := pool.Exec(ctx, templateSchema); err != nil {
		return nil, fmt.Errorf("初始化 schema 失败: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

// Create 实现 Store
func (s *PGStore) Create(ctx context.Context, tmpl Template) error {
	if tmpl.ID == "" || tmpl.OrganizationID == "" {
		return pkgerrors.Wrap(pkgerrors.ErrValidation, "template id/org")
	}
	tag, err := s.pool.Exec(ctx, `
        INSERT INTO certificate_templates (id, organization_id, name, title, fields)
        VALUES ($1,$2,$3,$4,$5) ON CONFLICT (id) DO NOTHING`,
		tmpl.ID, tmpl.OrganizationID, tmpl.Name, tmpl.Title, tmpl.Fields)
	if err != nil {
		return pkgerrors.Wrap(err, "create template")
	}
	if tag.RowsAffected() == 0 {
		return pkgerrors.Wrapf(pkgerrors.ErrDuplicate, "template %s", tmpl.ID)
	}
	return nil
}

const templateColumns = `id, organization_id, name, title, fields, created_at, updated_at`

func scanTemplate(row pgx.Row) (*Template, error) {
	var t Template
	if err := row.Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Title, &t.Fields, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// Get 实现 Store
func (s *PGStore) Get(ctx context.Context, id string) (*Template, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM certificate_templates WHERE id = $1`, id)
	tmpl, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "template %s", id)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "query template")
	}
	return tmpl, nil
}

// ListByOrganization 实现 Store
func (s *PGStore) ListByOrganization(ctx context.Context, orgID string) ([]Template, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+templateColumns+` FROM certificate_templates WHERE organization_id = $1 ORDER BY id`, orgID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list templates")
	}
	defer rows.Close()
	var out []Template
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "scan template")
		}
		out = append(out, *tmpl)
	}
	return out, rows.Err()
}

// Update 实现 Store
func (s *PGStore) Update(ctx context.Context, tmpl Template) error {
	tag, err := s.pool.Exec(ctx, `
        UPDATE certificate_templates SET name=$2, title=$3, fields=$4, updated_at=now()
        WHERE id = $1`,
		tmpl.ID, tmpl.Name, tmpl.Title, tmpl.Fields)
	if err != nil {
		return pkgerrors.Wrap(err, "update template")
	}
	if tag.RowsAffected() == 0 {
		return pkgerrors.Wrapf(pkgerrors.ErrNotFound, "template %s", tmpl.ID)
	}
	return nil
}

// Delete 实现 Store
func (s *PGStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM certificate_templates WHERE id = $1`, id)
	if err != nil {
		return pkgerrors.Wrap(err, "delete template")
	}
	if tag.RowsAffected() == 0 {
		return pkgerrors.Wrapf(pkgerrors.ErrNotFound, "template %s", id)
	}
	return nil
}
