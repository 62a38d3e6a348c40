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

// Package template 证书模板。模板定义渲染字段，发证时填充后生成文档。
package template

import (
	"context"
	"fmt"
	"time"
)

// Template 证书模板
type Template struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Name           string    `json:"name"`
	Title          string    `json:"title"`
	Fields         []string  `json:"fields"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Validate 发证前校验填充数据是否覆盖所有字段
func (t *Template) Validate(data map[string]string) error {
	for _, f := range t.Fields {
		if data[f] == "" {
			return fmt.Errorf("模板字段 %s 缺失", f)
		}
	}
	return nil
}

// Store 模板存储
type Store interface {
	// Create 创建模板，ID 已存在返回包裹 ErrDuplicate 的错误
	Create(ctx context.Context, tmpl Template) error
	// Get 按 ID 取模板；不存在返回包裹 ErrNotFound 的错误
	Get(ctx context.Context, id string) (*Template, error)
	// ListByOrganization 列出组织的全部模板
	ListByOrganization(ctx context.Context, orgID string) ([]Template, error)
	// Update 覆盖模板
	Update(ctx context.Context, tmpl Template) error
	// Delete 删除模板
	Delete(ctx context.Context, id string) error
}
