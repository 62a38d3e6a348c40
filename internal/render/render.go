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

// Package render 证书文档渲染。发证时由模板和填充数据生成最终文档字节，
// 哈希即出自这份字节，渲染必须确定性。
package render

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"docverify/internal/template"
)

// Renderer 证书渲染器
type Renderer interface {
	// Render 渲染证书文档；同一输入必须产出相同字节
	Render(ctx context.Context, tmpl template.Template, certificateID string, data map[string]string) ([]byte, error)
}

// TextRenderer 纯文本渲染器：dev profile、批量发证与测试用，输出确定性字节
type TextRenderer struct{}

var _ Renderer = (*TextRenderer)(nil)

// NewTextRenderer 创建文本渲染器
func NewTextRenderer() *TextRenderer { return &TextRenderer{} }

// Render 实现 Renderer；字段按名字排序保证确定性
func (r *TextRenderer) Render(ctx context.Context, tmpl template.Template, certificateID string, data map[string]string) ([]byte, error) {
	if err := tmpl.Validate(data); err != nil {
		return nil, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", tmpl.Title)
	fmt.Fprintf(&b, "Certificate: %s\n", certificateID)
	fmt.Fprintf(&b, "Issuer: %s\n", tmpl.OrganizationID)

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, data[k])
	}
	return []byte(b.String()), nil
}
