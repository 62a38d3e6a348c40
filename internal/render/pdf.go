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

package render

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/unidoc/unipdf/v3/creator"

	"docverify/internal/template"
)

// PDFRenderer unipdf 实现，正式发证用
type PDFRenderer struct{}

var _ Renderer = (*PDFRenderer)(nil)

// NewPDFRenderer 创建 PDF 渲染器
func NewPDFRenderer() *PDFRenderer { return &PDFRenderer{} }

// Render 实现 Renderer
func (r *PDFRenderer) Render(ctx context.Context, tmpl template.Template, certificateID string, data map[string]string) ([]byte, error) {
	if err := tmpl.Validate(data); err != nil {
		return nil, err
	}

	c := creator.New()
	c.SetPageMargins(50, 50, 80, 50)

	title := c.NewParagraph(tmpl.Title)
	title.SetFontSize(24)
	title.SetTextAlignment(creator.TextAlignmentCenter)
	if err := c.Draw(title); err != nil {
		return nil, fmt.Errorf("渲染标题失败: %w", err)
	}

	idLine := c.NewParagraph("Certificate No. " + certificateID)
	idLine.SetFontSize(12)
	idLine.SetTextAlignment(creator.TextAlignmentCenter)
	idLine.SetMargins(0, 0, 20, 30)
	if err := c.Draw(idLine); err != nil {
		return nil, fmt.Errorf("渲染证书号失败: %w", err)
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		line := c.NewParagraph(fmt.Sprintf("%s: %s", k, data[k]))
		line.SetFontSize(14)
		line.SetMargins(0, 0, 6, 0)
		if err := c.Draw(line); err != nil {
			return nil, fmt.Errorf("渲染字段 %s 失败: %w", k, err)
		}
	}

	issuer := c.NewParagraph("Issued by " + tmpl.OrganizationID)
	issuer.SetFontSize(10)
	issuer.SetMargins(0, 0, 40, 0)
	if err := c.Draw(issuer); err != nil {
		return nil, fmt.Errorf("渲染签发方失败: %w", err)
	}

	var buf bytes.Buffer
	if err := c.Write(&buf); err != nil {
		return nil, fmt.Errorf("写出 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}
