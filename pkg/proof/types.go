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

// Package proof 可携带的查验证据包：把一份文档的双账本结论打成
// 自包含的 ZIP，离线也能核对文件哈希与签名。
package proof

import "time"

// Manifest 证据包清单。签名覆盖的就是这份清单的 JSON 字节。
type Manifest struct {
	Version        string            `json:"version"` // "1.0"
	DocumentHash   string            `json:"documentHash"`
	CertificateID  string            `json:"certificateId,omitempty"`
	OrganizationID string            `json:"organizationId,omitempty"`
	ExportedAt     time.Time         `json:"exportedAt"`
	FileHashes     map[string]string `json:"fileHashes"` // filename -> SHA256
	GeneratedBy    string            `json:"generatedBy"`
}

// Summary 证明摘要（proof.json）
type Summary struct {
	DocumentHash string `json:"documentHash"`
	ProofHash    string `json:"proofHash,omitempty"`
	AnchorTxRef  string `json:"anchorTxRef,omitempty"`
	AnchorBlock  uint64 `json:"anchorBlock,omitempty"`
	Consistent   bool   `json:"consistent"`
	GeneratedBy  string `json:"generatedBy"`
	Signature    string `json:"signature,omitempty"` // ed25519:<keyID>:<base64>，覆盖 manifest.json
}

// ExportInput 导出证据包的输入。Record/Anchor/History/Consistency
// 原样序列化进包里，调用方传各自的领域类型即可。
type ExportInput struct {
	DocumentHash   string
	CertificateID  string
	OrganizationID string
	ProofHash      string
	AnchorTxRef    string
	AnchorBlock    uint64
	Consistent     bool

	Record      interface{}
	Anchor      interface{}
	History     interface{}
	Consistency interface{}
	Document    []byte // 原始文档，可为空
}

// ExportOptions 导出选项
type ExportOptions struct {
	GeneratorVersion string
}

// VerifyResult 证据包检验结论
type VerifyResult struct {
	OK               bool     `json:"ok"`
	ManifestValid    bool     `json:"manifestValid"`
	FilesValid       bool     `json:"filesValid"`
	SignatureChecked bool     `json:"signatureChecked"`
	SignatureValid   bool     `json:"signatureValid"`
	Manifest         Manifest `json:"manifest"`
	Summary          Summary  `json:"summary"`
	Errors           []string `json:"errors"`
}
