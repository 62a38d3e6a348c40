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

package proof

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"docverify/pkg/signature"
)

const manifestVersion = "1.0"

// ExportEvidenceZip 导出证据包。signer 为 nil 时生成不带签名的包。
func ExportEvidenceZip(ctx context.Context, input ExportInput, signer *signature.Signer, opts ExportOptions) ([]byte, error) {
	if input.DocumentHash == "" {
		return nil, fmt.Errorf("documentHash is required")
	}
	if input.Record == nil || input.Anchor == nil {
		return nil, fmt.Errorf("record and anchor are required")
	}

	files := map[string][]byte{}
	for name, v := range map[string]interface{}{
		"record.json":      input.Record,
		"anchor.json":      input.Anchor,
		"history.json":     input.History,
		"consistency.json": input.Consistency,
	} {
		if v == nil {
			continue
		}
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("serialize %s: %w", name, err)
		}
		files[name] = data
	}
	if len(input.Document) > 0 {
		files["document.bin"] = input.Document
	}

	fileHashes := make(map[string]string, len(files))
	for name, data := range files {
		fileHashes[name] = ComputeFileHash(data)
	}

	generatedBy := "docverify"
	if opts.GeneratorVersion != "" {
		generatedBy = "docverify " + opts.GeneratorVersion
	}
	manifest := Manifest{
		Version:        manifestVersion,
		DocumentHash:   input.DocumentHash,
		CertificateID:  input.CertificateID,
		OrganizationID: input.OrganizationID,
		ExportedAt:     time.Now().UTC(),
		FileHashes:     fileHashes,
		GeneratedBy:    generatedBy,
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize manifest: %w", err)
	}
	files["manifest.json"] = manifestJSON

	summary := Summary{
		DocumentHash: input.DocumentHash,
		ProofHash:    input.ProofHash,
		AnchorTxRef:  input.AnchorTxRef,
		AnchorBlock:  input.AnchorBlock,
		Consistent:   input.Consistent,
		GeneratedBy:  generatedBy,
	}
	if signer != nil {
		sig, err := signer.SignPackage(ctx, manifestJSON)
		if err != nil {
			return nil, fmt.Errorf("sign manifest: %w", err)
		}
		summary.Signature = sig
	}
	summaryJSON, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize proof summary: %w", err)
	}
	files["proof.json"] = summaryJSON

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for name, data := range files {
		fw, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("create zip entry %s: %w", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return nil, fmt.Errorf("write zip entry %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}
