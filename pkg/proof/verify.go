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
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"

	"docverify/pkg/signature"
)

// VerifyEvidenceZip 离线检验证据包：文件哈希必须与清单一致；
// 摘要带签名且提供了公钥时，同时校验签名覆盖的清单字节。
func VerifyEvidenceZip(zipBytes []byte, pubKey ed25519.PublicKey) VerifyResult {
	result := VerifyResult{OK: true, Errors: []string{}}

	zipReader, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		result.OK = false
		result.Errors = append(result.Errors, fmt.Sprintf("read zip: %v", err))
		return result
	}

	files := make(map[string][]byte)
	for _, f := range zipReader.File {
		rc, err := f.Open()
		if err != nil {
			result.OK = false
			result.Errors = append(result.Errors, fmt.Sprintf("open %s: %v", f.Name, err))
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			result.OK = false
			result.Errors = append(result.Errors, fmt.Sprintf("read %s: %v", f.Name, err))
			continue
		}
		files[f.Name] = data
	}

	manifestData, ok := files["manifest.json"]
	if !ok {
		result.OK = false
		result.Errors = append(result.Errors, "manifest.json not found")
		return result
	}
	if err := json.Unmarshal(manifestData, &result.Manifest); err != nil {
		result.OK = false
		result.Errors = append(result.Errors, fmt.Sprintf("parse manifest: %v", err))
		return result
	}
	result.ManifestValid = true

	result.FilesValid = true
	for filename, expectedHash := range result.Manifest.FileHashes {
		data, ok := files[filename]
		if !ok {
			result.OK = false
			result.FilesValid = false
			result.Errors = append(result.Errors, fmt.Sprintf("file %s declared in manifest but missing", filename))
			continue
		}
		if got := ComputeFileHash(data); got != expectedHash {
			result.OK = false
			result.FilesValid = false
			result.Errors = append(result.Errors, fmt.Sprintf("file hash mismatch for %s", filename))
		}
	}

	summaryData, ok := files["proof.json"]
	if !ok {
		result.OK = false
		result.Errors = append(result.Errors, "proof.json not found")
		return result
	}
	if err := json.Unmarshal(summaryData, &result.Summary); err != nil {
		result.OK = false
		result.Errors = append(result.Errors, fmt.Sprintf("parse proof summary: %v", err))
		return result
	}

	if result.Summary.Signature != "" && pubKey != nil {
		result.SignatureChecked = true
		result.SignatureValid = signature.VerifyPackage(manifestData, result.Summary.Signature, pubKey)
		if !result.SignatureValid {
			result.OK = false
			result.Errors = append(result.Errors, "manifest signature invalid")
		}
	}
	return result
}
