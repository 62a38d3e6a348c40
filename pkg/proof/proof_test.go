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
	"io"
	"strings"
	"testing"

	"docverify/pkg/signature"
)

const testDocHash = "a665a45920422f9d417e4867efdc4fb8a04a1f3fff1fa07e998e86f7f7a27ae3"

func testInput() ExportInput {
	return ExportInput{
		DocumentHash:   testDocHash,
		CertificateID:  "CERT-2026-0001",
		OrganizationID: "org-1",
		ProofHash:      "deadbeef",
		AnchorTxRef:    "0xtx1",
		AnchorBlock:    42,
		Consistent:     true,
		Record:         map[string]string{"documentHash": testDocHash, "status": "valid"},
		Anchor:         map[string]interface{}{"documentHash": "0x" + testDocHash, "verified": true},
		History:        []map[string]string{{"status": "valid"}},
		Consistency:    map[string]bool{"consistent": true},
		Document:       []byte("diploma body"),
	}
}

func TestExportAndVerifyRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := signature.NewMemoryKeyStore()
	if err := store.GenerateKey(ctx, "evidence"); err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	signer := signature.NewSigner(store, "evidence")

	zipBytes, err := ExportEvidenceZip(ctx, testInput(), signer, ExportOptions{GeneratorVersion: "0.1.0"})
	if err != nil {
		t.Fatalf("ExportEvidenceZip: %v", err)
	}

	pubKey, _ := store.GetVerifyKey(ctx, "evidence")
	res := VerifyEvidenceZip(zipBytes, pubKey)
	if !res.OK {
		t.Fatalf("verify failed: %v", res.Errors)
	}
	if !res.ManifestValid || !res.FilesValid {
		t.Errorf("manifest/files flags: %+v", res)
	}
	if !res.SignatureChecked || !res.SignatureValid {
		t.Errorf("signature flags: %+v", res)
	}
	if res.Manifest.DocumentHash != testDocHash {
		t.Errorf("manifest documentHash: got %s", res.Manifest.DocumentHash)
	}
	if res.Summary.AnchorBlock != 42 {
		t.Errorf("summary anchorBlock: got %d", res.Summary.AnchorBlock)
	}
}

func TestExportUnsigned(t *testing.T) {
	zipBytes, err := ExportEvidenceZip(context.Background(), testInput(), nil, ExportOptions{})
	if err != nil {
		t.Fatalf("ExportEvidenceZip: %v", err)
	}
	res := VerifyEvidenceZip(zipBytes, nil)
	if !res.OK {
		t.Fatalf("verify failed: %v", res.Errors)
	}
	if res.SignatureChecked {
		t.Error("unsigned package should not report a checked signature")
	}
}

func TestExportRequiresRecordAndAnchor(t *testing.T) {
	input := testInput()
	input.Record = nil
	if _, err := ExportEvidenceZip(context.Background(), input, nil, ExportOptions{}); err == nil {
		t.Error("export without record should fail")
	}
}

// rebuildZipWithTamperedFile 重打包并篡改其中一个文件
func rebuildZipWithTamperedFile(t *testing.T, zipBytes []byte, target string, content []byte) []byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		t.Fatalf("read zip: %v", err)
	}
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for _, f := range zr.File {
		fw, err := zw.Create(f.Name)
		if err != nil {
			t.Fatalf("create entry: %v", err)
		}
		if f.Name == target {
			if _, err := fw.Write(content); err != nil {
				t.Fatalf("write tampered entry: %v", err)
			}
			continue
		}
		rc, _ := f.Open()
		if _, err := io.Copy(fw, rc); err != nil {
			t.Fatalf("copy entry: %v", err)
		}
		rc.Close()
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestVerifyDetectsTamperedFile(t *testing.T) {
	zipBytes, err := ExportEvidenceZip(context.Background(), testInput(), nil, ExportOptions{})
	if err != nil {
		t.Fatalf("ExportEvidenceZip: %v", err)
	}
	tampered := rebuildZipWithTamperedFile(t, zipBytes, "record.json", []byte(`{"status":"forged"}`))
	res := VerifyEvidenceZip(tampered, nil)
	if res.OK {
		t.Fatal("tampered package should fail verification")
	}
	found := false
	for _, e := range res.Errors {
		if strings.Contains(e, "record.json") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected record.json hash error, got %v", res.Errors)
	}
}

func TestVerifyDetectsTamperedManifest(t *testing.T) {
	ctx := context.Background()
	store := signature.NewMemoryKeyStore()
	if err := store.GenerateKey(ctx, "evidence"); err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	signer := signature.NewSigner(store, "evidence")
	zipBytes, err := ExportEvidenceZip(ctx, testInput(), signer, ExportOptions{})
	if err != nil {
		t.Fatalf("ExportEvidenceZip: %v", err)
	}

	res := VerifyEvidenceZip(zipBytes, nil)
	if !res.OK {
		t.Fatalf("verify without pubkey should still pass hashes: %v", res.Errors)
	}

	// 改 manifest 的一个字段但保持文件哈希表不变，签名应当失效
	var manifest Manifest
	zr, _ := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	for _, f := range zr.File {
		if f.Name == "manifest.json" {
			rc, _ := f.Open()
			data, _ := io.ReadAll(rc)
			rc.Close()
			if err := json.Unmarshal(data, &manifest); err != nil {
				t.Fatalf("parse manifest: %v", err)
			}
		}
	}
	manifest.OrganizationID = "org-forged"
	forged, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		t.Fatalf("marshal forged manifest: %v", err)
	}
	tampered := rebuildZipWithTamperedFile(t, zipBytes, "manifest.json", forged)

	pubKey, _ := store.GetVerifyKey(ctx, "evidence")
	out := VerifyEvidenceZip(tampered, pubKey)
	if out.OK || out.SignatureValid {
		t.Fatalf("forged manifest should fail signature check: %+v", out)
	}
}
