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

package main

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"testing"

	"docverify/pkg/hashutil"
)

// hash 子命令输出必须与服务端的规范化哈希一致，否则本地算的哈希查不到链上记录
func TestLocalHashMatchesServerNormalization(t *testing.T) {
	doc := []byte("bachelor of science diploma")
	sum := sha256.Sum256(doc)
	local := hex.EncodeToString(sum[:])
	if got := hashutil.ComputeDocumentHash(doc); got != local {
		t.Fatalf("local hash %s, server normalization %s", local, got)
	}
}

func TestRunHashReadsFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "doc-*.txt")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	if _, err := f.WriteString("diploma body"); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if hashutil.ComputeDocumentHash(data) == "" {
		t.Fatal("empty hash for non-empty document")
	}
}
