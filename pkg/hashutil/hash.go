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

// Package hashutil 文档哈希与跨账本哈希规范化。
// 两条账本对 bytes32 的前缀约定不同（一侧带 0x，一侧裸 hex），
// 所有相等判断必须先 Normalize。
package hashutil

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// HexPrefix 规范哈希前缀
const HexPrefix = "0x"

var certIDPattern = regexp.MustCompile(`^CERT-\d{8}-[0-9A-F]{6}$`)

// ComputeDocumentHash 计算文档内容 SHA-256，返回小写 hex（不带前缀）
func ComputeDocumentHash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Normalize 规范化哈希表示：去前缀、转小写。空串原样返回。
func Normalize(hash string) string {
	h := strings.TrimPrefix(strings.TrimSpace(hash), HexPrefix)
	return strings.ToLower(h)
}

// Prefixed 规范化并补 0x 前缀（账本互操作格式）
func Prefixed(hash string) string {
	n := Normalize(hash)
	if n == "" {
		return ""
	}
	return HexPrefix + n
}

// Equal 规范化后判等
func Equal(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	return na != "" && na == nb
}

// IsValid 是否为合法的 32 字节 hex 哈希（可带 0x 前缀）
func IsValid(hash string) bool {
	n := Normalize(hash)
	if len(n) != 64 {
		return false
	}
	_, err := hex.DecodeString(n)
	return err == nil
}

// ComputeProofHash 计算跨账本 proof hash。
// ProofHash = SHA256(documentHash ‖ organizationId ‖ timestampMillis)，
// documentHash 先规范化，保证两侧可用同一输入重算。
func ComputeProofHash(documentHash, organizationID string, anchoredAt time.Time) string {
	data := Normalize(documentHash) + organizationID + strconv.FormatInt(anchoredAt.UnixMilli(), 10)
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:])
}

// NewCertificateID 生成证书编号，格式 CERT-YYYYMMDD-XXXXXX（6 位大写 hex）
func NewCertificateID(now time.Time) (string, error) {
	var b [3]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("CERT-%s-%s", now.UTC().Format("20060102"), strings.ToUpper(hex.EncodeToString(b[:]))), nil
}

// IsValidCertificateID 校验证书编号格式
func IsValidCertificateID(id string) bool {
	return certIDPattern.MatchString(id)
}
