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

// Package verification 双账本验证核心：提交编排、跨账本一致性、公开查验。
package verification

import (
	"docverify/internal/ledger"
	"docverify/pkg/hashutil"
)

// ConsistencyResult 跨账本比对结论。
// Consistent 为硬性结论；Warnings 是仅记录不拦截的疑点。
type ConsistencyResult struct {
	Consistent bool     `json:"consistent"`
	Issues     []string `json:"issues,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// CheckConsistency 比对许可链记录与公链锚定。
// 哈希与组织不一致是硬性问题；proofHash 不一致只告警，
// 时间戳来源不同导致的重算偏差不应推翻两边账本的一致事实。
func CheckConsistency(rec *ledger.Record, anchor *ledger.Anchor) ConsistencyResult {
	out := ConsistencyResult{Consistent: true}
	if rec == nil || anchor == nil {
		out.Consistent = false
		out.Issues = append(out.Issues, "missing ledger record or anchor")
		return out
	}

	if !hashutil.Equal(rec.DocumentHash, anchor.DocumentHash) {
		out.Consistent = false
		out.Issues = append(out.Issues, "document hash mismatch between ledgers")
	}
	if rec.OrganizationID != anchor.OrganizationID {
		out.Consistent = false
		out.Issues = append(out.Issues, "organization mismatch between ledgers")
	}
	if !anchor.Verified {
		out.Consistent = false
		out.Issues = append(out.Issues, "anchor is not a verification record")
	}

	if anchor.ProofHash != "" {
		expected := hashutil.ComputeProofHash(anchor.DocumentHash, anchor.OrganizationID, anchor.AnchoredAt)
		if expected != anchor.ProofHash {
			out.Warnings = append(out.Warnings, "proof hash does not match recomputation")
		}
	}
	return out
}
