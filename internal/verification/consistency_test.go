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

package verification

import (
	"testing"
	"time"

	"docverify/internal/ledger"
	"docverify/pkg/hashutil"
)

const consHash = "e7b9f3a6c1d4085229b6e4f8d2a6c0e5b1f6d9a2c5e8f1b4d7a0c3f6e9b2d5a8"

func TestCheckConsistency_Agreement(t *testing.T) {
	anchoredAt := time.Now()
	rec := &ledger.Record{
		CertificateID:  "CERT-20260829-0A1B2C",
		OrganizationID: "org-1",
		DocumentHash:   consHash,
		Status:         ledger.StatusValid,
	}
	anchor := &ledger.Anchor{
		DocumentHash:   "0x" + consHash,
		OrganizationID: "org-1",
		ProofHash:      hashutil.ComputeProofHash(consHash, "org-1", anchoredAt),
		AnchoredAt:     anchoredAt,
		Verified:       true,
	}

	res := CheckConsistency(rec, anchor)
	if !res.Consistent {
		t.Fatalf("expected consistent, issues: %v", res.Issues)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}
}

func TestCheckConsistency_HashMismatch(t *testing.T) {
	rec := &ledger.Record{OrganizationID: "org-1", DocumentHash: consHash}
	anchor := &ledger.Anchor{
		DocumentHash:   "0x0000000000000000000000000000000000000000000000000000000000000000",
		OrganizationID: "org-1",
		Verified:       true,
	}
	res := CheckConsistency(rec, anchor)
	if res.Consistent {
		t.Fatal("hash mismatch must be inconsistent")
	}
}

func TestCheckConsistency_ProofHashMismatchIsAdvisory(t *testing.T) {
	rec := &ledger.Record{OrganizationID: "org-1", DocumentHash: consHash, Status: ledger.StatusValid}
	anchor := &ledger.Anchor{
		DocumentHash:   consHash,
		OrganizationID: "org-1",
		ProofHash:      "does-not-recompute",
		AnchoredAt:     time.Now(),
		Verified:       true,
	}
	res := CheckConsistency(rec, anchor)
	if !res.Consistent {
		t.Fatalf("proof hash mismatch must not flip the verdict, issues: %v", res.Issues)
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected an advisory warning")
	}
}

func TestCheckConsistency_MissingSides(t *testing.T) {
	if res := CheckConsistency(nil, &ledger.Anchor{}); res.Consistent {
		t.Fatal("missing record must be inconsistent")
	}
	if res := CheckConsistency(&ledger.Record{}, nil); res.Consistent {
		t.Fatal("missing anchor must be inconsistent")
	}
}
