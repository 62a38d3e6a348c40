package hashutil

import (
	"strings"
	"testing"
	"time"
)

func TestComputeDocumentHash_Deterministic(t *testing.T) {
	data := []byte("certificate body bytes")
	h1 := ComputeDocumentHash(data)
	h2 := ComputeDocumentHash(data)
	if h1 != h2 {
		t.Errorf("hash not deterministic: %s != %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
	if h1 != strings.ToLower(h1) {
		t.Error("hash should be lower-case hex")
	}
	if ComputeDocumentHash([]byte("other bytes")) == h1 {
		t.Error("different input should hash differently")
	}
}

func TestNormalize_Equal(t *testing.T) {
	h := ComputeDocumentHash([]byte("x"))
	cases := []struct {
		a, b string
		want bool
	}{
		{h, "0x" + h, true},
		{strings.ToUpper(h), "0x" + h, true},
		{" 0x" + h, h, true},
		{h, ComputeDocumentHash([]byte("y")), false},
		{"", "", false},
	}
	for _, c := range cases {
		if got := Equal(c.a, c.b); got != c.want {
			t.Errorf("Equal(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestPrefixed(t *testing.T) {
	h := ComputeDocumentHash([]byte("x"))
	if Prefixed(h) != "0x"+h {
		t.Errorf("Prefixed(%s) = %s", h, Prefixed(h))
	}
	if Prefixed("0x"+strings.ToUpper(h)) != "0x"+h {
		t.Error("Prefixed should normalize case and keep a single prefix")
	}
	if Prefixed("") != "" {
		t.Error("empty stays empty")
	}
}

func TestIsValid(t *testing.T) {
	h := ComputeDocumentHash([]byte("x"))
	if !IsValid(h) || !IsValid("0x"+h) {
		t.Error("valid hash rejected")
	}
	if IsValid("abc") || IsValid(h+"00") || IsValid(strings.Replace(h, h[:1], "z", 1)) {
		t.Error("invalid hash accepted")
	}
}

func TestComputeProofHash_RecomputableFromNormalizedInputs(t *testing.T) {
	ts := time.UnixMilli(1735689600000)
	h := ComputeDocumentHash([]byte("doc"))
	p1 := ComputeProofHash(h, "org-1", ts)
	p2 := ComputeProofHash("0x"+strings.ToUpper(h), "org-1", ts)
	if p1 != p2 {
		t.Error("proof hash must not depend on hash representation")
	}
	if p1 == ComputeProofHash(h, "org-2", ts) {
		t.Error("proof hash must bind the organization")
	}
	if p1 == ComputeProofHash(h, "org-1", ts.Add(time.Millisecond)) {
		t.Error("proof hash must bind the anchoring timestamp")
	}
}

func TestNewCertificateID_Format(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	id, err := NewCertificateID(now)
	if err != nil {
		t.Fatalf("NewCertificateID: %v", err)
	}
	if !IsValidCertificateID(id) {
		t.Errorf("generated id %q does not match format", id)
	}
	if !strings.HasPrefix(id, "CERT-20260314-") {
		t.Errorf("id %q should embed the issue date", id)
	}
}

func TestIsValidCertificateID(t *testing.T) {
	if IsValidCertificateID("CERT-2026031-AABBCC") {
		t.Error("7-digit date accepted")
	}
	if IsValidCertificateID("CERT-20260314-aabbcc") {
		t.Error("lower-case suffix accepted")
	}
	if !IsValidCertificateID("CERT-99999999-FFFFFF") {
		t.Error("well-formed id rejected")
	}
}
