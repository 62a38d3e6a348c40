package model

import "time"

// CertificateStatus defines the lifecycle states of an issued certificate.
type CertificateStatus string

const (
	StatusValid     CertificateStatus = "valid"
	StatusRevoked   CertificateStatus = "revoked"
	StatusSuspended CertificateStatus = "suspended"
)

// ValidStatus reports whether s is a known certificate status.
func ValidStatus(s string) bool {
	switch CertificateStatus(s) {
	case StatusValid, StatusRevoked, StatusSuspended:
		return true
	}
	return false
}

// Certificate is the on-chain certificate record. The JSON field names are
// part of the gateway contract and must stay stable across versions.
type Certificate struct {
	CertificateID  string            `json:"certificateId"`
	OrganizationID string            `json:"organizationId"`
	DocumentHash   string            `json:"documentHash"` // bare lowercase hex
	HolderName     string            `json:"holderName"`
	IssueDate      string            `json:"issueDate"` // ISO-8601 date
	Status         string            `json:"status"`
	StatusReason   string            `json:"statusReason,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	TxRef          string            `json:"txRef,omitempty"`
	UpdatedAt      time.Time         `json:"updatedAt,omitempty"`
}
