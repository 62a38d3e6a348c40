package contract

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"certledger/model"
)

// Object types used for composite keys. hashObjectType keys form a secondary
// index from document hash to certificate IDs.
const (
	certObjectType = "Certificate"
	hashObjectType = "CertHash"
)

const (
	maxStringInputLength = 256
	maxMetadataEntries   = 32
)

// Chaincode event names. The off-chain event sync engine keys its
// idempotency records on these names, so they must stay stable.
const (
	eventCertificateIssued        = "certificate-issued"
	eventCertificateStatusUpdated = "certificate-status-updated"
)

// CertificateContract manages certificate records on the permissioned ledger.
type CertificateContract struct {
	contractapi.Contract
}

// Instantiate is called during chaincode instantiation.
func (c *CertificateContract) Instantiate(ctx contractapi.TransactionContextInterface) {
}

// IssueCertificate registers a new certificate. The certificate ID must be
// unused; the same document hash may carry several certificates (reissues),
// history stays per certificate ID.
func (c *CertificateContract) IssueCertificate(ctx contractapi.TransactionContextInterface, certificateID, organizationID, documentHash, holderName, issueDate, metadataJSON string) (*model.Certificate, error) {
	if err := validateID("certificateId", certificateID); err != nil {
		return nil, err
	}
	if err := validateID("organizationId", organizationID); err != nil {
		return nil, err
	}
	hash, err := normalizeHash(documentHash)
	if err != nil {
		return nil, err
	}
	if holderName == "" || len(holderName) > maxStringInputLength {
		return nil, fmt.Errorf("holderName must be 1..%d characters", maxStringInputLength)
	}
	if _, err := time.Parse("2006-01-02", issueDate); err != nil {
		return nil, fmt.Errorf("issueDate must be an ISO-8601 date: %w", err)
	}
	var metadata map[string]string
	if metadataJSON != "" && metadataJSON != "null" {
		if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
			return nil, fmt.Errorf("metadata must be a JSON object of strings: %w", err)
		}
		if len(metadata) > maxMetadataEntries {
			return nil, fmt.Errorf("metadata exceeds %d entries", maxMetadataEntries)
		}
	}

	certKey, err := certKey(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	existing, err := ctx.GetStub().GetState(certKey)
	if err != nil {
		return nil, fmt.Errorf("read certificate state: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("certificate '%s' already exists", certificateID)
	}

	now, err := txTime(ctx)
	if err != nil {
		return nil, err
	}
	cert := &model.Certificate{
		CertificateID:  certificateID,
		OrganizationID: organizationID,
		DocumentHash:   hash,
		HolderName:     holderName,
		IssueDate:      issueDate,
		Status:         string(model.StatusValid),
		Metadata:       metadata,
		TxRef:          ctx.GetStub().GetTxID(),
		UpdatedAt:      now,
	}
	if err := putCertificate(ctx, certKey, cert); err != nil {
		return nil, err
	}

	// Secondary index: document hash -> certificate ID.
	idxKey, err := ctx.GetStub().CreateCompositeKey(hashObjectType, []string{hash, certificateID})
	if err != nil {
		return nil, fmt.Errorf("create hash index key: %w", err)
	}
	if err := ctx.GetStub().PutState(idxKey, []byte{0}); err != nil {
		return nil, fmt.Errorf("write hash index: %w", err)
	}

	emitCertificateEvent(ctx, eventCertificateIssued, cert)
	return cert, nil
}

// GetCertificate returns the current state of a certificate.
func (c *CertificateContract) GetCertificate(ctx contractapi.TransactionContextInterface, certificateID string) (*model.Certificate, error) {
	if err := validateID("certificateId", certificateID); err != nil {
		return nil, err
	}
	key, err := certKey(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	return readCertificate(ctx, key, certificateID)
}

// ValidateCertificateHash reports whether the given document hash matches the
// stored hash of the certificate and the certificate is currently valid.
func (c *CertificateContract) ValidateCertificateHash(ctx contractapi.TransactionContextInterface, certificateID, documentHash string) (bool, error) {
	hash, err := normalizeHash(documentHash)
	if err != nil {
		return false, err
	}
	cert, err := c.GetCertificate(ctx, certificateID)
	if err != nil {
		return false, err
	}
	return cert.DocumentHash == hash && cert.Status == string(model.StatusValid), nil
}

// QueryCertificateByHash returns all certificates recorded for a document
// hash. An empty organizationID matches any issuer; otherwise only that
// organization's certificates are returned.
func (c *CertificateContract) QueryCertificateByHash(ctx contractapi.TransactionContextInterface, documentHash, organizationID string) ([]*model.Certificate, error) {
	hash, err := normalizeHash(documentHash)
	if err != nil {
		return nil, err
	}
	iter, err := ctx.GetStub().GetStateByPartialCompositeKey(hashObjectType, []string{hash})
	if err != nil {
		return nil, fmt.Errorf("query hash index: %w", err)
	}
	defer iter.Close()

	certs := []*model.Certificate{}
	for iter.HasNext() {
		item, err := iter.Next()
		if err != nil {
			return nil, fmt.Errorf("iterate hash index: %w", err)
		}
		_, parts, err := ctx.GetStub().SplitCompositeKey(item.Key)
		if err != nil || len(parts) != 2 {
			continue
		}
		certificateID := parts[1]
		key, err := certKey(ctx, certificateID)
		if err != nil {
			continue
		}
		cert, err := readCertificate(ctx, key, certificateID)
		if err != nil {
			continue
		}
		if organizationID != "" && cert.OrganizationID != organizationID {
			continue
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// QueryCertificatesByOrganization returns every certificate issued by an
// organization. Intended for gateway-side reporting, not the hot read path.
func (c *CertificateContract) QueryCertificatesByOrganization(ctx contractapi.TransactionContextInterface, organizationID string) ([]*model.Certificate, error) {
	if err := validateID("organizationId", organizationID); err != nil {
		return nil, err
	}
	iter, err := ctx.GetStub().GetStateByPartialCompositeKey(certObjectType, []string{})
	if err != nil {
		return nil, fmt.Errorf("scan certificates: %w", err)
	}
	defer iter.Close()

	certs := []*model.Certificate{}
	for iter.HasNext() {
		item, err := iter.Next()
		if err != nil {
			return nil, fmt.Errorf("iterate certificates: %w", err)
		}
		var cert model.Certificate
		if err := json.Unmarshal(item.Value, &cert); err != nil {
			continue
		}
		if cert.OrganizationID == organizationID {
			certs = append(certs, &cert)
		}
	}
	return certs, nil
}

// GetCertificateHistory returns every recorded version of a certificate in
// chronological order, each stamped with the transaction that wrote it.
func (c *CertificateContract) GetCertificateHistory(ctx contractapi.TransactionContextInterface, certificateID string) ([]*model.Certificate, error) {
	if err := validateID("certificateId", certificateID); err != nil {
		return nil, err
	}
	key, err := certKey(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	iter, err := ctx.GetStub().GetHistoryForKey(key)
	if err != nil {
		return nil, fmt.Errorf("get history for '%s': %w", certificateID, err)
	}
	defer iter.Close()

	versions := []*model.Certificate{}
	for iter.HasNext() {
		item, err := iter.Next()
		if err != nil {
			return nil, fmt.Errorf("iterate history: %w", err)
		}
		if item.IsDelete {
			continue
		}
		var cert model.Certificate
		if err := json.Unmarshal(item.Value, &cert); err != nil {
			continue
		}
		cert.TxRef = item.TxId
		if ts := item.Timestamp; ts != nil {
			cert.UpdatedAt = time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
		}
		versions = append(versions, &cert)
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("certificate '%s' does not exist", certificateID)
	}
	return versions, nil
}

// UpdateCertificateStatus moves a certificate to a new status. Only the
// issuing organization's gateway may call this; the gateway enforces caller
// identity, the chaincode enforces the status machine.
func (c *CertificateContract) UpdateCertificateStatus(ctx contractapi.TransactionContextInterface, certificateID, status, reason string) (*model.Certificate, error) {
	if !model.ValidStatus(status) {
		return nil, fmt.Errorf("unknown status '%s'", status)
	}
	if len(reason) > maxStringInputLength {
		return nil, fmt.Errorf("reason exceeds %d characters", maxStringInputLength)
	}
	key, err := certKey(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	cert, err := readCertificate(ctx, key, certificateID)
	if err != nil {
		return nil, err
	}
	if cert.Status == string(model.StatusRevoked) {
		return nil, fmt.Errorf("certificate '%s' is revoked and cannot change status", certificateID)
	}
	now, err := txTime(ctx)
	if err != nil {
		return nil, err
	}
	cert.Status = status
	cert.StatusReason = reason
	cert.TxRef = ctx.GetStub().GetTxID()
	cert.UpdatedAt = now
	if err := putCertificate(ctx, key, cert); err != nil {
		return nil, err
	}
	emitCertificateEvent(ctx, eventCertificateStatusUpdated, cert)
	return cert, nil
}

func certKey(ctx contractapi.TransactionContextInterface, certificateID string) (string, error) {
	key, err := ctx.GetStub().CreateCompositeKey(certObjectType, []string{certificateID})
	if err != nil {
		return "", fmt.Errorf("create certificate key: %w", err)
	}
	return key, nil
}

func readCertificate(ctx contractapi.TransactionContextInterface, key, certificateID string) (*model.Certificate, error) {
	data, err := ctx.GetStub().GetState(key)
	if err != nil {
		return nil, fmt.Errorf("read certificate state: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("certificate '%s' does not exist", certificateID)
	}
	var cert model.Certificate
	if err := json.Unmarshal(data, &cert); err != nil {
		return nil, fmt.Errorf("decode certificate '%s': %w", certificateID, err)
	}
	return &cert, nil
}

func putCertificate(ctx contractapi.TransactionContextInterface, key string, cert *model.Certificate) error {
	data, err := json.Marshal(cert)
	if err != nil {
		return fmt.Errorf("encode certificate: %w", err)
	}
	if err := ctx.GetStub().PutState(key, data); err != nil {
		return fmt.Errorf("write certificate state: %w", err)
	}
	return nil
}

func emitCertificateEvent(ctx contractapi.TransactionContextInterface, eventName string, cert *model.Certificate) {
	payload, err := json.Marshal(map[string]interface{}{
		"certificateId":  cert.CertificateID,
		"organizationId": cert.OrganizationID,
		"documentHash":   cert.DocumentHash,
		"status":         cert.Status,
		"reason":         cert.StatusReason,
		"txRef":          cert.TxRef,
		"timestamp":      cert.UpdatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	_ = ctx.GetStub().SetEvent(eventName, payload)
}

func txTime(ctx contractapi.TransactionContextInterface) (time.Time, error) {
	ts, err := ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("get tx timestamp: %w", err)
	}
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC(), nil
}

func normalizeHash(h string) (string, error) {
	h = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "0x"))
	if len(h) != 64 {
		return "", fmt.Errorf("documentHash must be 32 bytes of hex")
	}
	if _, err := hex.DecodeString(h); err != nil {
		return "", fmt.Errorf("documentHash must be hex: %w", err)
	}
	return h, nil
}

func validateID(field, v string) error {
	if v == "" || len(v) > maxStringInputLength {
		return fmt.Errorf("%s must be 1..%d characters", field, maxStringInputLength)
	}
	return nil
}
