package certificate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	id "participation/pkg/domain"
)

// VerificationResult is the public answer to "is this certificate real".
// It is safe to show to anyone; it never includes the stored hash.
type VerificationResult struct {
	Authentic        bool             `json:"authentic"`
	CertificateID    id.CertificateID `json:"certificate_id"`
	StudentID        id.StudentID     `json:"student_id,omitempty"`
	EventID          id.EventID       `json:"event_id,omitempty"`
	EventTitle       string           `json:"event_title,omitempty"`
	IssuedAt         *time.Time       `json:"issued_at,omitempty"`
	Revoked          bool             `json:"revoked"`
	RevocationReason string           `json:"revocation_reason,omitempty"`
	HashValid        bool             `json:"verification_hash_valid"`
	Message          string           `json:"message"`
}

// ComputeHash derives the tamper-evidence hash stamped onto a certificate at
// issuance. Verifiers present it back; a mismatch means the certificate ID
// was lifted onto a forged document.
func ComputeHash(certificateID id.CertificateID, eventID id.EventID, studentID id.StudentID, issuedAt time.Time) string {
	payload := fmt.Sprintf("%s|%s|%s|%d", certificateID, eventID, studentID, issuedAt.UTC().Unix())
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
