package fraud

import (
	"fmt"
	"sort"
	"time"

	"participation/internal/ledger"
	"participation/internal/participation"
	id "participation/pkg/domain"
)

const (
	rapidScanThreshold     = 10
	rapidScanUniqueRatio   = 0.8
	overrideAbuseThreshold = 20
	bulkUploadThreshold    = 100
)

// snapshot is everything one event-wide scan reads. All rules are pure
// functions over it; loading happens in the service.
type snapshot struct {
	event         *participation.Event
	registrations []participation.Registration
	attendance    []participation.AttendanceRecord
	certificates  []participation.CertificateRecord
	verifications []ledger.Entry
}

// scan runs every rule. Rules never short-circuit each other; each may emit
// zero or more alerts.
func scan(snap snapshot) []Alert {
	var alerts []Alert
	alerts = append(alerts, detectDuplicateCertificates(snap)...)
	alerts = append(alerts, detectOrphanCertificates(snap)...)
	alerts = append(alerts, detectRapidScans(snap)...)
	alerts = append(alerts, detectPrematureCertificates(snap)...)
	alerts = append(alerts, detectRevokedUse(snap)...)
	alerts = append(alerts, detectOverrideAbuse(snap)...)
	alerts = append(alerts, detectBulkAnomalies(snap)...)
	return alerts
}

// attendeeCertificates filters to active student-bound attendee certificates.
// Certificates issued to organizers, scanners, and volunteers carry no
// student and are exempt from the per-student rules.
func attendeeCertificates(certs []participation.CertificateRecord) []participation.CertificateRecord {
	var out []participation.CertificateRecord
	for _, cert := range certs {
		if cert.Active() && cert.RoleType == participation.RoleAttendee && !cert.StudentID.IsZero() {
			out = append(out, cert)
		}
	}
	return out
}

func detectDuplicateCertificates(snap snapshot) []Alert {
	byStudent := map[id.StudentID][]participation.CertificateRecord{}
	for _, cert := range attendeeCertificates(snap.certificates) {
		byStudent[cert.StudentID] = append(byStudent[cert.StudentID], cert)
	}

	var alerts []Alert
	for _, studentID := range sortedStudents(byStudent) {
		certs := byStudent[studentID]
		if len(certs) < 2 {
			continue
		}
		evidence := &DuplicateCertificateEvidence{}
		for _, cert := range certs {
			evidence.CertificateIDs = append(evidence.CertificateIDs, cert.ID)
			evidence.IssuedAt = append(evidence.IssuedAt, cert.IssuedAt)
		}
		alerts = append(alerts, Alert{
			Type:                 AlertDuplicateCertificate,
			Severity:             participation.SeverityHigh,
			StudentID:            studentID,
			Description:          fmt.Sprintf("student has %d certificates for the same event", len(certs)),
			Recommendation:       "revoke the duplicate certificates and investigate",
			DuplicateCertificate: evidence,
		})
	}
	return alerts
}

func detectOrphanCertificates(snap snapshot) []Alert {
	registered := map[id.StudentID]bool{}
	for _, reg := range snap.registrations {
		registered[reg.StudentID] = true
	}
	attended := map[id.StudentID]bool{}
	for _, rec := range snap.attendance {
		if rec.Active() {
			attended[rec.StudentID] = true
		}
	}

	var alerts []Alert
	for _, cert := range attendeeCertificates(snap.certificates) {
		hasReg := registered[cert.StudentID]
		hasAtt := attended[cert.StudentID]
		if hasAtt {
			continue
		}
		severity := participation.SeverityMedium
		description := "certificate issued without an attendance record"
		recommendation := "check whether attendance was recorded manually"
		if !hasReg {
			severity = participation.SeverityHigh
			description = "certificate issued without registration or attendance"
			recommendation = "verify certificate authenticity and revoke if fraudulent"
		}
		alerts = append(alerts, Alert{
			Type:           AlertOrphanCertificate,
			Severity:       severity,
			StudentID:      cert.StudentID,
			Description:    description,
			Recommendation: recommendation,
			OrphanCertificate: &OrphanCertificateEvidence{
				CertificateID:   cert.ID,
				IssuedAt:        cert.IssuedAt,
				HasRegistration: hasReg,
				HasAttendance:   false,
			},
		})
	}
	return alerts
}

func detectRapidScans(snap snapshot) []Alert {
	byMinute := map[time.Time][]participation.AttendanceRecord{}
	for _, rec := range snap.attendance {
		if !rec.Active() || rec.ScannedAt.IsZero() {
			continue
		}
		minute := rec.ScannedAt.Truncate(time.Minute)
		byMinute[minute] = append(byMinute[minute], rec)
	}

	var alerts []Alert
	for _, minute := range sortedMinutes(byMinute) {
		scans := byMinute[minute]
		if len(scans) <= rapidScanThreshold {
			continue
		}
		students := map[id.StudentID]bool{}
		sources := map[participation.ScanSource]bool{}
		for _, rec := range scans {
			students[rec.StudentID] = true
			sources[rec.ScanSource] = true
		}
		if float64(len(students)) >= float64(len(scans))*rapidScanUniqueRatio {
			continue
		}
		alerts = append(alerts, Alert{
			Type:           AlertRapidScans,
			Severity:       participation.SeverityMedium,
			Description:    fmt.Sprintf("%d scans in one minute with only %d unique students", len(scans), len(students)),
			Recommendation: "review scanner behavior and device fingerprints",
			ScanBurst: &ScanBurstEvidence{
				Minute:         minute,
				TotalScans:     len(scans),
				UniqueStudents: len(students),
				Sources:        sortedSources(sources),
			},
		})
	}
	return alerts
}

func detectPrematureCertificates(snap snapshot) []Alert {
	if snap.event == nil || snap.event.StartTime.IsZero() {
		return nil
	}
	var alerts []Alert
	for _, cert := range snap.certificates {
		if !cert.Active() || cert.IssuedAt.IsZero() || !cert.IssuedAt.Before(snap.event.StartTime) {
			continue
		}
		alerts = append(alerts, Alert{
			Type:           AlertPrematureCertificate,
			Severity:       participation.SeverityHigh,
			StudentID:      cert.StudentID,
			Description:    "certificate issued before the event started",
			Recommendation: "revoke the certificate and investigate the issuance process",
			PrematureCertificate: &PrematureCertificateEvidence{
				CertificateID: cert.ID,
				IssuedAt:      cert.IssuedAt,
				EventStart:    snap.event.StartTime,
			},
		})
	}
	return alerts
}

func detectRevokedUse(snap snapshot) []Alert {
	var alerts []Alert
	for _, cert := range snap.certificates {
		if !cert.Revoked || cert.RevokedAt == nil {
			continue
		}
		count := 0
		var last time.Time
		for _, entry := range snap.verifications {
			if !entry.Timestamp.After(*cert.RevokedAt) {
				continue
			}
			if certID, _ := entry.AfterState["certificate_id"].(string); certID != cert.ID.String() {
				continue
			}
			count++
			if entry.Timestamp.After(last) {
				last = entry.Timestamp
			}
		}
		if count == 0 {
			continue
		}
		alerts = append(alerts, Alert{
			Type:           AlertRevokedStillVerified,
			Severity:       participation.SeverityHigh,
			StudentID:      cert.StudentID,
			Description:    fmt.Sprintf("revoked certificate verified %d times after revocation", count),
			Recommendation: "alert the issuing authority about potential misuse",
			RevokedUse: &RevokedUseEvidence{
				CertificateID:  cert.ID,
				RevokedAt:      *cert.RevokedAt,
				Verifications:  count,
				LastVerifiedAt: last,
			},
		})
	}
	return alerts
}

func detectOverrideAbuse(snap snapshot) []Alert {
	byScanner := map[id.ActorID]int{}
	for _, rec := range snap.attendance {
		if rec.ScanSource == participation.SourceAdminOverride {
			byScanner[rec.ScannerActorID]++
		}
	}

	var alerts []Alert
	for _, scannerID := range sortedActors(byScanner) {
		count := byScanner[scannerID]
		if count <= overrideAbuseThreshold {
			continue
		}
		alerts = append(alerts, Alert{
			Type:           AlertOverrideAbuse,
			Severity:       participation.SeverityMedium,
			Description:    fmt.Sprintf("scanner %s recorded %d manual overrides", scannerID, count),
			Recommendation: "review scanner permissions and override justifications",
			OverrideAbuse: &OverrideAbuseEvidence{
				ScannerID: scannerID,
				Overrides: count,
			},
		})
	}
	return alerts
}

func detectBulkAnomalies(snap snapshot) []Alert {
	byMinute := map[time.Time][]participation.AttendanceRecord{}
	for _, rec := range snap.attendance {
		if rec.ScanSource != participation.SourceBulkUpload || rec.ScannedAt.IsZero() {
			continue
		}
		minute := rec.ScannedAt.Truncate(time.Minute)
		byMinute[minute] = append(byMinute[minute], rec)
	}

	var alerts []Alert
	for _, minute := range sortedMinutes(byMinute) {
		uploads := byMinute[minute]
		if len(uploads) <= bulkUploadThreshold {
			continue
		}
		scanners := map[id.ActorID]bool{}
		for _, rec := range uploads {
			if !rec.ScannerActorID.IsZero() {
				scanners[rec.ScannerActorID] = true
			}
		}
		ids := make([]id.ActorID, 0, len(scanners))
		for actor := range scanners {
			ids = append(ids, actor)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		alerts = append(alerts, Alert{
			Type:           AlertBulkUploadAnomaly,
			Severity:       participation.SeverityLow,
			Description:    fmt.Sprintf("bulk upload of %d records in one minute", len(uploads)),
			Recommendation: "verify the bulk upload source and data integrity",
			BulkUpload: &BulkUploadEvidence{
				Minute:     minute,
				Records:    len(uploads),
				ScannerIDs: ids,
			},
		})
	}
	return alerts
}

func sortedStudents[V any](m map[id.StudentID]V) []id.StudentID {
	out := make([]id.StudentID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedActors[V any](m map[id.ActorID]V) []id.ActorID {
	out := make([]id.ActorID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedMinutes[V any](m map[time.Time]V) []time.Time {
	out := make([]time.Time, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func sortedSources(m map[participation.ScanSource]bool) []participation.ScanSource {
	out := make([]participation.ScanSource, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
