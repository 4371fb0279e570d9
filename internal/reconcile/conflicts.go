package reconcile

import (
	"fmt"
	"sort"

	"participation/internal/participation"
)

// detectConflicts runs every conflict rule over the sources. Rules are
// independent; several can fire for the same pair.
func detectConflicts(src Sources) []Conflict {
	var conflicts []Conflict

	activeCert := false
	for _, cert := range src.Certificates {
		if cert.Active() {
			activeCert = true
			break
		}
	}

	activeScans := 0
	scanDays := map[int]int{}
	qrScan := false
	override := false
	for _, rec := range src.Attendance {
		if !rec.Active() {
			continue
		}
		activeScans++
		scanDays[rec.DayNumber]++
		switch rec.ScanSource {
		case participation.SourceQRScan:
			qrScan = true
		case participation.SourceAdminOverride:
			override = true
		}
	}

	if activeCert && activeScans == 0 {
		conflicts = append(conflicts, Conflict{
			Type:              ConflictCertificateWithoutAttendance,
			Severity:          participation.SeverityHigh,
			Message:           "certificate issued but no valid attendance record exists",
			RecommendedAction: "verify attendance manually or revoke the certificate",
		})
	}
	if activeCert && src.Registration == nil {
		conflicts = append(conflicts, Conflict{
			Type:              ConflictCertificateWithoutRegistration,
			Severity:          participation.SeverityMedium,
			Message:           "certificate issued but student never registered",
			RecommendedAction: "confirm the student was an intended attendee",
		})
	}
	if activeScans > 0 && src.Registration == nil {
		conflicts = append(conflicts, Conflict{
			Type:              ConflictAttendanceWithoutRegistration,
			Severity:          participation.SeverityLow,
			Message:           "attendance recorded without a registration (walk-in or manual entry)",
			RecommendedAction: "backfill the registration if the walk-in was legitimate",
		})
	}
	days := make([]int, 0, len(scanDays))
	for day := range scanDays {
		days = append(days, day)
	}
	sort.Ints(days)
	for _, day := range days {
		if scanDays[day] > 1 {
			conflicts = append(conflicts, Conflict{
				Type:              ConflictMultipleScansSameDay,
				Severity:          participation.SeverityMedium,
				Message:           fmt.Sprintf("%d attendance records for day %d", scanDays[day], day),
				RecommendedAction: "invalidate the duplicate scans",
			})
		}
	}
	if qrScan && override {
		conflicts = append(conflicts, Conflict{
			Type:              ConflictAdminOverride,
			Severity:          participation.SeverityLow,
			Message:           "both a QR scan and an admin override exist for this student",
			RecommendedAction: "confirm the override was intentional",
		})
	}

	return conflicts
}
