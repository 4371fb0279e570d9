package reconcile

import "participation/internal/participation"

// trustScore turns the resolved state and its conflicts into a 0-100
// confidence signal. It is advisory only and never gates a mutation.
func trustScore(res Result, src Sources) int {
	score := 100

	if !res.HasRegistration {
		score -= 10
	}
	if !res.HasAttendance {
		score -= 30
	}

	for _, c := range res.Conflicts {
		switch c.Severity {
		case participation.SeverityHigh:
			score -= 20
		case participation.SeverityMedium:
			score -= 10
		default:
			score -= 5
		}
	}

	// QR scans are harder to forge than overrides, so their presence earns
	// a capped bonus back.
	qrScans := 0
	for _, rec := range src.Attendance {
		if rec.Active() && rec.ScanSource == participation.SourceQRScan {
			qrScans++
		}
	}
	if bonus := qrScans * 5; bonus > 0 {
		if bonus > 20 {
			bonus = 20
		}
		score += bonus
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
