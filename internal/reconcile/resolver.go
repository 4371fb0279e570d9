package reconcile

// Derive computes the canonical status, conflicts, and trust score for one
// (event, student) pair from its assembled sources. It is a pure function:
// callers own loading and persistence.
func Derive(src Sources) Result {
	res := Result{
		HasRegistration:   src.Registration != nil,
		TotalDaysRequired: 1,
	}
	if src.Event != nil {
		res.EventID = src.Event.ID
		if src.Event.TotalDays > 0 {
			res.TotalDaysRequired = src.Event.TotalDays
		}
	}
	if src.Registration != nil {
		res.StudentID = src.Registration.StudentID
		if res.EventID.IsZero() {
			res.EventID = src.Registration.EventID
		}
	}

	activeAttendance := 0
	days := map[int]struct{}{}
	for _, rec := range src.Attendance {
		if res.StudentID.IsZero() {
			res.StudentID = rec.StudentID
		}
		if res.EventID.IsZero() {
			res.EventID = rec.EventID
		}
		res.Evidence.AttendanceIDs = append(res.Evidence.AttendanceIDs, rec.ID)
		if !rec.Active() {
			continue
		}
		activeAttendance++
		days[rec.DayNumber] = struct{}{}
	}
	res.HasAttendance = activeAttendance > 0
	res.AttendanceCount = activeAttendance
	res.DaysAttended = len(days)

	activeCert := false
	revokedCert := false
	for _, cert := range src.Certificates {
		if res.StudentID.IsZero() {
			res.StudentID = cert.StudentID
		}
		if res.EventID.IsZero() {
			res.EventID = cert.EventID
		}
		res.Evidence.CertificateIDs = append(res.Evidence.CertificateIDs, cert.ID)
		if cert.Active() {
			activeCert = true
		} else {
			revokedCert = true
		}
	}
	res.HasCertificate = activeCert
	res.CertificateRevoked = revokedCert && !activeCert

	switch {
	case revokedCert && !activeCert:
		res.Status = StatusInvalidated
	case activeCert:
		res.Status = StatusCertified
	case res.HasAttendance:
		res.Status = StatusAttendedNoCertificate
	case res.HasRegistration:
		res.Status = StatusRegisteredOnly
	default:
		res.Status = StatusUnknown
	}

	res.Conflicts = detectConflicts(src)
	res.TrustScore = trustScore(res, src)
	return res
}
