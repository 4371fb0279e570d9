package resolution

import (
	id "participation/pkg/domain"
)

// Action is one operator decision in a resolution batch.
type Action string

const (
	ActionAddAttendance     Action = "add_attendance"
	ActionRevokeCertificate Action = "revoke_certificate"
	ActionIgnore            Action = "ignore"
	ActionManualReview      Action = "manual_review"
)

// BatchAction pairs a student with the operator's chosen action.
type BatchAction struct {
	StudentID id.StudentID `json:"student_id"`
	Action    Action       `json:"action"`
	Reason    string       `json:"reason"`
}

// Outcome is the per-item result status.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// Detail is one row of the batch result, always present for every input
// action so operators can account for each decision.
type Detail struct {
	StudentID id.StudentID `json:"student_id"`
	Action    Action       `json:"action"`
	Status    Outcome      `json:"status"`
	Reason    string       `json:"reason,omitempty"`
}

// BatchResult summarizes a whole batch. Failed items never abort the rest;
// Successful+Failed always equals TotalActions.
type BatchResult struct {
	EventID      id.EventID `json:"event_id"`
	TotalActions int        `json:"total_actions"`
	Successful   int        `json:"successful"`
	Failed       int        `json:"failed"`
	Details      []Detail   `json:"details"`
}
