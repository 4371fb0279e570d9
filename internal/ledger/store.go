package ledger

import (
	"context"

	id "participation/pkg/domain"
)

// Store is the append-only audit log. There is deliberately no update or
// delete: corrections to a wrong entry are themselves new entries.
type Store interface {
	Append(ctx context.Context, entry Entry) (Entry, error)
	// ListByStudent returns entries for the pair, most recent first.
	ListByStudent(ctx context.Context, eventID id.EventID, studentID id.StudentID, limit int) ([]Entry, error)
	// ListByEvent returns entries for the event, most recent first.
	ListByEvent(ctx context.Context, eventID id.EventID, limit int) ([]Entry, error)
	// ListByAction returns the event's entries of one action type in
	// chronological order.
	ListByAction(ctx context.Context, eventID id.EventID, action ActionType) ([]Entry, error)
	// CountByAction tallies the event's entries per action type.
	CountByAction(ctx context.Context, eventID id.EventID) (map[ActionType]int, error)
}

// defaultListLimit caps list reads when the caller passes no limit. Both
// store implementations apply it so histories do not diverge by backend.
const defaultListLimit = 100
