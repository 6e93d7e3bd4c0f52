package domain

import "time"

// UsageStatus is the lifecycle state of a shared account reservation.
type UsageStatus string

const (
	UsageReserved  UsageStatus = "RESERVED"
	UsageInUse     UsageStatus = "IN_USE"
	UsageCompleted UsageStatus = "COMPLETED"
	UsageCanceled  UsageStatus = "CANCELED"
)

// SharedAccount is a club-owned credential (streaming service, cloud
// account and the like) members can reserve time slots on.
type SharedAccount struct {
	ID       string `bson:"_id,omitempty"`
	Username string `bson:"username"`
	Platform string `bson:"platform"`
	InUse    bool   `bson:"in_use"`
	Version  int64  `bson:"version"`
}

// SharedAccountUsage is one reservation window on a shared account.
// Version backs the optimistic concurrency check: the status sweeper
// and request handlers may touch the same record concurrently.
type SharedAccountUsage struct {
	ID        string      `bson:"_id,omitempty"`
	AccountID string      `bson:"account_id"`
	MemberID  string      `bson:"member_id"`
	StartTime time.Time   `bson:"start_time"`
	EndTime   time.Time   `bson:"end_time"`
	Status    UsageStatus `bson:"status"`
	Version   int64       `bson:"version"`
	CreatedAt time.Time   `bson:"created_at"`
}

// StatusAt computes the state a usage window should be in at the given
// instant, ignoring cancellation.
func (u *SharedAccountUsage) StatusAt(now time.Time) UsageStatus {
	switch {
	case now.After(u.EndTime) || now.Equal(u.EndTime):
		return UsageCompleted
	case !now.Before(u.StartTime):
		return UsageInUse
	default:
		return UsageReserved
	}
}

// Overlaps reports whether the window intersects [start, end).
func (u *SharedAccountUsage) Overlaps(start, end time.Time) bool {
	return u.StartTime.Before(end) && u.EndTime.After(start)
}
