package model

import "time"

// Appointment is one booked slot. Records are immutable after creation;
// cancellation sets CancelledAt instead of deleting the row.
type Appointment struct {
	ID          string
	SubjectName string
	SubjectAge  int
	Date        string // canonical local YYYY-MM-DD key
	StartMinute int    // minutes since midnight
	OwnerKey    string
	CancelledAt *time.Time
	CreatedAt   time.Time
}

// Active reports whether the record still occupies its slot.
func (a Appointment) Active() bool {
	return a.CancelledAt == nil
}

const (
	RolePatient  = "patient"
	RoleOperator = "operator"
)

// Identity is the verified caller identity passed into every ledger call.
// OwnerKey is the opaque subject identifier carried in the token.
type Identity struct {
	OwnerKey string
	Role     string
}

func (id Identity) Operator() bool {
	return id.Role == RoleOperator
}
