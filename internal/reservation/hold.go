// Package reservation manages temporary holds on consultation slots and
// their promotion into confirmed appointments. A hold gives one visitor
// session a bounded window to complete checkout while the slot stays
// unavailable to everyone else.
package reservation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// HoldTTL bounds how long a slot can be withheld from other customers while
// one customer completes the out-of-band payment step.
const HoldTTL = 10 * time.Minute

// Domain errors returned to callers. A SlotUnavailable means the slot list
// is stale and should be re-fetched; a HoldExpired means slot selection must
// restart, never a silent retry with the same hold.
var (
	ErrSlotUnavailable = errors.New("reservation: slot unavailable")
	ErrNotOwner        = errors.New("reservation: hold owned by another session")
	ErrNotFound        = errors.New("reservation: hold not found")
	ErrHoldExpired     = errors.New("reservation: hold expired")
)

// Hold is a temporary, session-owned claim on one slot.
type Hold struct {
	ID        uuid.UUID `json:"id"`
	Date      string    `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Active reports whether the hold still claims its slot at the given
// instant. Every read path treats an inactive hold as absent.
func (h *Hold) Active(now time.Time) bool {
	return now.Before(h.ExpiresAt)
}
