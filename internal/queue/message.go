package queue

import (
	"time"

	"github.com/google/uuid"
)

// DispatchMessage is the queued unit of work for one dispatch: the full
// recipient list of a single notification. It lives only for the lifetime of
// the queue message.
type DispatchMessage struct {
	NotificationID uuid.UUID   `json:"notification_id"`
	SenderUserID   uuid.UUID   `json:"sender_user_id"`
	Title          string      `json:"title"`
	Body           string      `json:"body"`
	TargetUserIDs  []uuid.UUID `json:"target_user_ids"`
	CreatedAt      time.Time   `json:"created_at"`
}
