// Package notifications stores in-app messages for users, mostly about
// decisions on their requests.
package notifications

import "time"

// Kinds of notification.
const (
	KindRequestApproved = "request.approved"
	KindRequestRejected = "request.rejected"
)

// Notification is one in-app message addressed to a user.
type Notification struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"-"`
	RequestID *int64     `json:"requestId"`
	Kind      string     `json:"kind"`
	Message   string     `json:"message"`
	ReadAt    *time.Time `json:"readAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Inbox is the response of GET /notifications.
type Inbox struct {
	Items  []Notification `json:"items"`
	Unread int            `json:"unread"`
}
