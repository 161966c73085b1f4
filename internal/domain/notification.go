package domain

import "time"

// Notification is a persisted in-app notification row. Delivery (push,
// websocket) is handled by an external collaborator; the core only writes
// rows and never fails a financial operation over them.
type Notification struct {
	ID        int32     `json:"id"`
	UserID    int32     `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedOn time.Time `json:"created_on"`
}
