package storage

import "time"

// Delivery is one review event that reached the chat.
type Delivery struct {
	ID          int64     `json:"id"`
	UUID        string    `json:"uuid"`
	LessonTitle string    `json:"lesson_title"`
	LessonURL   string    `json:"lesson_url,omitempty"`
	IsNegative  bool      `json:"is_negative"`
	Cursor      string    `json:"cursor,omitempty"` // cursor of the batch the event came in
	Chunks      int       `json:"chunks"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// Failure is one classified poll or delivery failure.
type Failure struct {
	ID         int64     `json:"id"`
	UUID       string    `json:"uuid"`
	Class      string    `json:"class"`
	Message    string    `json:"message"`
	Cursor     string    `json:"cursor,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
