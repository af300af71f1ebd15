package models

import "time"

// MatchResult is the immutable record emitted once per finished match.
// MatchID uniqueness is what makes retried emission idempotent.
type MatchResult struct {
	ID         uint   `gorm:"primaryKey"`
	MatchID    string `gorm:"uniqueIndex;not null"`
	RoomCode   string `gorm:"index;not null"`
	WinnerSeat int
	WinnerName string
	// Standings is the ordered standings slice serialized as JSON.
	Standings string `gorm:"type:text;not null"`
	EndedAt   time.Time
	CreatedAt time.Time
}
