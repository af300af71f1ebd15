package models

import (
	"gorm.io/gorm"
)

// User is a guest identity row. The duel core never reads it back; it only
// anchors JWT user IDs and the rating glue's win/loss counters.
type User struct {
	gorm.Model
	Name   string `gorm:"not null"`
	Wins   int    `gorm:"not null;default:0"`
	Losses int    `gorm:"not null;default:0"`
}
