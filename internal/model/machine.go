package model

import "time"

// Machine is a registered piece of line equipment. Operators may only log
// status for codes present in this table.
type Machine struct {
	ID        int64  `gorm:"primaryKey"`
	Code      string `gorm:"uniqueIndex;size:100;not null"`
	Operation string `gorm:"size:150;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
