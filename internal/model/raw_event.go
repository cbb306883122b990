package model

import "time"

// RawEvent is one operator-submitted status change. Rows are never updated.
type RawEvent struct {
	ID           int64      `gorm:"primaryKey" json:"id"`
	MachineCode  string     `gorm:"index;size:100;not null" json:"machineCode"`
	MachineName  string     `gorm:"size:100;not null" json:"machineName"`
	State        string     `gorm:"size:50;not null" json:"state"`
	Operation    string     `gorm:"index;size:150;not null" json:"operation"`
	EstimateText string     `gorm:"size:50" json:"estimateText"`
	Description  string     `json:"description"`
	ImageRef     string     `gorm:"size:255" json:"imageRef"`
	Timestamp    *time.Time `gorm:"column:event_time;index" json:"timestamp"`
	CreatedAt    time.Time  `json:"createdAt"`
}
