package model

// SummaryRecord aggregates one machine/operation for one calendar day.
// Duration and TotalDuration are in hours.
type SummaryRecord struct {
	ID            int64   `gorm:"primaryKey" json:"id"`
	Name          string  `gorm:"size:100;not null;uniqueIndex:idx_summary_natural_key,priority:1" json:"name"`
	Operation     string  `gorm:"size:150;not null;uniqueIndex:idx_summary_natural_key,priority:2" json:"operation"`
	StartTime     string  `gorm:"size:50;not null" json:"startTime"`
	Duration      float64 `gorm:"not null" json:"duration"`
	TotalDuration float64 `gorm:"not null" json:"totalDuration"`
	Date          string  `gorm:"size:10;not null;index;uniqueIndex:idx_summary_natural_key,priority:3" json:"date"` // yyyy-MM-dd
}

// TableName pins the summary table name.
func (SummaryRecord) TableName() string { return "downtime_summaries" }
