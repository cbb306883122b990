package model

// DetailRecord is the derived interval for one raw event. The natural key is
// (Name, Operation, State, FromTime); only ToTime and DurationMinutes change
// after the row is created.
type DetailRecord struct {
	ID              int64   `gorm:"primaryKey" json:"id"`
	Name            string  `gorm:"size:100;not null;uniqueIndex:idx_detail_natural_key,priority:1" json:"name"`
	Operation       string  `gorm:"size:150;not null;uniqueIndex:idx_detail_natural_key,priority:2" json:"operation"`
	State           string  `gorm:"size:50;not null;uniqueIndex:idx_detail_natural_key,priority:3" json:"state"`
	EstimateTime    string  `gorm:"size:50" json:"estimateTime"`
	FromTime        string  `gorm:"size:50;not null;index;uniqueIndex:idx_detail_natural_key,priority:4" json:"fromTime"`
	ToTime          string  `gorm:"size:50" json:"toTime"`
	DurationMinutes float64 `json:"durationMinutes"`
}

// TableName pins the detail table name.
func (DetailRecord) TableName() string { return "downtime_details" }

// Open reports whether the interval has no known end yet.
func (d DetailRecord) Open() bool { return d.ToTime == "" }
